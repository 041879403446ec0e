package gatewaycfg

// Env is the environment slice the reconciler reads. Reconcile is a pure
// function of (Document, Env); tests construct Env literals directly.
type Env struct {
	GatewayPort  int
	GatewayToken string
	DevMode      bool

	CFAPIKey    string
	CFAccountID string
	CFGatewayID string
	CFModel     string

	OpenRouterKey string
	DefaultModel  string

	AnthropicKey string
	OpenAIKey    string

	Telegram ChannelEnv
	Discord  ChannelEnv
	Slack    ChannelEnv
}

// ChannelEnv carries one chat integration's environment variables.
// AppToken is only meaningful for slack.
type ChannelEnv struct {
	BotToken  string
	AppToken  string
	DMPolicy  string
	AllowFrom string
}

// DefaultGatewayPort is the sandbox-invariant port the gateway listens on.
const DefaultGatewayPort = 18789

// FromLookup reads the recognized variable set.
func FromLookup(get func(string) string) Env {
	return Env{
		GatewayPort:  DefaultGatewayPort,
		GatewayToken: get("OPENCLAW_GATEWAY_TOKEN"),
		DevMode:      get("OPENCLAW_DEV_MODE") == "true",

		CFAPIKey:    get("CF_AI_GATEWAY_API_KEY"),
		CFAccountID: get("CF_ACCOUNT_ID"),
		CFGatewayID: get("CF_AI_GATEWAY_ID"),
		CFModel:     get("CF_AI_GATEWAY_MODEL"),

		OpenRouterKey: get("OPENROUTER_API_KEY"),
		DefaultModel:  get("OPENCLAW_DEFAULT_MODEL"),

		AnthropicKey: get("ANTHROPIC_API_KEY"),
		OpenAIKey:    get("OPENAI_API_KEY"),

		Telegram: ChannelEnv{
			BotToken:  get("TELEGRAM_BOT_TOKEN"),
			DMPolicy:  get("TELEGRAM_DM_POLICY"),
			AllowFrom: get("TELEGRAM_ALLOW_FROM"),
		},
		Discord: ChannelEnv{
			BotToken:  get("DISCORD_BOT_TOKEN"),
			DMPolicy:  get("DISCORD_DM_POLICY"),
			AllowFrom: get("DISCORD_ALLOW_FROM"),
		},
		Slack: ChannelEnv{
			BotToken:  get("SLACK_BOT_TOKEN"),
			AppToken:  get("SLACK_APP_TOKEN"),
			DMPolicy:  get("SLACK_DM_POLICY"),
			AllowFrom: get("SLACK_ALLOW_FROM"),
		},
	}
}
