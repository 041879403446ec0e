package gatewaycfg

import (
	"strings"

	"github.com/rs/zerolog"
)

// A rule patches one concern into the document. Rules are total: a rule
// whose environment variables are absent leaves the document untouched.
type rule struct {
	name  string
	apply func(Document, Env, zerolog.Logger)
}

// rules run in this fixed order. Later rules may overwrite earlier ones'
// effects on overlapping keys; in particular the OpenRouter rule removes
// direct provider entries an earlier boot may have registered.
var rules = []rule{
	{"sections", ruleSections},
	{"gateway-invariants", ruleGatewayInvariants},
	{"gateway-token", ruleGatewayToken},
	{"dev-mode", ruleDevMode},
	{"cf-ai-gateway", ruleCFGateway},
	{"openrouter", ruleOpenRouter},
	{"channel-telegram", ruleTelegram},
	{"channel-discord", ruleDiscord},
	{"channel-slack", ruleSlack},
}

// Reconcile merges environment-declared desired state into the document
// without losing unrelated existing state. It is idempotent and safe to run
// on every boot, warm restarts included; the input document is not mutated.
func Reconcile(doc Document, env Env, log zerolog.Logger) Document {
	out, _ := deepCopy(map[string]any(doc)).(map[string]any)
	result := Document(out)
	for _, r := range rules {
		r.apply(result, env, log.With().Str("rule", r.name).Logger())
	}
	return result
}

func ruleSections(doc Document, _ Env, _ zerolog.Logger) {
	doc.section("gateway")
	doc.section("channels")
}

// Port, mode and trusted proxies are sandbox-environment invariants, not
// user preference: restored values are always overwritten.
func ruleGatewayInvariants(doc Document, env Env, _ zerolog.Logger) {
	port := env.GatewayPort
	if port == 0 {
		port = DefaultGatewayPort
	}
	gw := doc.section("gateway")
	gw["port"] = port
	gw["mode"] = "local"
	gw["trustedProxies"] = []any{"127.0.0.1", "::1"}
}

func ruleGatewayToken(doc Document, env Env, _ zerolog.Logger) {
	if env.GatewayToken == "" {
		// An existing token (e.g. minted by the onboarding wizard) stays.
		return
	}
	doc.section("gateway", "auth")["token"] = env.GatewayToken
}

func ruleDevMode(doc Document, env Env, _ zerolog.Logger) {
	if !env.DevMode {
		return
	}
	doc.section("gateway", "controlUi")["allowInsecureAuth"] = true
}

// ruleCFGateway registers a provider routed through the Cloudflare AI
// Gateway when CF_AI_GATEWAY_MODEL is set. When the dependent IDs or key
// are missing it warns and leaves the document unchanged.
func ruleCFGateway(doc Document, env Env, log zerolog.Logger) {
	if env.CFModel == "" {
		return
	}
	provider, modelID, ok := strings.Cut(env.CFModel, "/")
	if !ok || provider == "" || modelID == "" {
		log.Warn().Str("model", env.CFModel).Msg("CF_AI_GATEWAY_MODEL is not provider/modelId, ignoring override")
		return
	}
	if env.CFAccountID == "" {
		log.Warn().Str("provider", provider).Msg("CF_AI_GATEWAY_MODEL set but CF_ACCOUNT_ID missing, ignoring override")
		return
	}
	if env.CFAPIKey == "" {
		log.Warn().Str("provider", provider).Msg("CF_AI_GATEWAY_MODEL set but CF_AI_GATEWAY_API_KEY missing, ignoring override")
		return
	}

	var baseURL string
	switch {
	case env.CFGatewayID != "":
		baseURL = "https://gateway.ai.cloudflare.com/v1/" + env.CFAccountID + "/" + env.CFGatewayID + "/" + provider
		if provider == "workers-ai" {
			// Workers AI exposes its OpenAI-compatible surface under /v1.
			baseURL += "/v1"
		}
	case provider == "workers-ai":
		baseURL = "https://api.cloudflare.com/client/v4/accounts/" + env.CFAccountID + "/ai/v1"
	default:
		log.Warn().Str("provider", provider).Msg("CF_AI_GATEWAY_ID missing and provider has no account-only endpoint, ignoring override")
		return
	}

	api := "openai-completions"
	contextWindow, maxTokens := 131072, 8192
	if provider == "anthropic" {
		api = "anthropic-messages"
		contextWindow = 200000
	}

	name := "cf-" + provider
	providers := doc.section("models", "providers")
	providers[name] = map[string]any{
		"baseUrl": baseURL,
		"apiKey":  env.CFAPIKey,
		"api":     api,
		"models": []any{
			modelEntry(modelID, modelID, contextWindow, maxTokens),
		},
	}
	doc.section("agents", "defaults", "model")["primary"] = name + "/" + modelID
}

// ruleOpenRouter makes OpenRouter the sole provider when its key is set.
// Direct anthropic/openai entries are removed first so traffic cannot
// accidentally bypass the proxying provider.
func ruleOpenRouter(doc Document, env Env, _ zerolog.Logger) {
	if env.OpenRouterKey == "" {
		return
	}
	providers := doc.section("models", "providers")
	delete(providers, "anthropic")
	delete(providers, "openai")
	providers["openrouter"] = map[string]any{
		"baseUrl": "https://openrouter.ai/api/v1",
		"apiKey":  env.OpenRouterKey,
		"api":     "openai-completions",
		"models":  openRouterCatalog(),
	}
	primary := env.DefaultModel
	if primary == "" {
		primary = "openrouter/anthropic/claude-sonnet-4.5"
	}
	doc.section("agents", "defaults", "model")["primary"] = primary
}

func ruleTelegram(doc Document, env Env, log zerolog.Logger) {
	if env.Telegram.BotToken == "" {
		return
	}
	doc.section("channels")["telegram"] = channelRecord(env.Telegram, false, log)
}

func ruleDiscord(doc Document, env Env, log zerolog.Logger) {
	if env.Discord.BotToken == "" {
		return
	}
	doc.section("channels")["discord"] = channelRecord(env.Discord, false, log)
}

func ruleSlack(doc Document, env Env, log zerolog.Logger) {
	if env.Slack.BotToken == "" || env.Slack.AppToken == "" {
		if env.Slack.BotToken != "" || env.Slack.AppToken != "" {
			log.Warn().Msg("slack needs both SLACK_BOT_TOKEN and SLACK_APP_TOKEN, leaving channel untouched")
		}
		return
	}
	doc.section("channels")["slack"] = channelRecord(env.Slack, true, log)
}

// channelRecord builds a channel's entire config sub-object from the
// current environment. Replacement is wholesale: stale keys from earlier
// schema versions would fail strict validation in the gateway.
func channelRecord(ch ChannelEnv, withAppToken bool, log zerolog.Logger) map[string]any {
	policy := ch.DMPolicy
	switch policy {
	case "":
		policy = "pairing"
	case "pairing", "open", "allowlist":
	default:
		log.Warn().Str("dmPolicy", policy).Msg("unknown DM policy, falling back to pairing")
		policy = "pairing"
	}

	allowFrom := []any{}
	switch policy {
	case "open":
		allowFrom = []any{"*"}
	case "allowlist":
		for _, entry := range strings.Split(ch.AllowFrom, ",") {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				allowFrom = append(allowFrom, trimmed)
			}
		}
	}

	record := map[string]any{
		"enabled":   true,
		"botToken":  ch.BotToken,
		"dmPolicy":  policy,
		"allowFrom": allowFrom,
	}
	if withAppToken {
		record["appToken"] = ch.AppToken
	}
	return record
}

func modelEntry(id, name string, contextWindow, maxTokens int) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"contextWindow": contextWindow,
		"maxTokens":     maxTokens,
	}
}
