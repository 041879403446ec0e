package gatewaycfg

// openRouterCatalog is the fixed model set registered with the OpenRouter
// provider. IDs are OpenRouter routing slugs; the gateway only needs the
// window and output ceilings to budget context.
func openRouterCatalog() []any {
	return []any{
		modelEntry("anthropic/claude-opus-4.5", "Claude Opus 4.5", 200000, 32000),
		modelEntry("anthropic/claude-sonnet-4.5", "Claude Sonnet 4.5", 200000, 64000),
		modelEntry("anthropic/claude-haiku-4.5", "Claude Haiku 4.5", 200000, 64000),
		modelEntry("openai/gpt-5.2", "GPT-5.2", 400000, 128000),
		modelEntry("openai/gpt-5-mini", "GPT-5 Mini", 400000, 128000),
		modelEntry("openai/gpt-oss-120b", "GPT-OSS 120B", 131072, 32768),
		modelEntry("google/gemini-3-pro", "Gemini 3 Pro", 1048576, 65536),
		modelEntry("google/gemini-2.5-flash", "Gemini 2.5 Flash", 1048576, 65536),
		modelEntry("meta-llama/llama-3.3-70b-instruct", "Llama 3.3 70B Instruct", 131072, 16384),
		modelEntry("mistralai/mistral-large-2411", "Mistral Large 24.11", 131072, 16384),
		modelEntry("deepseek/deepseek-v3.2", "DeepSeek V3.2", 163840, 32768),
		modelEntry("qwen/qwen3-235b-a22b", "Qwen3 235B A22B", 131072, 32768),
		modelEntry("x-ai/grok-4.1", "Grok 4.1", 262144, 65536),
		modelEntry("moonshotai/kimi-k2", "Kimi K2", 131072, 32768),
	}
}
