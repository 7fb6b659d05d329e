// Package llm is the reasoning capability used by the pipeline stages.
//
// A [Completer] turns a system prompt and a user prompt into text. The
// production implementation, [Client], wraps a langchaingo model for one of
// the supported providers (anthropic, openai, gemini, ollama) and adds rate
// limiting, bounded retries with exponential backoff for transient failures,
// and classification of authentication failures into [AuthError]. [Cached]
// layers the on-disk response cache on top of any Completer.
//
// Models are constructed lazily on the first call so that a missing API key
// only surfaces when a stage actually needs the provider.
//
// [DecodeJSON] is the shared tolerant decoder for model output: it strips
// markdown fences, isolates the outermost JSON value and falls back to
// jsonrepair before giving up.
package llm
