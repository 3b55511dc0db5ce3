// Package llm provides the reasoning service used to infer merchant identities.
// It supports OpenAI and Anthropic providers behind a single Client interface,
// and a Reasoner wrapper that adds rate limiting, timeouts and retries.
package llm
