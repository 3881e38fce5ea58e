// Package llm provides the OpenRouter chat client that writes article prose.
//
// Every call is a Request: the generator sets JSON for outline and takeaways
// replies, MaxTokens per article part, and Avoid when it regenerates a passage
// that used banned terms. Replies carry the finish reason so a part cut off at
// its token cap can be reported. JSON replies are decoded with DecodeJSON,
// which tolerates code fences and leading chatter.
//
// The client does not retry. A provider error fails the run and the caller
// resubmits, reusing the transcript checkpoint.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title and
// timeout_seconds.
package llm
