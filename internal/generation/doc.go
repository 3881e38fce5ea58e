// Package generation writes grounded article prose from transcript segments.
//
// A Generator drives a TextGenerator (normally the OpenRouter client in
// internal/services/llm) through five request kinds: the outline, one
// request per outline section, the introduction, the conclusion and the key
// takeaways. Section requests retrieve their context from a grounding.Index
// and turn the retrieved segments into citations. Citations whose segment
// confidence is below the configured floor are dropped from the ledger while
// the prose may still draw on them.
//
// Every reply is scanned for the style's banned terms. A reply that contains
// one is regenerated up to Options.BannedTermRetries times before the request
// fails with services.ErrPolicyViolation.
package generation
