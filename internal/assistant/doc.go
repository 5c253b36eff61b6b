// Package assistant is the boundary to the external AI provider.
//
// The Client speaks the OpenAI-compatible chat completions protocol over
// HTTPS. Every call carries the full windowed history plus a fixed system
// prompt; no state is kept between calls.
//
// All provider failures collapse into ErrUnavailable: network errors,
// timeouts, non-200 statuses, provider error payloads, and empty choice
// sets. Callers treat the exchange as degraded, surface FallbackReply to
// the visitor, and skip lead extraction for that exchange.
package assistant
