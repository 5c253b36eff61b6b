// Package conversation coordinates chat exchanges.
//
// Every exchange follows the same pipeline: persist the visitor turn,
// call the assistant with a window of recent turns, persist the reply,
// then re-extract lead fields from the visitor side of the transcript
// and upsert the lead once contact info is known.
//
// The transcript is the source of truth. The visitor turn is recorded
// before the assistant is called, so provider failures never lose what
// the visitor said. A failed assistant call degrades the exchange to a
// fixed fallback reply and skips lead capture for that exchange only.
package conversation
