// Package extractor pulls lead fields out of free-form conversation text.
//
// Extraction is best-effort regex matching over visitor messages in
// conversation order: email, phone, name, location, home value, and quote
// intent. When a field is mentioned more than once, the most recent mention
// wins. The package is pure text processing; it never touches storage or
// the network, and a snapshot without an email address is considered
// incomplete (Fields.Complete) and is not persisted by callers.
package extractor
