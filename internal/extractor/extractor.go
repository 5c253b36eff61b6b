// ABOUTME: Best-effort extraction of quote-relevant lead fields from conversation text
// ABOUTME: Pure text matching; the most recent mention of a field wins

package extractor

import (
	"regexp"
	"strings"
)

// Fields holds whatever lead information could be inferred from a
// conversation snapshot. Empty strings mean "not mentioned yet".
type Fields struct {
	Name      string
	Email     string
	Phone     string
	Location  string
	HomeValue string

	// QuoteIntent is set when the visitor used pricing language anywhere
	// in the conversation.
	QuoteIntent bool
}

// Complete reports whether the required contact field is known.
// Leads are not persisted from chat until this is true.
func (f Fields) Complete() bool {
	return f.Email != ""
}

// Empty reports whether nothing at all was extracted.
func (f Fields) Empty() bool {
	return f == Fields{}
}

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// US phone shapes: 512-555-0142, (512) 555 0142, 5125550142
	phoneRe = regexp.MustCompile(`\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)

	// "my name is Jane Doe" / "I'm Jane Doe" / "this is Jane Doe"
	// The trigger phrase is case-insensitive; the name itself must be
	// capitalized so we don't swallow arbitrary sentence tails.
	nameRe = regexp.MustCompile(`(?:(?i:my name is|my name's|i am|i'm|this is))\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})`)

	// "in Austin" / "near Portland" / "from San Antonio"
	locationRe = regexp.MustCompile(`(?:(?i:\bin|\bnear|\bfrom))\s+([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)?)`)

	// "Austin, TX"
	cityStateRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?),\s*([A-Z]{2})\b`)

	// "$450,000" / "$1.2m" / "450k"
	dollarRe    = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?\s?[kKmM]?\b`)
	shorthandRe = regexp.MustCompile(`\b\d{3,4}\s?[kK]\b`)
)

// quoteKeywords flag pricing intent in visitor messages
var quoteKeywords = []string{"quote", "price", "how much", "cost", "rate"}

// nonNames are trigger-phrase tails that look like names but aren't.
// "I'm Looking for insurance" should not produce a lead named "Looking".
var nonNames = map[string]bool{
	"Looking":    true,
	"Interested": true,
	"Trying":     true,
	"Hoping":     true,
	"Going":      true,
	"Sorry":      true,
	"Sure":       true,
	"Not":        true,
}

// Extract scans visitor messages in conversation order and returns the
// best-effort field set. When a field is mentioned more than once, the
// most recent mention wins.
func Extract(messages []string) Fields {
	var f Fields

	for _, msg := range messages {
		if email := lastMatch(emailRe, msg); email != "" {
			f.Email = email
		}
		if phone := lastMatch(phoneRe, msg); phone != "" {
			f.Phone = phone
		}
		if name := extractName(msg); name != "" {
			f.Name = name
		}
		if loc := extractLocation(msg); loc != "" {
			f.Location = loc
		}
		if value := extractHomeValue(msg); value != "" {
			f.HomeValue = value
		}
		if hasQuoteIntent(msg) {
			f.QuoteIntent = true
		}
	}

	return f
}

// lastMatch returns the final match of re in s, or "".
func lastMatch(re *regexp.Regexp, s string) string {
	matches := re.FindAllString(s, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

func extractName(msg string) string {
	matches := nameRe.FindAllStringSubmatch(msg, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		candidate := matches[i][1]
		first := strings.Fields(candidate)[0]
		if nonNames[first] {
			continue
		}
		return candidate
	}
	return ""
}

func extractLocation(msg string) string {
	// "City, ST" is the strongest signal
	if m := cityStateRe.FindAllStringSubmatch(msg, -1); len(m) > 0 {
		last := m[len(m)-1]
		return last[1] + ", " + last[2]
	}

	matches := locationRe.FindAllStringSubmatch(msg, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		candidate := matches[i][1]
		// Trigger-phrase collisions: "from Jane" after "this is Jane" etc.
		first := strings.Fields(candidate)[0]
		if nonNames[first] {
			continue
		}
		return candidate
	}
	return ""
}

func extractHomeValue(msg string) string {
	if value := lastMatch(dollarRe, msg); value != "" {
		return strings.ReplaceAll(value, "$ ", "$")
	}
	return lastMatch(shorthandRe, msg)
}

// hasQuoteIntent reports whether the message uses pricing language.
func hasQuoteIntent(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range quoteKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
