package ruling

import (
	"fmt"
	"regexp"
	"strings"
)

// Identifier is a canonical ruling code such as "T-343/25" or "SU.045/25".
// The prefix before the first "-" or "." is the document type.
type Identifier string

// identifierPatterns are tried in order; the first one with a match wins.
// The SU family goes first so "SU-045/25" is never read as something else.
// Codes are unanchored: cells often glue them to the preceding word.
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SU\.\d{1,4}[/-]\d{2,4}`),
	regexp.MustCompile(`(?i)SU-\d{1,4}[/-]\d{2,4}`),
	regexp.MustCompile(`(?i)SU\d{1,4}[/-]\d{2,4}`),
	regexp.MustCompile(`(?i)[TCG]-\d{1,4}[/-]\d{2,4}`),
	regexp.MustCompile(`(?i)A-\d{1,4}[/-]\d{2,4}`),
}

// FindIdentifier returns the first identifier found in text, uppercased.
func FindIdentifier(text string) (Identifier, bool) {
	for _, pattern := range identifierPatterns {
		if match := pattern.FindString(text); match != "" {
			return Identifier(strings.ToUpper(match)), true
		}
	}
	return "", false
}

// ParseIdentifier accepts text that is exactly one identifier, ignoring case
// and surrounding whitespace.
func ParseIdentifier(text string) (Identifier, error) {
	text = strings.TrimSpace(text)
	id, ok := FindIdentifier(text)
	if !ok || len(id) != len(text) {
		return "", fmt.Errorf("invalid ruling identifier: %q", text)
	}
	return id, nil
}

func (id Identifier) String() string {
	return string(id)
}

// DocumentType returns the court prefix: "T", "C", "SU", "A" or "G".
func (id Identifier) DocumentType() string {
	s := string(id)
	// SU045/25 carries no separator before the number.
	if strings.HasPrefix(s, "SU") {
		return "SU"
	}
	if i := strings.IndexAny(s, "-."); i > 0 {
		return s[:i]
	}
	return "UNKNOWN"
}

// Slug is the identifier as a file name stem: "/" becomes "-" and spaces
// become "_".
func (id Identifier) Slug() string {
	return strings.NewReplacer("/", "-", " ", "_").Replace(string(id))
}

// URLs holds the addresses synthesized for one ruling.
type URLs struct {
	Document string
	HTML     string
}

// Synthesize derives the document and detail-page URLs for id under baseURL
// for the given publication year.
func Synthesize(baseURL string, id Identifier, year int) URLs {
	baseURL = strings.TrimRight(baseURL, "/")
	return URLs{
		Document: fmt.Sprintf("%s/sentencias/%d/%s.rtf", baseURL, year, documentStem(id)),
		HTML:     fmt.Sprintf("%s/relatoria/%d/%s.htm", baseURL, year, strings.ReplaceAll(string(id), "/", "-")),
	}
}

// documentStem lowercases id and dash-joins it. Only the dotted SU form
// drops its separator: "SU.045/25" becomes "su045-25" while "SU-045/25"
// becomes "su-045-25".
func documentStem(id Identifier) string {
	s := string(id)
	if strings.HasPrefix(strings.ToUpper(s), "SU.") {
		s = "su" + s[3:]
	}
	return strings.ToLower(strings.ReplaceAll(s, "/", "-"))
}
