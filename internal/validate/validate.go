// Package validate cleans and screens free-text user queries before they
// reach the model.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted query, in characters.
const MaxQueryLength = 2000

// ValidationError is a rejected query. Its message is safe to echo to the
// caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var controlRx = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

var denyRx = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)\$\{.*?\}`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)__import__\s*\(`),
	regexp.MustCompile(`(?i)subprocess\.`),
	regexp.MustCompile(`(?i)os\.`),
	regexp.MustCompile(`(?i)system\s*\(`),
}

// Sanitize checks raw is a string of at most MaxQueryLength characters,
// strips control characters, rejects deny-listed patterns and trims
// surrounding whitespace. The result may be empty.
func Sanitize(raw any) (string, error) {
	q, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Reason: "Query must be a string"}
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", &ValidationError{Reason: "Query exceeds maximum length of 2000 characters"}
	}
	q = controlRx.ReplaceAllString(q, "")
	for _, rx := range denyRx {
		if rx.MatchString(q) {
			return "", &ValidationError{Reason: "Query contains potentially malicious content"}
		}
	}
	return strings.TrimSpace(q), nil
}
