package domain

import (
	"strings"
	"unicode"
)

// ParseMode controls how user input is turned into search keys.
type ParseMode string

// Parse modes.
const (
	// ParseTerms splits input on whitespace. Double-quoted text stays one key.
	ParseTerms ParseMode = "terms"

	// ParsePhrase treats the whole input as one key.
	ParsePhrase ParseMode = "phrase"

	// ParseDirect passes the input through untouched for backends with
	// their own query syntax.
	ParseDirect ParseMode = "direct"
)

// IsValid returns true if the parse mode is recognised.
func (p ParseMode) IsValid() bool {
	return p == ParseTerms || p == ParsePhrase || p == ParseDirect
}

// ParseKeys turns user input into search keys.
func ParseKeys(input string, mode ParseMode) []string {
	switch mode {
	case ParseDirect:
		if input == "" {
			return nil
		}
		return []string{input}
	case ParsePhrase:
		input = strings.Join(strings.Fields(input), " ")
		if input == "" {
			return nil
		}
		return []string{input}
	default:
		return parseTerms(input)
	}
}

func parseTerms(input string) []string {
	var (
		keys    []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			keys = append(keys, s)
		}
		current.Reset()
	}
	for _, r := range input {
		switch {
		case r == '"':
			flush()
			quoted = !quoted
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return keys
}
