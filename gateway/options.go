package gateway

import (
	"regexp"
	"strings"
	"unicode"
)

// Request options ride ahead of the code block in a double-bracket group,
// e.g. [[timeout=15 version="3.12"]]. Values may be bare words or quoted
// strings with \" and \\ escapes.
var optionsGroup = regexp.MustCompile(`\[\[(?s)(.*?)\]\]`)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseOptions extracts the option map from the text preceding a code
// block. No group means no options. A malformed group is a user error:
// silently ignoring it would run code with different limits than asked.
func parseOptions(prefix string) (map[string]string, error) {
	m := optionsGroup.FindStringSubmatch(prefix)
	if m == nil {
		return nil, nil
	}

	opts := make(map[string]string)
	rest := strings.TrimSpace(m[1])
	for rest != "" {
		var pair string
		pair, rest = nextPair(rest)

		key, value, ok := strings.Cut(pair, "=")
		if !ok || !identifier.MatchString(key) {
			return nil, userErrorf("I couldn't read `%s` as an option. Options look like `name=value`.", pair)
		}

		unquoted, err := unquote(value)
		if err != nil {
			return nil, userErrorf("The value of `%s` has unbalanced quotes.", key)
		}
		opts[key] = unquoted
		rest = strings.TrimSpace(rest)
	}
	return opts, nil
}

// nextPair cuts one key=value token off the front, keeping quoted values
// (which may contain spaces) intact.
func nextPair(s string) (pair, rest string) {
	inQuotes := false
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuotes:
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case unicode.IsSpace(r) && !inQuotes:
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func unquote(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	if len(s) < 2 || !strings.HasSuffix(s, `"`) {
		return "", &UserError{msg: "unbalanced quotes"}
	}

	var b strings.Builder
	escaped := false
	for _, r := range s[1 : len(s)-1] {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return "", &UserError{msg: "unbalanced quotes"}
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		return "", &UserError{msg: "unbalanced quotes"}
	}
	return b.String(), nil
}
