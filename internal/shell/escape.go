package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Escape quotes s so a POSIX shell reads it back as one unchanged word. Only
// a NUL byte can't be quoted.
func Escape(s string) (string, error) {
	if s == "" {
		return "''", nil
	}
	if strings.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("escaping %q: %w", s, ErrNulByte)
	}
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// control characters and invalid UTF-8 are kept verbatim inside single quotes
		return singleQuote(s), nil
	}
	return q, nil
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// EscapeAll quotes every argument and joins them with spaces.
func EscapeAll(args ...string) (string, error) {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		q, err := Escape(arg)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}
