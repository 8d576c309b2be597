package decode

import (
	"regexp"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:json)?(.*?)```")
	bareKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	bareValueRe = regexp.MustCompile(`(:\s*)([A-Za-z_][A-Za-z0-9_./\\-]*)(\s*[,}\]])`)
)

// repair applies best-effort fixes to a reply that is almost JSON:
// markdown fences and surrounding prose are stripped, smart quotes are
// normalized, bare keys and bare scalar values are quoted, and missing
// closing braces are appended.
func repair(raw string) string {
	s := strings.TrimSpace(raw)

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	// Drop anything outside the outer braces
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		} else {
			s = s[start:]
		}
	}

	s = normalizeQuotes(s)
	s = quoteBareTokens(s)
	s = balanceBraces(s)

	return s
}

func normalizeQuotes(s string) string {
	replacer := strings.NewReplacer(
		"“", `"`, // left double quotation mark
		"”", `"`, // right double quotation mark
		"„", `"`, // double low-9 quotation mark
		"‘", "'",
		"’", "'",
	)
	return replacer.Replace(s)
}

// quoteBareTokens quotes unquoted object keys and unquoted scalar
// string values. JSON keywords are left alone; numbers never match
// because the token pattern requires a leading letter or underscore.
func quoteBareTokens(s string) string {
	s = bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)

	s = bareValueRe.ReplaceAllStringFunc(s, func(match string) string {
		sub := bareValueRe.FindStringSubmatch(match)
		switch sub[2] {
		case "true", "false", "null":
			return match
		}
		return sub[1] + `"` + sub[2] + `"` + sub[3]
	})

	return s
}

// balanceBraces appends closing braces for any left unclosed outside
// string literals
func balanceBraces(s string) string {
	depth := 0
	inString := false
	escaped := false

	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
			}
		}
	}

	if depth > 0 {
		s += strings.Repeat("}", depth)
	}
	return s
}

// outermostObject extracts the substring from the first '{' to its
// matching closing brace, ignoring everything outside. The second
// return value reports whether a balanced object was found.
func outermostObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	// Unterminated object; return the tail so the repair pass can
	// balance it
	return s[start:], false
}
