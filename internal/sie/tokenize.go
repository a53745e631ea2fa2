package sie

import (
	"strings"
)

// Tokenize splits one line into fields. Spaces separate fields except inside
// double quotes. Quote characters are kept on the field; use Unquote to strip them.
func Tokenize(line string) []string {
	var (
		fields   []string
		buf      strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			buf.WriteRune(r)
		case r == ' ' && !inQuotes:
			if buf.Len() > 0 {
				fields = append(fields, buf.String())
				buf.Reset()
			}
		default:
			buf.WriteRune(r)
		}
	}

	if buf.Len() > 0 {
		fields = append(fields, buf.String())
	}

	return fields
}

// Unquote removes one pair of surrounding double quotes, if present.
func Unquote(field string) string {
	if len(field) >= 2 && strings.HasPrefix(field, `"`) && strings.HasSuffix(field, `"`) {
		return field[1 : len(field)-1]
	}
	return field
}

// isObjectToken reports whether a token belongs to a brace-delimited object list.
func isObjectToken(tok string) bool {
	return strings.HasPrefix(tok, "{") || strings.HasSuffix(tok, "}")
}

// collapseObjectLists joins the tokens of a brace-delimited object list such
// as `{1 "100" 6 "P1"}` back into a single field so positional fields after it
// keep their index.
func collapseObjectLists(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "{") || strings.HasSuffix(tok, "}") {
			out = append(out, tok)
			continue
		}
		j := i
		for j+1 < len(tokens) && !strings.HasSuffix(tokens[j], "}") {
			j++
		}
		out = append(out, strings.Join(tokens[i:j+1], " "))
		i = j
	}
	return out
}

// unclosedObjectList returns the first collapsed token that opens an object
// list without closing it. Such a token runs to the end of the line.
func unclosedObjectList(collapsed []string) (string, bool) {
	for _, tok := range collapsed {
		if strings.HasPrefix(tok, "{") && !strings.HasSuffix(tok, "}") {
			return tok, true
		}
	}
	return "", false
}
