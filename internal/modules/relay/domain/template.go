package domain

import "strings"

// ExpandTemplate replaces {name} placeholders with values from vars.
// Placeholders without a value are left as written. Substituted values are
// inserted verbatim and never expanded again.
func ExpandTemplate(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += open + 1

		b.WriteString(rest[:open])
		name := rest[open+1 : end]
		if value, ok := vars[name]; ok && !strings.ContainsAny(name, "{ ") {
			b.WriteString(value)
			rest = rest[end+1:]
			continue
		}
		// Not a known placeholder: emit the brace and rescan after it.
		b.WriteByte('{')
		rest = rest[open+1:]
	}

	return b.String()
}
