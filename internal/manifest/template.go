package manifest

import "strings"

// RenderTemplate substitutes every "{{name}}" placeholder present in vars
// with its string value. Placeholders whose name is not present in vars
// pass through unchanged, per spec.md §4.C.
func RenderTemplate(template string, vars map[string]string) string {
	names, positions := scanPlaceholders(template)
	if len(names) == 0 {
		return template
	}
	var b strings.Builder
	last := 0
	for i, pos := range positions {
		b.WriteString(template[last:pos.start])
		if val, ok := vars[names[i]]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(template[pos.start:pos.end])
		}
		last = pos.end
	}
	b.WriteString(template[last:])
	return b.String()
}

// ExtractVariables returns the distinct placeholder names referenced by a
// template, in first-occurrence order.
func ExtractVariables(template string) []string {
	names, _ := scanPlaceholders(template)
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

type span struct{ start, end int }

// scanPlaceholders walks the template once, finding every "{{ name }}"
// occurrence and returning the trimmed name plus the byte span of the full
// "{{...}}" token (used by RenderTemplate to know what to splice out).
func scanPlaceholders(template string) ([]string, []span) {
	var names []string
	var spans []span
	i := 0
	for {
		start := strings.Index(template[i:], "{{")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(template[start+2:], "}}")
		if end < 0 {
			break
		}
		end = start + 2 + end
		name := strings.TrimSpace(template[start+2 : end])
		if name != "" {
			names = append(names, name)
			spans = append(spans, span{start: start, end: end + 2})
		}
		i = end + 2
	}
	return names, spans
}
