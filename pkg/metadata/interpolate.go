package metadata

import "strings"

const maxInterpolationPasses = 8

// interpolate expands ${name} references from the model's properties.
// References to unknown properties are left in place. Nested references
// are expanded up to a fixed number of passes, which also stops
// self-referencing properties.
func (m *model) interpolate(s string) string {
	for pass := 0; pass < maxInterpolationPasses && strings.Contains(s, "${"); pass++ {
		next := expand(s, m.props)
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

func expand(s string, props map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start
		name := s[start+2 : end]
		b.WriteString(s[:start])
		if v, ok := props[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}
