package environ

import "strings"

// segment is one piece of a parsed template: literal text, or the name of a
// variable to substitute.
type segment struct {
	text string
	name string
	ref  bool
}

// parseTemplate splits s into literal and ${NAME} segments. A "${" that is
// not closed, or whose contents are not a valid name, stays literal text.
func parseTemplate(s string) []segment {
	var out []segment
	var lit strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end >= 0 {
				name := s[i+2 : i+2+end]
				if validName(name) {
					if lit.Len() > 0 {
						out = append(out, segment{text: lit.String()})
						lit.Reset()
					}
					out = append(out, segment{name: name, ref: true})
					i += end + 3
					continue
				}
			}
		}
		lit.WriteByte(s[i])
		i++
	}
	if lit.Len() > 0 {
		out = append(out, segment{text: lit.String()})
	}
	return out
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// Expand substitutes every ${NAME} in s with lookup(NAME). Names lookup
// does not know expand to the empty string. Substituted values are not
// scanned again.
func Expand(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for _, seg := range parseTemplate(s) {
		if !seg.ref {
			b.WriteString(seg.text)
			continue
		}
		if v, ok := lookup(seg.name); ok {
			b.WriteString(v)
		}
	}
	return b.String()
}

// ExpandMap is Expand against a plain map.
func ExpandMap(s string, vars map[string]string) string {
	return Expand(s, func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
}
