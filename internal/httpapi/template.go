package httpapi

import (
	"fmt"
	"strings"
)

// ExpandTemplate replaces {name} placeholders in tmpl with values from
// params. It returns an error naming the first placeholder for which no
// value was supplied, rather than silently leaving it in the URL.
func ExpandTemplate(tmpl string, params map[string]string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("httpapi: unterminated placeholder in template %q", tmpl)
		}
		name := tmpl[i+1 : i+end]
		val, ok := params[name]
		if !ok {
			return "", fmt.Errorf("httpapi: unknown placeholder {%s} in template %q", name, tmpl)
		}
		b.WriteString(val)
		i += end + 1
	}
	return b.String(), nil
}
