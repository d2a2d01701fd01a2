package tagextract

// Tag is one completed inline tag. Content is nil for self-closing tags
// and non-nil (possibly empty) for paired tags.
type Tag struct {
	Name       string
	Attributes map[string]any
	Content    *string
}

// attrValues accumulates attribute values in the order seen so duplicate
// keys can collapse into a string slice while single occurrences stay a
// plain string.
type attrValues map[string][]string

func (a attrValues) add(key, value string) {
	a[key] = append(a[key], value)
}

func (a attrValues) build() map[string]any {
	if len(a) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(a))
	for k, values := range a {
		if len(values) == 1 {
			out[k] = values[0]
		} else {
			out[k] = append([]string(nil), values...)
		}
	}
	return out
}

func isNameStart(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '_'
}

func isNameChar(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9') || b == '-' || b == '.' || b == ':'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
