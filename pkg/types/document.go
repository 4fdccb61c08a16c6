package types

// Document is a loosely-typed JSON object persisted in a json/jsonb column.
type Document map[string]any

// Clone returns a shallow copy; nested values are shared.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the string stored at key, or "" when absent or not a string.
func (d Document) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the bool stored at key.
func (d Document) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}
