package records

// DeepMerge overlays b onto a without mutating either input. Nested maps merge
// recursively; every other value in b, including slices, replaces the entry in
// a. The debouncer uses this to fold a burst of partial updates into one
// payload in arrival order.
func DeepMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = copyValue(v)
	}
	for k, v := range b {
		if existing, ok := out[k].(map[string]any); ok {
			if nested, ok := v.(map[string]any); ok {
				out[k] = DeepMerge(existing, nested)
				continue
			}
		}
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
