package reconcile

// deepMerge copies src into dst, recursing into nested objects. Non-object
// values (including arrays) replace what dst holds.
func deepMerge(dst, src map[string]any) {
	for key, val := range src {
		srcMap, srcIsMap := val.(map[string]any)
		if !srcIsMap {
			dst[key] = val
			continue
		}
		dstMap, dstIsMap := dst[key].(map[string]any)
		if !dstIsMap {
			dstMap = map[string]any{}
			dst[key] = dstMap
		}
		deepMerge(dstMap, srcMap)
	}
}

// ensureMerge copies only the keys dst lacks.
func ensureMerge(dst, src map[string]any) {
	for key, val := range src {
		existing, ok := dst[key]
		if !ok || existing == nil {
			dst[key] = val
			continue
		}
		srcMap, srcIsMap := val.(map[string]any)
		dstMap, dstIsMap := existing.(map[string]any)
		if srcIsMap && dstIsMap {
			ensureMerge(dstMap, srcMap)
		}
	}
}

// childMap returns m[key] as an object, replacing any non-object value.
func childMap(m map[string]any, key string) map[string]any {
	if child, ok := m[key].(map[string]any); ok {
		return child
	}
	child := map[string]any{}
	m[key] = child
	return child
}

// Lookup walks nested objects by key.
func Lookup(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
