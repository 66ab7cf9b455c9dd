// Package merge implements the recursive merge used for partial agent-config
// updates: nested maps merge key-wise, scalars and arrays overwrite wholesale.
package merge

// Maps merges src into a copy of dst and returns the result. Neither input is
// mutated.
func Maps(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := out[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			out[k] = Maps(dstMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}
