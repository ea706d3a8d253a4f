package facts

// RemoveEmpties 递归移除 nil、空字符串、空列表与空字典
// 0 与 false 属于有效值，保留
func RemoveEmpties(cfg map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range cfg {
		switch t := v.(type) {
		case nil:
			continue
		case map[string]interface{}:
			if child := RemoveEmpties(t); len(child) > 0 {
				out[k] = child
			}
		case []interface{}:
			if len(t) == 0 {
				continue
			}
			if allDicts(t) {
				child := make([]interface{}, 0, len(t))
				for _, it := range t {
					child = append(child, RemoveEmpties(it.(map[string]interface{})))
				}
				out[k] = child
				continue
			}
			out[k] = t
		case []string:
			if len(t) > 0 {
				out[k] = t
			}
		case string:
			if t != "" {
				out[k] = t
			}
		default:
			out[k] = v
		}
	}
	return out
}

func allDicts(items []interface{}) bool {
	for _, it := range items {
		if _, ok := it.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}
