package registry

// MergeSystemInfo applies the device registration merge rule:
// merged = system_info ∪ {custom_metadata := server_overlay}, and
// merged.supported_features = system_info.supported_features ∪
// server_overlay.additional_features, and merged.tags = server_overlay.tags
// when present. The server overlay never overrides auto-detected scalar
// fields (os, memory, resolution, ...) — it only ever adds the three keys
// named above. overlay may be nil (no per-device overlay configured).
func MergeSystemInfo(systemInfo, overlay map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(systemInfo)+2)
	for k, v := range systemInfo {
		merged[k] = v
	}
	if overlay == nil {
		return merged
	}

	if custom, ok := overlay["custom_metadata"]; ok {
		merged["custom_metadata"] = custom
	}

	supported := toStringSlice(systemInfo["supported_features"])
	additional := toStringSlice(overlay["additional_features"])
	if len(supported) > 0 || len(additional) > 0 {
		merged["supported_features"] = unionStrings(supported, additional)
	}

	if tags, ok := overlay["tags"]; ok {
		merged["tags"] = tags
	}

	return merged
}

func toStringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
