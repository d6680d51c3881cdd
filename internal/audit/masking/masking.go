// Package masking redacts filing references before they reach the audit trail.
package masking

import "strings"

const (
	maskToken  = "****"
	keepSuffix = 4
)

// sensitiveKeys name metadata fields whose string values are redacted.
var sensitiveKeys = map[string]struct{}{
	"filing_reference": {},
	"reference":        {},
}

// MaskReference keeps the last four characters of a reference.
func MaskReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) <= keepSuffix {
		return maskToken
	}
	return maskToken + string(runes[len(runes)-keepSuffix:])
}

// MaskMetadata copies metadata, redacting sensitive keys at any depth.
// Blank keys are dropped.
func MaskMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskField(key, value)
	}
	return out
}

func maskField(key string, value any) any {
	switch v := value.(type) {
	case string:
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			return MaskReference(v)
		}
		return v
	case map[string]any:
		return MaskMetadata(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = maskField(key, item)
		}
		return items
	default:
		return value
	}
}
