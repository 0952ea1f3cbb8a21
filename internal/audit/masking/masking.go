package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
// A bot token of the form "<id>:<secret>" keeps its id visible.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 8 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

func splitPrefix(value string) (string, string) {
	cut := strings.IndexByte(value, ':')
	if cut == -1 {
		cut = strings.LastIndexByte(value, '_')
	}
	if cut == -1 || cut == len(value)-1 {
		return "", value
	}
	return value[:cut+1], value[cut+1:]
}
