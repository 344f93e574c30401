package logger

import (
	"log/slog"
	"strconv"
	"strings"
)

// Commands whose arguments carry credentials. Their args are masked
// wholesale when logged through CommandArgs.
var credentialCommands = map[string]bool{
	"AUTH":  true,
	"HELLO": true, // may carry AUTH user password
}

// Key name fragments that indicate sensitive attribute values.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive masks attribute values whose key names suggest
// credentials. Installed as the handler's ReplaceAttr hook.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		keyLower := strings.ToLower(a.Key)
		for _, pattern := range sensitiveKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if a.Value.String() != "" {
					return slog.String(a.Key, redactedValue)
				}
				break
			}
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// CommandArgs renders command arguments for logging. Credential
// commands get their arguments masked; everything else is truncated so
// large values do not bloat log lines.
func CommandArgs(name string, args [][]byte) []string {
	if credentialCommands[strings.ToUpper(name)] {
		out := make([]string, len(args))
		for i := range args {
			out[i] = redactedValue
		}
		return out
	}

	const maxArgLen = 64
	out := make([]string, len(args))
	for i, arg := range args {
		if len(arg) > maxArgLen {
			out[i] = string(arg[:maxArgLen]) + "...(" + strconv.Itoa(len(arg)) + " bytes)"
			continue
		}
		out[i] = string(arg)
	}
	return out
}

// IsSensitiveKey reports whether a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
