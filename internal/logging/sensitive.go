package logging

import "strings"

// SensitiveFields contains field names whose values must never appear in
// logs. Playbook params and execution context are attacker-adjacent data,
// so anything credential-shaped gets masked.
var SensitiveFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
	"credentials":   true,
	"authorization": true,
	"session_id":    true,
	"cookie":        true,
	"webhook_url":   true,
	"sasl_password": true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveField reports whether a field name looks credential-shaped.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)

	if SensitiveFields[lower] {
		return true
	}

	for sensitive := range SensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}

	return false
}

// MaskParams returns a copy of action params safe to log, with sensitive
// values replaced.
func MaskParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		if IsSensitiveField(k) {
			out[k] = MaskedValue
		} else {
			out[k] = v
		}
	}
	return out
}

// MaskAPIKey masks an API key, showing only the first and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return MaskedValue
	}
	return key[:4] + "****" + key[len(key)-4:]
}
