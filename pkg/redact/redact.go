// Package redact masks secrets in structured payloads before they are logged or
// written to the audit trail.
package redact

import (
	"encoding/json"
	"net/http"
	"strings"
)

const Mask = "[FILTERED]"

// sensitiveFields are matched as substrings of lower-cased keys.
var sensitiveFields = []string{
	"password",
	"password_hash",
	"passwordhash",
	"token",
	"access_token",
	"refresh_token",
	"authorization",
	"secret",
	"api_key",
	"apikey",
	"session",
	"credential",
}

// IsSensitive reports whether a field or header name carries a secret.
func IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Value recursively masks sensitive keys of decoded JSON data.
func Value(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		filtered := make(map[string]interface{}, len(v))
		for key, value := range v {
			if IsSensitive(key) {
				filtered[key] = Mask
			} else {
				filtered[key] = Value(value)
			}
		}
		return filtered
	case []interface{}:
		filtered := make([]interface{}, len(v))
		for i, item := range v {
			filtered[i] = Value(item)
		}
		return filtered
	default:
		return v
	}
}

// Struct marshals any value through JSON and masks it. Keys follow the json tags.
func Struct(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return Value(decoded), nil
}

// Headers flattens headers, masking sensitive ones.
func Headers(headers http.Header) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, values := range headers {
		if IsSensitive(name) {
			filtered[name] = Mask
		} else {
			filtered[name] = strings.Join(values, ", ")
		}
	}
	return filtered
}

// Body masks a raw request or response body. Non-JSON bodies mentioning a
// sensitive word are dropped entirely.
func Body(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var jsonData interface{}
	if err := json.Unmarshal(body, &jsonData); err != nil {
		lower := strings.ToLower(string(body))
		for _, f := range sensitiveFields {
			if strings.Contains(lower, f) {
				return "[FILTERED - Contains sensitive data]"
			}
		}
		return string(body)
	}

	filteredBytes, err := json.Marshal(Value(jsonData))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(filteredBytes)
}
