package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential such as DATABASE_URL. Every formatting path
// (fmt, JSON, slog) prints a placeholder; Unmask returns the raw value.
type SecretString string

func (s SecretString) String() string { return redactedPlaceholder }

func (s SecretString) GoString() string { return redactedPlaceholder }

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue keeps the secret out of structured logs.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the plaintext. Call it only where the value is handed to a
// driver or client.
func (s SecretString) Unmask() string {
	return string(s)
}
