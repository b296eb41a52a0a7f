package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

func NewSecretString(value string) SecretString {
	return SecretString{value}
}

// SecretString holds a credential that must not show up in logs. It prints
// as "*****" and only Value returns the real content.
type SecretString struct {
	value string
}

func (s SecretString) String() string {
	return "*****"
}

func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

func (s SecretString) Value() string {
	return s.value
}

func (s SecretString) IsEmpty() bool {
	return s.value == ""
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SecretString) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &s.value); err != nil {
		return fmt.Errorf("unable to unmarshal secret: %w", err)
	}
	return nil
}

func (s *SecretString) UnmarshalYAML(unmarshal func(any) error) error {
	if err := unmarshal(&s.value); err != nil {
		return fmt.Errorf("unable to unmarshal secret: %w", err)
	}
	return nil
}

// UnmarshalText lets the secret be read from the environment.
func (s *SecretString) UnmarshalText(text []byte) error {
	s.value = string(text)
	return nil
}
