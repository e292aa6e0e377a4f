package config

import "fmt"

// ConfigurationError names the offending field together with its valid range or set
type ConfigurationError struct {
	Field string
	Value string
	Valid string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q, must be %s", e.Field, e.Value, e.Valid)
}

func (e *ConfigurationError) Is(tgt error) bool {
	_, ok := tgt.(*ConfigurationError)
	return ok
}

func NewConfigurationError(field string, value any, valid string) error {
	return &ConfigurationError{Field: field, Value: fmt.Sprint(value), Valid: valid}
}
