package component

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/c360/mspikes/errors"
)

// Limits applied to node configuration before decoding.
const (
	MaxJSONSize     = 1 << 20
	MaxStringLength = 4096
	MaxConfigDepth  = 10
	MaxArraySize    = 1000
)

// Validatable is implemented by configs that can check themselves
type Validatable interface {
	Validate() error
}

// ConfigValidator bounds the size and shape of raw node configuration
type ConfigValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
	maxJSONSize  int
}

// NewConfigValidator creates a validator with the package limits
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		maxDepth:     MaxConfigDepth,
		maxArraySize: MaxArraySize,
		maxStringLen: MaxStringLength,
		maxJSONSize:  MaxJSONSize,
	}
}

// ValidateConfig checks rawConfig against the validator limits. Empty config is valid.
func (v *ConfigValidator) ValidateConfig(rawConfig json.RawMessage) error {
	if len(rawConfig) > v.maxJSONSize {
		return errors.WrapInvalid(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), v.maxJSONSize),
			"ConfigValidator", "ValidateConfig", "size check")
	}
	if len(rawConfig) == 0 {
		return nil
	}

	var config any
	decoder := json.NewDecoder(bytes.NewReader(rawConfig))
	decoder.UseNumber()
	if err := decoder.Decode(&config); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "ValidateConfig", "JSON parsing")
	}
	return v.validateValue(config, 0)
}

func (v *ConfigValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapInvalid(
			fmt.Errorf("JSON depth %d exceeds maximum %d", depth, v.maxDepth),
			"ConfigValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		if len(val) > v.maxStringLen {
			return errors.WrapInvalid(
				fmt.Errorf("string length %d exceeds maximum %d", len(val), v.maxStringLen),
				"ConfigValidator", "validateValue", "string length check")
		}
		if strings.ContainsRune(val, 0) {
			return errors.WrapInvalid(fmt.Errorf("string contains null byte"),
				"ConfigValidator", "validateValue", "null byte check")
		}
	case json.Number, bool, nil:
	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapInvalid(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ConfigValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", fmt.Sprintf("array element %d", i))
			}
		}
	case map[string]any:
		for key, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", fmt.Sprintf("object field '%s'", key))
			}
		}
	default:
		return errors.WrapInvalid(fmt.Errorf("unexpected type %T in config", value),
			"ConfigValidator", "validateValue", "type check")
	}
	return nil
}

// SafeUnmarshal validates rawConfig and decodes it into target, which must be
// a pointer. Unknown fields are rejected so that a misspelled parameter in a
// graph definition fails at build time. Targets implementing Validatable are
// checked after decoding.
func SafeUnmarshal(rawConfig json.RawMessage, target any) error {
	if err := NewConfigValidator().ValidateConfig(rawConfig); err != nil {
		return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "config validation")
	}
	if reflect.TypeOf(target).Kind() != reflect.Ptr {
		return errors.WrapInvalid(fmt.Errorf("target must be a pointer, got %T", target),
			"ConfigValidator", "SafeUnmarshal", "target type check")
	}

	if len(bytes.TrimSpace(rawConfig)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(rawConfig))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(target); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"ConfigValidator", "SafeUnmarshal", "JSON unmarshaling")
		}
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "struct validation")
		}
	}
	return nil
}

// ValidateName checks that name is usable as a node name: a letter or
// underscore followed by letters, digits or underscores.
func ValidateName(name string) error {
	if name == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty name", errors.ErrDefinition),
			"Component", "ValidateName", "name check")
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return errors.WrapInvalid(fmt.Errorf("%w: invalid name %q", errors.ErrDefinition, name),
			"Component", "ValidateName", "name check")
	}
	return nil
}
