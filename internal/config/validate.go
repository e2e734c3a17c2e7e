package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints of a decoded model. Semantic
// checks (bounds, rule references, cycles) belong to the schema loader.
func Validate(m *Model) error {
	if m == nil {
		return fmt.Errorf("config model is nil")
	}
	err := structValidator.Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(msgs, "\n- "))
}
