package approval

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
)

// RequestKind supplies everything kind-specific; the engine is otherwise identical
// for leave, forget-scan and swap-day requests.
type RequestKind interface {
	// Kind is the stored discriminator, e.g. "leave"
	Kind() string
	// Path is the URL segment the kind is served under, e.g. "forget-scan"
	Path() string
	// Prepare validates raw subject fields and derives the natural key parts
	Prepare(fields map[string]any) (*Subject, error)
}

// Subject is a validated, normalised kind payload
type Subject struct {
	Fields  map[string]any
	DateKey string
	Variant string
	Summary string
}

// NaturalKey binds the subject to an employee
func (s *Subject) NaturalKey(employeeID string) NaturalKey {
	return NaturalKey{EmployeeID: employeeID, DateKey: s.DateKey, Variant: s.Variant}
}

var validate = validator.New()

// DecodeSubject copies loosely typed input fields into a kind's input struct (bson tags)
// and runs its validate tags.
func DecodeSubject(fields map[string]any, out any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: request body is empty", ErrValidation)
	}
	raw, err := bson.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed field: %v", ErrValidation, err)
	}
	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", toSnake(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD field
func ParseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrValidation, field)
	}
	return d, nil
}

// ParseClock parses an HH:MM field
func ParseClock(field, value string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: %s must be HH:MM", ErrValidation, field)
	}
	return t.Format("15:04"), nil
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
