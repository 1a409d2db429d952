package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownField    = errors.New("unknown property")
	ErrMissingProperty = errors.New("missing required property")
	ErrInvalidProperty = errors.New("invalid property")
	ErrTrailingData    = errors.New("unexpected data after JSON value")
)

// Decoder unmarshals request bodies and parameters. A strict decoder rejects
// unknown properties and properties tagged validate:"required" that are
// absent or null.
type Decoder struct {
	strict   bool
	validate *validator.Validate
}

// NewDecoder returns a lenient decoder.
func NewDecoder() *Decoder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Decoder{validate: v}
}

// NewStrictDecoder returns a decoder failing on missing required and unknown properties.
func NewStrictDecoder() *Decoder {
	d := NewDecoder()
	d.strict = true
	return d
}

func (d *Decoder) Strict() bool {
	return d.strict
}

// Decode unmarshals data into v, which must be a pointer.
func (d *Decoder) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		if d.strict && isUnknownField(err) {
			return fmt.Errorf("%w: %v", ErrUnknownField, err)
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}

	if !d.strict {
		return nil
	}
	if err := d.validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// v is not a struct; nothing to check.
			return nil
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fieldErr := fieldErrs[0]
			if fieldErr.Tag() == "required" {
				return fmt.Errorf("%w: %s", ErrMissingProperty, fieldErr.Field())
			}
			return fmt.Errorf("%w: %s (%s)", ErrInvalidProperty, fieldErr.Field(), fieldErr.Tag())
		}
		return err
	}
	return nil
}

// DecodeRequest decodes a single request envelope.
func (d *Decoder) DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := d.Decode(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// unknown field errors from encoding/json are not typed.
func isUnknownField(err error) bool {
	return strings.HasPrefix(err.Error(), "json: unknown field")
}
