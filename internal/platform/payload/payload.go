// Package payload decodes JSON request bodies leniently: a body that is not
// valid JSON is treated as an empty object so that field validation, not a
// parse error, decides the response.
package payload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/clinicalquery/internal/platform/httperror"
)

// Decode reads the request body into dst, a pointer to a struct. It reports
// whether the body was well-formed; on failure dst is reset to its zero value.
// Only I/O errors, including an expired request context, are returned. The body is read in full; size is bounded by
// the body limit middleware.
func Decode(c echo.Context, dst any) (bool, error) {
	body := c.Request().Body
	if body == nil {
		return false, nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	if err := c.Request().Context().Err(); err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	return Unmarshal(raw, dst), nil
}

// ReadError maps an error from Decode to the response error. Errors that
// already carry a status, such as a body limit's 413, pass through, and so do
// context errors so the timeout middleware can answer them.
func ReadError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return httperror.New(http.StatusBadRequest, "unable to read request body")
}

// Unmarshal is Decode without the echo context.
func Unmarshal(raw []byte, dst any) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		reset(dst)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		reset(dst)
		return false
	}
	return true
}

func reset(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().SetZero()
	}
}

// Field is a JSON scalar that may be absent, null, a string, a number or a
// boolean. Numbers and booleans keep their literal text. Objects and arrays
// are treated as absent.
type Field struct {
	Value string
	Set   bool
}

func (f *Field) UnmarshalJSON(b []byte) error {
	*f = Field{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field{Value: s, Set: true}
	case '{', '[':
	default:
		*f = Field{Value: string(b), Set: true}
	}
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Blank reports whether the field is absent or holds only whitespace.
func (f Field) Blank() bool {
	return !f.Set || strings.TrimSpace(f.Value) == ""
}

func (f Field) String() string { return f.Value }
