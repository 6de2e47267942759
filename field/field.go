// Package field provides the two adapters through which API code touches a
// Cipher: Lookup, which only ever encodes, and Related, which also decodes
// incoming tokens and resolves them to objects.
package field

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/paraglidehq/enclookup"
)

// ErrObjectNotFound is returned (possibly wrapped) by a Getter when no
// object has the requested primary key.
var ErrObjectNotFound = errors.New("field: object does not exist")

// Validation error codes.
const (
	CodeDoesNotExist  = "does_not_exist"
	CodeIncorrectType = "incorrect_type"
)

// ValidationError describes why incoming data could not be resolved to an
// object. Its message is safe to show to API clients.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Getter loads objects by primary key.
type Getter[T any] interface {
	Get(ctx context.Context, id int64) (T, error)
}

// GetterFunc adapts a function to Getter.
type GetterFunc[T any] func(ctx context.Context, id int64) (T, error)

func (f GetterFunc[T]) Get(ctx context.Context, id int64) (T, error) {
	return f(ctx, id)
}

// Lookup is a read-only field presenting a primary key as a token.
type Lookup struct {
	Cipher *enclookup.Cipher
}

// Represent returns the token for id.
func (f Lookup) Represent(id int64) (string, error) {
	return f.Cipher.Encode(id)
}

// Related is a read/write field referencing another object by token.
type Related[T any] struct {
	Cipher *enclookup.Cipher
	Source Getter[T]
}

// Represent returns the token for the related object's primary key.
func (f Related[T]) Represent(pk int64) (string, error) {
	return f.Cipher.Encode(pk)
}

// Resolve decodes data and loads the object it refers to. data may be a
// token, a JSON-quoted token, or nil.
func (f Related[T]) Resolve(ctx context.Context, data any) (T, error) {
	var zero T

	if s, ok := data.(string); ok && strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			data = unquoted
		}
	}

	pk, err := f.Cipher.DecodeValue(data)
	if err != nil {
		return zero, &ValidationError{
			Code:    CodeIncorrectType,
			Message: fmt.Sprintf("Incorrect type. Expected string value, received %s.", typeName(data)),
			Err:     err,
		}
	}

	obj, err := f.Source.Get(ctx, pk)
	if errors.Is(err, ErrObjectNotFound) {
		return zero, &ValidationError{
			Code:    CodeDoesNotExist,
			Message: fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(data)),
			Err:     err,
		}
	}
	if err != nil {
		return zero, err
	}
	return obj, nil
}

// Hyperlinked is a Related field presented as a URL whose last path
// segment is the token.
type Hyperlinked[T any] struct {
	Related[T]
}

// URL returns base with the token for pk appended as a path segment.
func (f Hyperlinked[T]) URL(base string, pk int64) (string, error) {
	tok, err := f.Represent(pk)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("field: parse base url: %w", err)
	}
	return u.JoinPath(tok, "/").String(), nil
}

// ResolveURL loads the object referenced by rawURL.
func (f Hyperlinked[T]) ResolveURL(ctx context.Context, rawURL string) (T, error) {
	var zero T
	u, err := url.Parse(rawURL)
	if err != nil {
		return zero, &ValidationError{
			Code:    CodeIncorrectType,
			Message: "Invalid hyperlink - No URL match.",
			Err:     err,
		}
	}
	return f.Resolve(ctx, lastSegment(u.Path))
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string, []byte:
		return "string"
	case float64, json.Number, int, int64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
