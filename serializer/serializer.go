// Package serializer marshals records to JSON with their primary key and
// foreign keys replaced by tokens, and reverses the substitution on input.
package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/paraglidehq/enclookup"
)

// DefaultLookupField is used when Serializer.LookupField is empty.
const DefaultLookupField = "pk"

// FieldError reports the JSON field that failed to encode or decode.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("serializer: field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Serializer rewrites the lookup field and related fields of JSON objects.
// Field names are top-level JSON keys as produced by encoding/json.
type Serializer struct {
	Cipher        *enclookup.Cipher
	LookupField   string
	RelatedFields []string
}

func (s Serializer) fields() []string {
	lookup := s.LookupField
	if lookup == "" {
		lookup = DefaultLookupField
	}
	return append([]string{lookup}, s.RelatedFields...)
}

// Marshal encodes v with encoding/json and replaces every configured field
// holding an integer (or an array of integers) with tokens. Missing fields
// and nulls are left alone.
func (s Serializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return s.encodeObject(data)
}

// MarshalList is Marshal for a value that encodes to a JSON array of objects.
func (s Serializer) MarshalList(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(data)
	if !res.IsArray() {
		return nil, fmt.Errorf("serializer: %T does not encode to an array", v)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range res.Array() {
		obj, err := s.encodeObject([]byte(elem.Raw))
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(obj)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Unmarshal replaces tokens in the configured fields of data with the
// integers they encode and decodes the result into v. Malformed tokens
// yield a *FieldError wrapping enclookup.ErrMalformedToken.
func (s Serializer) Unmarshal(data []byte, v any) error {
	data, err := s.decodeObject(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s Serializer) encodeObject(data []byte) ([]byte, error) {
	for _, name := range s.fields() {
		path := escapePath(name)
		res := gjson.GetBytes(data, path)
		if !res.Exists() || res.Type == gjson.Null {
			continue
		}

		var repl any
		if res.IsArray() {
			toks := make([]any, 0, len(res.Array()))
			for _, elem := range res.Array() {
				if elem.Type == gjson.Null {
					toks = append(toks, nil)
					continue
				}
				tok, err := s.encodeNumber(elem)
				if err != nil {
					return nil, &FieldError{Field: name, Err: err}
				}
				toks = append(toks, tok)
			}
			repl = toks
		} else {
			tok, err := s.encodeNumber(res)
			if err != nil {
				return nil, &FieldError{Field: name, Err: err}
			}
			repl = tok
		}

		var err error
		data, err = sjson.SetBytes(data, path, repl)
		if err != nil {
			return nil, &FieldError{Field: name, Err: err}
		}
	}
	return data, nil
}

func (s Serializer) encodeNumber(res gjson.Result) (string, error) {
	if res.Type != gjson.Number || strings.ContainsAny(res.Raw, ".eE") {
		return "", fmt.Errorf("expected integer, got %s", res.Type)
	}
	return s.Cipher.Encode(res.Int())
}

func (s Serializer) decodeObject(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("serializer: invalid JSON")
	}
	for _, name := range s.fields() {
		path := escapePath(name)
		res := gjson.GetBytes(data, path)
		if !res.Exists() || res.Type == gjson.Null {
			continue
		}

		var repl any
		if res.IsArray() {
			ids := make([]any, 0, len(res.Array()))
			for _, elem := range res.Array() {
				if elem.Type == gjson.Null {
					ids = append(ids, nil)
					continue
				}
				n, err := s.decodeToken(elem)
				if err != nil {
					return nil, &FieldError{Field: name, Err: err}
				}
				ids = append(ids, n)
			}
			repl = ids
		} else {
			n, err := s.decodeToken(res)
			if err != nil {
				return nil, &FieldError{Field: name, Err: err}
			}
			repl = n
		}

		var err error
		data, err = sjson.SetBytes(data, path, repl)
		if err != nil {
			return nil, &FieldError{Field: name, Err: err}
		}
	}
	return data, nil
}

func (s Serializer) decodeToken(res gjson.Result) (int64, error) {
	switch res.Type {
	case gjson.String:
		return s.Cipher.Decode(res.Str)
	case gjson.Null:
		return 0, enclookup.ErrNullToken
	default:
		return 0, enclookup.ErrTokenType
	}
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
	":", `\:`,
)

func escapePath(name string) string {
	return pathEscaper.Replace(name)
}
