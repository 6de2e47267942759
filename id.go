package enclookup

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// Compile-time interface checks for ID
var (
	_ fmt.Stringer  = ID(0)
	_ driver.Valuer = ID(0)
	_ sql.Scanner   = (*ID)(nil)
)

// ID is a raw integer primary key as stored in the database. It marshals to
// JSON as a plain number; tokens are produced by a Cipher.
type ID int64

var Nil ID = 0

func (id ID) Int64() int64 {
	return int64(id)
}

func (id ID) IsNil() bool {
	return id == Nil
}

// String returns the decimal form. It is never a token.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Token encodes id with c.
func (id ID) Token(c *Cipher) (string, error) {
	return c.EncodeID(id)
}

// Value implements driver.Valuer for database storage
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

// Scan implements sql.Scanner for database retrieval
func (id *ID) Scan(src interface{}) error {
	if src == nil {
		*id = Nil
		return nil
	}
	switch v := src.(type) {
	case ID:
		*id = v
		return nil
	case int64:
		*id = ID(v)
		return nil
	case int32:
		*id = ID(v)
		return nil
	case []byte:
		return id.parse(string(v))
	case string:
		return id.parse(v)
	default:
		return fmt.Errorf("enclookup: cannot scan %T", src)
	}
}

func (id *ID) parse(s string) error {
	parsed, err := ParseDecimal(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseDecimal parses a decimal string into an ID.
func ParseDecimal(s string) (ID, error) {
	if len(s) == 0 {
		return Nil, errors.New("enclookup: empty string")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Nil, fmt.Errorf("enclookup: invalid decimal: %w", err)
	}
	return ID(n), nil
}

// FromInt64 returns an ID from an int64.
func FromInt64(n int64) ID {
	return ID(n)
}

// Must panics if err is not nil
func Must(id ID, err error) ID {
	if err != nil {
		panic(err)
	}
	return id
}
