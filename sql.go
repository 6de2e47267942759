package enclookup

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
)

// NullID can be used with the standard sql package to represent an
// ID value that can be NULL in the database, such as an optional
// foreign key.
type NullID struct {
	ID    ID
	Valid bool
}

// Compile-time interface checks for NullID
var (
	_ driver.Valuer    = NullID{}
	_ sql.Scanner      = (*NullID)(nil)
	_ json.Marshaler   = NullID{}
	_ json.Unmarshaler = (*NullID)(nil)
)

// NewNullID returns a valid NullID holding id.
func NewNullID(id ID) NullID {
	return NullID{ID: id, Valid: true}
}

// Value implements the driver.Valuer interface.
func (n NullID) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.ID.Value()
}

// Scan implements the sql.Scanner interface.
func (n *NullID) Scan(src interface{}) error {
	if src == nil {
		n.ID, n.Valid = Nil, false
		return nil
	}

	n.Valid = true
	return n.ID.Scan(src)
}

var nullJSON = []byte("null")

// MarshalJSON marshals the NullID as null or the nested ID as a number.
func (n NullID) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return nullJSON, nil
	}
	return json.Marshal(n.ID.Int64())
}

// UnmarshalJSON unmarshals a NullID.
func (n *NullID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		n.ID, n.Valid = Nil, false
		return nil
	}
	var v int64
	err := json.Unmarshal(b, &v)
	n.ID, n.Valid = ID(v), err == nil
	return err
}

// Token encodes the nested ID with c. An invalid NullID has no token.
func (n NullID) Token(c *Cipher) (*string, error) {
	if !n.Valid {
		return nil, nil
	}
	t, err := c.EncodeID(n.ID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
