package enclookup

import (
	"errors"
	"testing"
)

func TestID(t *testing.T) {
	t.Run("IsNil", testIDIsNil)
	t.Run("String", testIDString)
	t.Run("Token", testIDToken)
}

func testIDIsNil(t *testing.T) {
	var id ID
	if !id.IsNil() {
		t.Errorf("zero ID.IsNil() = false, want true")
	}
	if !Nil.IsNil() {
		t.Errorf("Nil.IsNil() = false, want true")
	}
	if FromInt64(7).IsNil() {
		t.Errorf("FromInt64(7).IsNil() = true, want false")
	}
}

func testIDString(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{0, "0"},
		{42, "42"},
		{-2147483648, "-2147483648"},
		{9223372036854775807, "9223372036854775807"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID(%d).String() = %q, want %q", int64(tt.id), got, tt.want)
		}
		parsed, err := ParseDecimal(tt.want)
		if err != nil {
			t.Fatalf("ParseDecimal(%q) failed: %v", tt.want, err)
		}
		if parsed != tt.id {
			t.Errorf("ParseDecimal(%q) = %v, want %v", tt.want, parsed, tt.id)
		}
	}
}

func testIDToken(t *testing.T) {
	c := MustNew("s1")
	tok, err := ID(1).Token(c)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "nfqcgn4trg3voqphs2chtz45ae" {
		t.Errorf("ID(1).Token() = %q, want nfqcgn4trg3voqphs2chtz45ae", tok)
	}
	got, err := c.DecodeID(tok)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("DecodeID(%q) = %v, want 1", tok, got)
	}
}

func TestParseDecimal(t *testing.T) {
	invalid := []string{"", "abc", "1.5", "99999999999999999999"}
	for _, s := range invalid {
		if got, err := ParseDecimal(s); err == nil {
			t.Errorf("ParseDecimal(%q) = %v, want error", s, got)
		}
	}
}

func TestMust(t *testing.T) {
	if got := Must(ID(3), nil); got != 3 {
		t.Errorf("Must(3, nil) = %v, want 3", got)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("Must(_, err) did not panic")
		}
	}()
	Must(Nil, errors.New("boom"))
}
