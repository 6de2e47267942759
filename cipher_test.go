package enclookup

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

// Vectors produced by an independent AES-128-ECB implementation.
var goldenTokens = []struct {
	secret string
	id     int64
	token  string
}{
	{"s1", 1, "nfqcgn4trg3voqphs2chtz45ae"},
	{"k", 0, "co4j5kpqlb5lsuc7y2i6kl6gli"},
	{"s1", -2147483648, "fou4kwvtc5m7lxdbslyu73cjam"},
	{"s1", 2147483647, "7kpzcwictwxx7hc7g2w47qvsxa"},
	{"first", 42, "535pskyrcw6orlndoy5omwv4sq"},
	{"second", 42, "rt26to5qhrgsw67jv2cado23mu"},
	// 16 digits: a full block of padding follows.
	{"s1", 1234567890123456, "umn2gple723ghxok3oosbuon3pf27nxr4sjoxrvxmq7fct66tt6a"},
	{"s1", math.MaxInt64, "snvze3pt5nc4wl4khr24ybrr37ojdcz4aaepmon4po544bjwkyca"},
	{"s1", math.MinInt64, "zdzsdh2tyyx2iszpfc3ulktr7oyhjjoqitjfh2ehdagw4ndrtoja"},
}

func TestCipherGolden(t *testing.T) {
	for _, tt := range goldenTokens {
		c := MustNew(tt.secret)
		got, err := c.Encode(tt.id)
		if err != nil {
			t.Fatalf("Encode(%d) with %q failed: %v", tt.id, tt.secret, err)
		}
		if got != tt.token {
			t.Errorf("Encode(%d) with %q = %q, want %q", tt.id, tt.secret, got, tt.token)
		}
		n, err := c.Decode(tt.token)
		if err != nil {
			t.Fatalf("Decode(%q) with %q failed: %v", tt.token, tt.secret, err)
		}
		if n != tt.id {
			t.Errorf("Decode(%q) with %q = %d, want %d", tt.token, tt.secret, n, tt.id)
		}
	}
}

func TestCipherRoundTrip(t *testing.T) {
	c := MustNew("blabla&&;;asdfblaasdf")

	ranges := [][2]int64{
		{-10, 10},
		{1, 10000},
		{math.MinInt32, math.MinInt32 + 10000},
		{math.MaxInt32 - 10000, math.MaxInt32},
		{math.MaxInt64 - 100, math.MaxInt64},
		{math.MinInt64, math.MinInt64 + 100},
	}
	for _, r := range ranges {
		for i := r[0]; ; i++ {
			roundTrip(t, c, i)
			if i == r[1] {
				break
			}
		}
	}
}

func roundTrip(t *testing.T, c *Cipher, id int64) {
	t.Helper()
	tok, err := c.Encode(id)
	if err != nil {
		t.Fatalf("Encode(%d) failed: %v", id, err)
	}
	got, err := c.Decode(tok)
	if err != nil {
		t.Fatalf("Decode(Encode(%d)) failed: %v", id, err)
	}
	if got != id {
		t.Fatalf("Decode(Encode(%d)) = %d", id, got)
	}
}

func TestCipherDeterminism(t *testing.T) {
	a := MustNew("s1")
	b := MustNew("s1")
	for _, id := range []int64{0, 1, -1, 99, math.MaxInt32} {
		x, _ := a.Encode(id)
		y, _ := a.Encode(id)
		z, _ := b.Encode(id)
		if x != y || x != z {
			t.Errorf("Encode(%d) not deterministic: %q %q %q", id, x, y, z)
		}
	}
}

func TestCipherKeySeparation(t *testing.T) {
	first := MustNew("first")
	second := MustNew("second")
	for id := int64(-500); id <= 500; id++ {
		a, _ := first.Encode(id)
		b, _ := second.Encode(id)
		if a == b {
			t.Fatalf("Encode(%d) identical for distinct secrets: %q", id, a)
		}
	}
}

func TestCipherTokenShape(t *testing.T) {
	c := MustNew("shape")
	for _, id := range []int64{0, 7, -7, 123456789, math.MinInt32, math.MaxInt64} {
		tok, err := c.Encode(id)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(tok, "=") {
			t.Errorf("Encode(%d) = %q contains padding", id, tok)
		}
		for _, r := range tok {
			if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
				t.Fatalf("Encode(%d) = %q: unexpected character %q", id, tok, r)
			}
		}
	}
}

func TestCipherTokenLength(t *testing.T) {
	c := MustNew("len")
	tests := []struct {
		id   int64
		want int
	}{
		{1, 26},
		{math.MinInt32, 26},
		{999999999999999, 26},  // 15 digits, one block
		{1000000000000000, 52}, // 16 digits, two blocks
		{math.MinInt64, 52},
	}
	for _, tt := range tests {
		tok, _ := c.Encode(tt.id)
		if len(tok) != tt.want {
			t.Errorf("len(Encode(%d)) = %d, want %d", tt.id, len(tok), tt.want)
		}
	}
}

func TestCipherDecodeCaseInsensitive(t *testing.T) {
	c := MustNew("s1")
	tok, _ := c.Encode(31337)

	mixed := []byte(tok)
	for i := range mixed {
		if i%2 == 0 {
			mixed[i] = strings.ToUpper(string(mixed[i]))[0]
		}
	}

	for _, s := range []string{tok, strings.ToUpper(tok), string(mixed)} {
		got, err := c.Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", s, err)
		}
		if got != 31337 {
			t.Errorf("Decode(%q) = %d, want 31337", s, got)
		}
	}
}

func TestCipherDecodeMalformed(t *testing.T) {
	c := MustNew("s1")
	other, _ := MustNew("other").Encode(1)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"Empty", "", ErrEmptyToken},
		{"SingleChar", "1", ErrTokenAlignment},
		{"Punctuation", "not-valid-base32!!", ErrTokenEncoding},
		{"BadAlphabet", "nfqcgn4trg3voqphs2chtz45a1", ErrTokenEncoding},
		{"Newline", "nfqcgn4trg3voqph\ns2chtz45ae", ErrTokenEncoding},
		{"Padded", "nfqcgn4trg3voqphs2chtz45ae======", ErrTokenEncoding},
		{"PaddedAligned", "nfqcgn4trg3voqphs2chtz45ae==", ErrTokenEncoding},
		{"ShortCiphertext", "aaaaaaaa", ErrTokenAlignment},
		{"Truncated", "nfqcgn4trg3voqphs2chtz45", ErrTokenAlignment},
		{"WrongKey", other, ErrTokenPayload},
		{"ZeroBlock", strings.Repeat("a", 26), ErrTokenPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decode(tt.token)
			if err == nil {
				t.Fatalf("Decode(%q) = %d, want error", tt.token, got)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) err = %v, want %v", tt.token, err, tt.want)
			}
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Decode(%q) err = %v does not wrap ErrMalformedToken", tt.token, err)
			}
		})
	}
}

func TestCipherDecodeValue(t *testing.T) {
	c := MustNew("s1")
	tok := "nfqcgn4trg3voqphs2chtz45ae"

	t.Run("String", func(t *testing.T) {
		got, err := c.DecodeValue(tok)
		if err != nil || got != 1 {
			t.Fatalf("DecodeValue(%q) = %d, %v, want 1, <nil>", tok, got, err)
		}
	})
	t.Run("Bytes", func(t *testing.T) {
		got, err := c.DecodeValue([]byte(tok))
		if err != nil || got != 1 {
			t.Fatalf("DecodeValue([]byte) = %d, %v, want 1, <nil>", got, err)
		}
	})
	t.Run("Nil", func(t *testing.T) {
		var nilString *string
		for _, v := range []any{nil, nilString, []byte(nil)} {
			if _, err := c.DecodeValue(v); !errors.Is(err, ErrNullToken) {
				t.Errorf("DecodeValue(%#v) err = %v, want ErrNullToken", v, err)
			}
		}
	})
	t.Run("WrongType", func(t *testing.T) {
		for _, v := range []any{1, 1.5, true, map[string]any{}} {
			_, err := c.DecodeValue(v)
			if !errors.Is(err, ErrTokenType) || !errors.Is(err, ErrMalformedToken) {
				t.Errorf("DecodeValue(%#v) err = %v, want ErrTokenType", v, err)
			}
		}
	})
}

func TestCipherErrorsOmitSecrets(t *testing.T) {
	secret := "super-secret-value"
	c := MustNew(secret)
	for _, tok := range []string{"", "1", "!!!!!!!!", strings.Repeat("b", 26)} {
		_, err := c.Decode(tok)
		if err == nil {
			t.Fatalf("Decode(%q) succeeded", tok)
		}
		if strings.Contains(err.Error(), secret) {
			t.Errorf("Decode(%q) error leaks secret: %v", tok, err)
		}
	}
}

func TestCipherDerivedKey(t *testing.T) {
	c := MustNew("s1")
	k := c.DerivedKey()
	if len(k) != 16 {
		t.Fatalf("len(DerivedKey()) = %d, want 16", len(k))
	}
	k[0] ^= 0xff
	if c.DerivedKey()[0] == k[0] {
		t.Error("DerivedKey() returned the internal array")
	}
}

func TestCipherConcurrent(t *testing.T) {
	c := MustNew("concurrent")
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := base; i < base+500; i++ {
				tok, err := c.Encode(i)
				if err != nil {
					t.Errorf("Encode(%d) failed: %v", i, err)
					return
				}
				got, err := c.Decode(tok)
				if err != nil || got != i {
					t.Errorf("Decode(Encode(%d)) = %d, %v", i, got, err)
					return
				}
			}
		}(int64(g) * 1000)
	}
	wg.Wait()
}

func TestPad(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 16},
		{"1", 16},
		{"123456789012345", 16},
		{"1234567890123456", 32},
		{"-9223372036854775808", 32},
	}
	for _, tt := range tests {
		got := pad([]byte(tt.in), BlockSize, padChar)
		if len(got) != tt.want {
			t.Errorf("len(pad(%q)) = %d, want %d", tt.in, len(got), tt.want)
		}
		if !strings.HasPrefix(string(got), tt.in) || strings.Trim(string(got[len(tt.in):]), "{") != "" {
			t.Errorf("pad(%q) = %q", tt.in, got)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	c := MustNew("bench")
	for i := 0; i < b.N; i++ {
		c.Encode(int64(i))
	}
}

func BenchmarkDecode(b *testing.B) {
	c := MustNew("bench")
	tok, _ := c.Encode(123456)
	for i := 0; i < b.N; i++ {
		c.Decode(tok)
	}
}
