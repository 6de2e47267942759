package enclookup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base32"
	"strconv"
	"strings"
)

const (
	// BlockSize is the AES block size the decimal plaintext is padded to.
	BlockSize = aes.BlockSize

	padChar = '{'

	// plaintextAlphabet is every byte strconv can emit for a base-10 int64.
	plaintextAlphabet = "0123456789-"

	b32Block = 8
)

func init() {
	if strings.ContainsRune(plaintextAlphabet, padChar) {
		panic("enclookup: padding character collides with the plaintext alphabet")
	}
}

// Cipher converts integer primary keys to opaque tokens and back.
//
// A Cipher is immutable after New and safe for concurrent use. Tokens are a
// pure function of (secret, id): the same pair always yields the same token.
type Cipher struct {
	key   [md5.Size]byte
	block cipher.Block
}

// New creates a Cipher keyed by secret. The AES-128 key is the MD5 digest
// of the secret's UTF-8 bytes.
func New(secret string) (*Cipher, error) {
	c := &Cipher{key: md5.Sum([]byte(secret))}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	c.block = block
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(secret string) *Cipher {
	c, err := New(secret)
	if err != nil {
		panic(err)
	}
	return c
}

// DerivedKey returns a copy of the AES key. It exists to hand the key to
// the SQL-side functions in package postgres; do not log it.
func (c *Cipher) DerivedKey() []byte {
	k := make([]byte, len(c.key))
	copy(k, c.key[:])
	return k
}

// Encode returns the token for id.
func (c *Cipher) Encode(id int64) (string, error) {
	plain := pad(strconv.AppendInt(nil, id, 10), BlockSize, padChar)

	ct := make([]byte, len(plain))
	c.encrypt(ct, plain)

	// ECB is a bijection per key, but a token that cannot be read back is
	// worse than an error here.
	check := make([]byte, len(ct))
	c.decrypt(check, ct)
	if !bytes.Equal(check, plain) {
		return "", ErrOutOfDomain
	}

	s := base32.StdEncoding.EncodeToString(ct)
	return strings.ToLower(strings.TrimRight(s, "=")), nil
}

// Decode returns the integer behind token. Decoding is case-insensitive.
// Every failure wraps ErrMalformedToken.
func (c *Cipher) Decode(token string) (int64, error) {
	if token == "" {
		return 0, ErrEmptyToken
	}
	// encoding/base32 skips line breaks and accepts padding; tokens carry
	// neither.
	if strings.ContainsAny(token, "\r\n=") {
		return 0, ErrTokenEncoding
	}

	s := strings.ToUpper(token)
	switch len(s) % b32Block {
	case 1, 3, 6:
		// No byte count encodes to these lengths.
		return 0, ErrTokenAlignment
	case 0:
	default:
		s += strings.Repeat("=", b32Block-len(s)%b32Block)
	}

	ct, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, ErrTokenEncoding
	}
	if len(ct) == 0 || len(ct)%BlockSize != 0 {
		return 0, ErrTokenAlignment
	}

	plain := make([]byte, len(ct))
	c.decrypt(plain, ct)

	n, err := strconv.ParseInt(string(bytes.TrimRight(plain, string(padChar))), 10, 64)
	if err != nil {
		return 0, ErrTokenPayload
	}
	return n, nil
}

// DecodeValue decodes an untyped value, typically one produced by
// encoding/json. nil is rejected with ErrNullToken and any value that is
// not a string with ErrTokenType.
func (c *Cipher) DecodeValue(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, ErrNullToken
	case string:
		return c.Decode(t)
	case *string:
		if t == nil {
			return 0, ErrNullToken
		}
		return c.Decode(*t)
	case []byte:
		if t == nil {
			return 0, ErrNullToken
		}
		return c.Decode(string(t))
	default:
		return 0, ErrTokenType
	}
}

// EncodeID returns the token for id.
func (c *Cipher) EncodeID(id ID) (string, error) {
	return c.Encode(int64(id))
}

// DecodeID returns the ID behind token.
func (c *Cipher) DecodeID(token string) (ID, error) {
	n, err := c.Decode(token)
	if err != nil {
		return Nil, err
	}
	return ID(n), nil
}

func (c *Cipher) encrypt(dst, src []byte) {
	for i := 0; i < len(src); i += BlockSize {
		c.block.Encrypt(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
}

func (c *Cipher) decrypt(dst, src []byte) {
	for i := 0; i < len(src); i += BlockSize {
		c.block.Decrypt(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
}

// pad appends c to b until its length is the next multiple of size. An
// already aligned b gets a full block.
func pad(b []byte, size int, c byte) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{c}, n)...)
}
