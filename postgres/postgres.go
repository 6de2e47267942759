// Package postgres installs SQL functions that produce and read the same
// tokens as enclookup.Cipher, so queries and reports run inside the
// database can speak tokens directly.
//
// The functions take the derived key as an argument; it is never stored.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paraglidehq/enclookup"
)

// Version of the SQL function set installed by Migrate.
const Version = 1

var ErrVersionMismatch = errors.New("enclookup: database functions are newer than this application")

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migrate runs the idempotent function migration. If the database already
// holds a newer function set, returns ErrVersionMismatch.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _enclookup_config (
			id int PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			version int NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("enclookup: create config table: %w", err)
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT version FROM _enclookup_config`).Scan(&version)
	switch {
	case err == nil:
		if version > Version {
			return fmt.Errorf("%w: db has version=%d, app has version=%d", ErrVersionMismatch, version, Version)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("enclookup: read config: %w", err)
	}

	if _, err := db.ExecContext(ctx, functionsSQL); err != nil {
		return fmt.Errorf("enclookup: run migrations: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO _enclookup_config (id, version) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version
	`, Version)
	if err != nil {
		return fmt.Errorf("enclookup: store version: %w", err)
	}
	return nil
}

// GetVersion reads the installed function version.
func GetVersion(ctx context.Context, db Querier) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM _enclookup_config`).Scan(&version)
	return version, err
}

// Key returns the bind argument for the key parameter of the SQL functions.
func Key(c *enclookup.Cipher) []byte {
	return c.DerivedKey()
}

// Encode runs enclookup_encode in the database.
func Encode(ctx context.Context, db Querier, c *enclookup.Cipher, id int64) (string, error) {
	var token string
	err := db.QueryRowContext(ctx, `SELECT enclookup_encode($1, $2)`, id, Key(c)).Scan(&token)
	return token, err
}

// Decode runs enclookup_decode in the database.
func Decode(ctx context.Context, db Querier, c *enclookup.Cipher, token string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT enclookup_decode($1, $2)`, token, Key(c)).Scan(&id)
	return id, err
}

const functionsSQL = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

-- RFC 4648 base32, lowercase, no padding
CREATE OR REPLACE FUNCTION enclookup_b32encode(data bytea)
  RETURNS text
  LANGUAGE plpgsql
  IMMUTABLE PARALLEL SAFE STRICT
  AS $$
DECLARE
  alphabet char(32) := 'abcdefghijklmnopqrstuvwxyz234567';
  result text := '';
  buffer int := 0;
  bits int := 0;
BEGIN
  FOR i IN 0..length(data) - 1 LOOP
    buffer := (buffer << 8) | get_byte(data, i);
    bits := bits + 8;
    WHILE bits >= 5 LOOP
      result := result || substr(alphabet, ((buffer >> (bits - 5)) & 31) + 1, 1);
      bits := bits - 5;
    END LOOP;
    buffer := buffer & ((1 << bits) - 1);
  END LOOP;
  IF bits > 0 THEN
    result := result || substr(alphabet, ((buffer << (5 - bits)) & 31) + 1, 1);
  END IF;
  RETURN result;
END;
$$;

-- Case-insensitive inverse of enclookup_b32encode
CREATE OR REPLACE FUNCTION enclookup_b32decode(encoded text)
  RETURNS bytea
  LANGUAGE plpgsql
  IMMUTABLE PARALLEL SAFE STRICT
  AS $$
DECLARE
  alphabet char(32) := 'ABCDEFGHIJKLMNOPQRSTUVWXYZ234567';
  s text := upper(encoded);
  result bytea := ''::bytea;
  buffer int := 0;
  bits int := 0;
  v int;
BEGIN
  IF length(s) % 8 IN (1, 3, 6) THEN
    RAISE EXCEPTION 'enclookup: malformed token: bad block alignment' USING ERRCODE = '22023';
  END IF;
  FOR i IN 1..length(s) LOOP
    v := position(substr(s, i, 1) IN alphabet) - 1;
    IF v < 0 THEN
      RAISE EXCEPTION 'enclookup: malformed token: invalid base32' USING ERRCODE = '22023';
    END IF;
    buffer := (buffer << 5) | v;
    bits := bits + 5;
    IF bits >= 8 THEN
      result := result || set_byte('\x00'::bytea, 0, (buffer >> (bits - 8)) & 255);
      bits := bits - 8;
      buffer := buffer & ((1 << bits) - 1);
    END IF;
  END LOOP;
  RETURN result;
END;
$$;

CREATE OR REPLACE FUNCTION enclookup_encode(id bigint, key bytea)
  RETURNS text
  LANGUAGE sql
  IMMUTABLE PARALLEL SAFE STRICT
  AS $$
  SELECT enclookup_b32encode(encrypt(
    convert_to(rpad(id::text, (length(id::text) / 16 + 1) * 16, '{'), 'UTF8'),
    key,
    'aes-ecb/pad:none'
  ));
$$;

CREATE OR REPLACE FUNCTION enclookup_decode(token text, key bytea)
  RETURNS bigint
  LANGUAGE plpgsql
  IMMUTABLE PARALLEL SAFE STRICT
  AS $$
DECLARE
  ct bytea;
  plain text;
BEGIN
  IF token = '' THEN
    RAISE EXCEPTION 'enclookup: malformed token: empty' USING ERRCODE = '22023';
  END IF;
  ct := enclookup_b32decode(token);
  IF length(ct) = 0 OR length(ct) % 16 <> 0 THEN
    RAISE EXCEPTION 'enclookup: malformed token: bad block alignment' USING ERRCODE = '22023';
  END IF;
  -- escape keeps arbitrary bytes representable as text; digits pass unchanged
  plain := rtrim(encode(decrypt(ct, key, 'aes-ecb/pad:none'), 'escape'), '{');
  IF plain !~ '^-?[0-9]{1,19}$' THEN
    RAISE EXCEPTION 'enclookup: malformed token: payload is not an integer' USING ERRCODE = '22023';
  END IF;
  RETURN plain::bigint;
END;
$$;
`
