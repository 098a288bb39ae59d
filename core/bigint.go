package core

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"
)

// BigInt wraps big.Int so reserve indices and token amounts can live in
// store columns. Values are persisted as decimal strings; they routinely
// exceed 64 bits (rays are scaled by 1e27).
type BigInt struct {
	big.Int
}

// NewBigInt copies x into a BigInt. A nil x yields zero.
func NewBigInt(x *big.Int) BigInt {
	var b BigInt
	if x != nil {
		b.Int.Set(x)
	}
	return b
}

// NewBigIntFromInt64 builds a BigInt from an int64.
func NewBigIntFromInt64(x int64) BigInt {
	var b BigInt
	b.Int.SetInt64(x)
	return b
}

// Big returns a detached copy of the value.
func (b BigInt) Big() *big.Int {
	return new(big.Int).Set(&b.Int)
}

// Value implements driver.Valuer.
func (b BigInt) Value() (driver.Value, error) {
	return b.Int.String(), nil
}

// Scan implements sql.Scanner.
func (b *BigInt) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		b.Int.SetInt64(0)
		return nil
	case int64:
		b.Int.SetInt64(v)
		return nil
	case string:
		return b.setString(v)
	case []byte:
		return b.setString(string(v))
	default:
		return fmt.Errorf("bigint: cannot scan %T", value)
	}
}

func (b *BigInt) setString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		b.Int.SetInt64(0)
		return nil
	}
	if _, ok := b.Int.SetString(s, 10); !ok {
		return fmt.Errorf("bigint: invalid value %q", s)
	}
	return nil
}

// GormDataType tells the store to use a text column.
func (BigInt) GormDataType() string {
	return "text"
}

// MarshalJSON renders the value as a string to keep it precise in views.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.Int.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	return b.setString(s)
}
