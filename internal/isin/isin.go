// Package isin models the 12-character International Securities Identification Number.
package isin

import (
	"errors"
	"fmt"
	"strconv"
)

// Length is the exact length of a canonical ISIN.
const Length = 12

var (
	// ErrInvalidLength is returned for inputs that are not exactly 12 characters.
	ErrInvalidLength = errors.New("isin: invalid length")
	// ErrInvalidCheckDigit is returned when the 12th character is not a decimal digit.
	ErrInvalidCheckDigit = errors.New("isin: invalid check digit")
)

// Isin is an immutable, validated security identifier.
// The check digit is validated as a digit only; it is not verified against the other characters.
type Isin struct {
	country        string
	nationalNumber string
	checkDigit     uint8
}

// Parse validates s and splits it into its positional parts.
func Parse(s string) (Isin, error) {
	if len(s) != Length {
		return Isin{}, fmt.Errorf("%w: %q has %d bytes", ErrInvalidLength, s, len(s))
	}
	last := s[Length-1]
	if last < '0' || last > '9' {
		return Isin{}, fmt.Errorf("%w: %q", ErrInvalidCheckDigit, s)
	}
	return Isin{
		country:        s[0:2],
		nationalNumber: s[2:11],
		checkDigit:     last - '0',
	}, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(s string) Isin {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Country returns the two-character country prefix.
func (i Isin) Country() string { return i.country }

// NationalNumber returns the nine-character national security number.
func (i Isin) NationalNumber() string { return i.nationalNumber }

// CheckDigit returns the trailing digit.
func (i Isin) CheckDigit() uint8 { return i.checkDigit }

// IsZero reports whether i was never parsed.
func (i Isin) IsZero() bool { return i.country == "" && i.nationalNumber == "" }

// String returns the canonical 12-character form.
func (i Isin) String() string {
	if i.IsZero() {
		return ""
	}
	return i.country + i.nationalNumber + strconv.Itoa(int(i.checkDigit))
}

// MarshalText implements encoding.TextMarshaler.
func (i Isin) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Isin) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
