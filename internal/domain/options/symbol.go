package options

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
)

// Kind is the option contract type
type Kind string

const (
	KindCall Kind = "call"
	KindPut  Kind = "put"
)

// String returns the display form ("CALL"/"PUT")
func (k Kind) String() string {
	return strings.ToUpper(string(k))
}

// Contract is the immutable identity of an option series
type Contract struct {
	Underlying string
	Strike     float64
	Expiration time.Time // date only, midnight local
	Kind       Kind
}

// OCCSymbol returns the canonical vendor ticker for the contract
func (c Contract) OCCSymbol() string {
	return FormatOCC(c.Underlying, c.Expiration, c.Kind, c.Strike)
}

const strikeDigits = 8

// ParseOCC parses an OCC-style option ticker such as "O:SPY251219C00650000".
// The "O:" / "O." prefix is optional. The trailing 8-digit strike is the
// anchor: the character before it must be C or P, the 6 characters before
// that are the YYMMDD expiration, and everything earlier is the underlying.
func ParseOCC(symbol string) (Contract, error) {
	s := symbol
	if strings.HasPrefix(s, "O:") || strings.HasPrefix(s, "O.") {
		s = s[2:]
	}

	// Minimum: 1-char ticker + 6-digit date + C/P + 8-digit strike
	if len(s) < 1+6+1+strikeDigits {
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "symbol too short: %q", symbol)
	}

	strikeStr := s[len(s)-strikeDigits:]
	if !allDigits(strikeStr) {
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "non-numeric strike in %q", symbol)
	}

	kindChar := s[len(s)-strikeDigits-1]
	var kind Kind
	switch kindChar {
	case 'C':
		kind = KindCall
	case 'P':
		kind = KindPut
	default:
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "expected C or P before strike in %q", symbol)
	}

	dateStr := s[len(s)-strikeDigits-1-6 : len(s)-strikeDigits-1]
	if !allDigits(dateStr) {
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "non-numeric expiration in %q", symbol)
	}

	underlying := s[:len(s)-strikeDigits-1-6]
	if underlying == "" || !allUpper(underlying) {
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "bad underlying in %q", symbol)
	}

	expiration, err := time.ParseInLocation("060102", dateStr, time.Local)
	if err != nil {
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "bad expiration %q in %q", dateStr, symbol)
	}

	var strikeThousandths int64
	for i := 0; i < len(strikeStr); i++ {
		strikeThousandths = strikeThousandths*10 + int64(strikeStr[i]-'0')
	}
	strike := float64(strikeThousandths) / 1000.0
	if strike <= 0 {
		return Contract{}, errors.Wrapf(errors.ErrMalformedSymbol, "zero strike in %q", symbol)
	}

	return Contract{
		Underlying: underlying,
		Strike:     strike,
		Expiration: expiration,
		Kind:       kind,
	}, nil
}

// FormatOCC builds the canonical OCC symbol with "O:" prefix
func FormatOCC(underlying string, expiration time.Time, kind Kind, strike float64) string {
	kindChar := "C"
	if kind == KindPut {
		kindChar = "P"
	}
	// round, not truncate: 650.0*1000 can land at 649999.999...
	thousandths := int64(strike*1000 + 0.5)
	return fmt.Sprintf("O:%s%s%s%08d", underlying, expiration.Format("060102"), kindChar, thousandths)
}

// DTE returns calendar days from local midnight today to the expiration date.
// Negative means the contract is expired.
func DTE(expiration time.Time, now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	exp := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, now.Location())
	// rounding absorbs DST-shortened/lengthened days
	return int(math.Round(exp.Sub(today).Hours() / 24))
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func allUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
