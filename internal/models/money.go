package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// MicroUSD is a dollar amount held as an integer number of micro-dollars
// (1 USD = 1_000_000 micro-USD). It scans from and stores to Postgres
// numeric columns, so budget and pricing arithmetic never touches floats.
type MicroUSD int64

// USD converts to a float for presentation.
func (m MicroUSD) USD() float64 {
	return float64(m) / 1e6
}

// MicroUSDFromUSD converts a float dollar amount, rounding to the
// nearest micro-dollar.
func MicroUSDFromUSD(usd float64) MicroUSD {
	if usd >= 0 {
		return MicroUSD(usd*1e6 + 0.5)
	}
	return MicroUSD(usd*1e6 - 0.5)
}

// ParseMicroUSD parses a decimal string like "12.50" or "0.000075".
// Fractional digits beyond the sixth are truncated.
func ParseMicroUSD(s string) (MicroUSD, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		frac = frac[:6]
	}
	for len(frac) < 6 {
		frac += "0"
	}

	var total int64
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("invalid amount %q", s)
			}
			total = total*10 + int64(c-'0')
		}
	}

	if neg {
		total = -total
	}
	return MicroUSD(total), nil
}

// String renders the amount as a plain decimal, e.g. "1.250000".
func (m MicroUSD) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/1_000_000, v%1_000_000)
}

func (m MicroUSD) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *MicroUSD) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = 0
		return nil
	case int64:
		*m = MicroUSD(v * 1_000_000)
		return nil
	case float64:
		*m = MicroUSDFromUSD(v)
		return nil
	case []byte:
		parsed, err := ParseMicroUSD(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case string:
		parsed, err := ParseMicroUSD(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	default:
		return fmt.Errorf("MicroUSD: unsupported type %T", value)
	}
}
