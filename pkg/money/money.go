package money

import (
	"fmt"
	"math"
	"strings"
)

// The ledger stores USDC in integer micro-units (1 USDC = 1_000_000).
// Decimal strings exist only at the transport boundary.

const MicrosPerUSDC int64 = 1_000_000

const maxFractionDigits = 6

// ParseUSDC converts a decimal string such as "5", "5.00" or "0.000001"
// into micro-USDC. Anything malformed, negative-signed, or finer than six
// fractional digits is rejected.
func ParseUSDC(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("signed amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("malformed amount %q", s)
	}
	if len(frac) > maxFractionDigits {
		return 0, fmt.Errorf("amount %q exceeds %d fractional digits", s, maxFractionDigits)
	}

	var micros int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		d := int64(c - '0')
		if micros > (1<<62)/10 {
			return 0, fmt.Errorf("amount %q overflows", s)
		}
		micros = micros*10 + d
	}
	if micros > (math.MaxInt64-(MicrosPerUSDC-1))/MicrosPerUSDC {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	micros *= MicrosPerUSDC

	scale := MicrosPerUSDC / 10
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		micros += int64(c-'0') * scale
		scale /= 10
	}

	return micros, nil
}

// FormatUSDC renders micro-USDC as a decimal string with two to six
// fractional digits ("7.50", "0.000001").
func FormatUSDC(micros int64) string {
	sign := ""
	if micros < 0 {
		sign = "-"
		micros = -micros
	}

	whole := micros / MicrosPerUSDC
	frac := fmt.Sprintf("%06d", micros%MicrosPerUSDC)
	for len(frac) > 2 && frac[len(frac)-1] == '0' {
		frac = frac[:len(frac)-1]
	}
	return fmt.Sprintf("%s%d.%s", sign, whole, frac)
}
