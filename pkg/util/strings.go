package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSymbol is returned for tickers outside the accepted format.
var ErrInvalidSymbol = errors.New("invalid symbol")

// symbolPattern admits exchange pairs (BTCUSDT), share classes (BRK.B) and dashed
// tickers (BTC-USD). Nothing that can act as a path separator.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,31}$`)

// SplitSymbols parses a comma/space separated list into upper-case, de-duplicated symbols,
// preserving first-seen order.
func SplitSymbols(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';' || r == '\n' || r == '\t'
	})
	return NormalizeSymbols(fields)
}

// NormalizeSymbols trims, upper-cases and de-duplicates symbols.
func NormalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsSymbol reports whether s, after normalization, is a well-formed ticker.
func IsSymbol(s string) bool {
	return symbolPattern.MatchString(NormalizeSymbol(s))
}

// ValidateSymbols rejects the first malformed entry.
func ValidateSymbols(symbols []string) error {
	for _, s := range symbols {
		if !IsSymbol(s) {
			return fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	return nil
}
