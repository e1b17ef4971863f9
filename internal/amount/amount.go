// Package amount parses monetary amounts typed by chat clients, accepting
// Brazilian conventions ("1.500,50", "10 mil", "R$ 2k").
package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency markers stripped before parsing; longer tokens first.
var currencyTokens = []string{"us$", "r$", "usdt", "usd", "brl", "$"}

var multipliers = []struct {
	suffix string
	factor decimal.Decimal
}{
	{"kk", decimal.NewFromInt(1_000_000)},
	{"mm", decimal.NewFromInt(1_000_000)},
	{"mil", decimal.NewFromInt(1_000)},
	{"mi", decimal.NewFromInt(1_000_000)},
	{"k", decimal.NewFromInt(1_000)},
}

var (
	numberChars = regexp.MustCompile(`^[0-9.,]+$`)
	plainNumber = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// Parser implements routing.AmountParser.
type Parser struct{}

func (Parser) ParseAmount(text string) (decimal.Decimal, bool) {
	return Parse(text)
}

// Parse returns the amount when the whole text is a number, optionally with a
// currency marker and a k/mil/mi suffix. Negative numbers are rejected.
func Parse(text string) (decimal.Decimal, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\t' {
			return -1
		}
		return r
	}, s)

	factor := decimal.NewFromInt(1)
	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			s = strings.TrimSuffix(s, m.suffix)
			factor = m.factor
			break
		}
	}

	if s == "" || !numberChars.MatchString(s) {
		return decimal.Zero, false
	}
	s = normalizeSeparators(s)
	if !plainNumber.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Mul(factor), true
}

// normalizeSeparators rewrites s to use "." as the only decimal separator
// and no thousands separators.
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		// The separator that appears last is the decimal one.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	case dots == 1:
		if len(s)-strings.Index(s, ".")-1 == 3 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}
