// Package currency converts prices between currencies via a USD pivot
// using an externally refreshed rate snapshot
package currency

import (
	"math"
	"strings"

	perr "bazaar/internal/platform/errors"
)

// Pivot is the common currency every rate is expressed against
const Pivot = "USD"

// Table is an immutable snapshot of rates to the pivot currency
// rates are units of currency per one USD
type Table map[string]float64

// zeroDecimal lists ISO 4217 currencies with no minor unit
// amounts in these currencies round to whole numbers
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "UYI": {},
	"VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Decimals returns the minor unit precision for code
func Decimals(code string) int {
	if _, ok := zeroDecimal[strings.ToUpper(code)]; ok {
		return 0
	}
	return 2
}

// Supported reports whether the table can convert between from and to
func (t Table) Supported(from, to string) bool {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from != Pivot {
		if r, ok := t[from]; !ok || r <= 0 {
			return false
		}
	}
	if to != Pivot {
		if r, ok := t[to]; !ok || r <= 0 {
			return false
		}
	}
	return true
}

// Convert converts amount from one currency to another
// Equal currencies return the amount unchanged without touching the table so
// the common case cannot pick up floating point drift from a 1.0 rate hop
// A missing or non positive rate yields an unsupported currency error rather
// than a silent 1:1 fallback
func Convert(amount float64, from, to string, t Table) (float64, error) {
	from, to = strings.ToUpper(strings.TrimSpace(from)), strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amount, nil
	}

	usd := amount
	if from != Pivot {
		r, ok := t[from]
		if !ok || r <= 0 {
			return 0, perr.UnsupportedCurrencyf("no rate for currency %s", from)
		}
		usd = amount / r
	}

	out := usd
	if to != Pivot {
		r, ok := t[to]
		if !ok || r <= 0 {
			return 0, perr.UnsupportedCurrencyf("no rate for currency %s", to)
		}
		out = usd * r
	}

	return Round(out, to), nil
}

// Round rounds amount to the minor unit precision of code
func Round(amount float64, code string) float64 {
	switch Decimals(code) {
	case 0:
		return math.Round(amount)
	default:
		return math.Round(amount*100) / 100
	}
}
