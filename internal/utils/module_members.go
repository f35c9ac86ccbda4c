package utils

import (
	"unicode"
	"unicode/utf8"
)

// ExternFallbackName builds a collision-free Go-style wrapper name for a C
// symbol pulled in through cimport when the header gives no nicer alias:
// libName="sqlite", symbol="open" -> "sqliteOpen".
func ExternFallbackName(libName, symbol string) string {
	if libName == "" || symbol == "" {
		return symbol
	}
	r, size := utf8.DecodeRuneInString(symbol)
	if r == utf8.RuneError && size == 0 {
		return libName
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return libName + symbol
	}
	return libName + string(upper) + symbol[size:]
}
