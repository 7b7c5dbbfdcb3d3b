package domain

import (
	"strings"
)

// CompareTS compares two Slack message timestamps numerically and returns
// -1, 0, or 1. Slack timestamps are "seconds.fraction" decimal strings and
// must never be compared as floats, which lose precision on the fraction.
func CompareTS(a, b string) int {
	asec, afrac := splitTS(a)
	bsec, bfrac := splitTS(b)
	if c := compareDigits(asec, bsec); c != 0 {
		return c
	}
	afrac, bfrac = padRight(afrac, bfrac)
	return strings.Compare(afrac, bfrac)
}

func splitTS(ts string) (sec, frac string) {
	sec, frac, _ = strings.Cut(ts, ".")
	sec = strings.TrimLeft(sec, "0")
	return sec, frac
}

// compareDigits orders non-negative integer strings without leading zeros.
func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func padRight(a, b string) (string, string) {
	for len(a) < len(b) {
		a += "0"
	}
	for len(b) < len(a) {
		b += "0"
	}
	return a, b
}
