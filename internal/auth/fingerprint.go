package auth

import (
	"strconv"
	"unicode/utf16"
)

// Fingerprint maps an external identity subject to the value stored in
// users.fingerprint: the decimal sum of the subject's UTF-16 code units.
//
// This is NOT collision-resistant. Any two subjects that are permutations of
// each other, or whose code units happen to sum to the same total, share a
// fingerprint and therefore resolve to the same local account. Existing rows
// were written with this scheme, so changing it would orphan them.
func Fingerprint(subject string) string {
	sum := 0
	for _, unit := range utf16.Encode([]rune(subject)) {
		sum += int(unit)
	}
	return strconv.Itoa(sum)
}
