//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSubjectID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
//
// Justification: trust boundary functions must handle arbitrary input safely.
func FuzzParseSubjectID(f *testing.F) {
	f.Add("")
	f.Add("aave-v3")
	f.Add("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")
	f.Add("'; DROP TABLE subjects;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSubjectID(input)
		if err == nil {
			roundTrip, err2 := ParseSubjectID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParsePolicyID ensures accepted policy ids are positive and stable.
func FuzzParsePolicyID(f *testing.F) {
	f.Add("1")
	f.Add("0")
	f.Add("18446744073709551615")
	f.Add("18446744073709551616")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParsePolicyID(input)
		if err != nil {
			return
		}
		if id.IsZero() {
			t.Error("zero policy id accepted")
		}
		again, err := ParsePolicyID(id.String())
		if err != nil || again != id {
			t.Error("policy id failed round-trip")
		}
	})
}
