package identity

import (
	"context"
	"unicode/utf16"
)

// HashResolver derives the id from a 32-bit polynomial string hash over the
// UTF-16 code units of the identity, widened to 64 bits and made positive.
// Distinct identities may share an id.
type HashResolver struct{}

func (HashResolver) Resolve(_ context.Context, external string) (int64, error) {
	v, err := normalize(external)
	if err != nil {
		return 0, err
	}
	return LegacyHash(v), nil
}

// LegacyHash returns the id the legacy service assigned to s.
func LegacyHash(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	id := int64(h)
	if id < 0 {
		id = -id
	}
	return id
}
