package maggtomic

import (
	"errors"
	"fmt"

	"github.com/polyneme/maggtomic/codec"
)

// Shareable ID format defaults (spec.md §6): 10 characters including a
// 2-character checksum, hyphenated every 5.
const (
	ShareableIDLength     = 10
	ShareableIDSplitEvery = 5
)

// EncodeShareableID renders the decoded form of a shareable ID (an
// entity's vaem:id datom value) back to its user-facing string, e.g.
// "3sbk2-5j060".
func EncodeShareableID(decoded uint64) string {
	return codec.Encode(decoded, ShareableIDSplitEvery, ShareableIDLength-2, true)
}

// DecodeShareableID parses a user-supplied shareable ID string, applying
// the canonicalising normalisation and validating its checksum.
func DecodeShareableID(encoded string) (uint64, error) {
	n, err := codec.Decode(encoded, true)
	if err != nil {
		if errors.Is(err, codec.ErrInvalidIdentifier) {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, encoded, err)
		}
		return 0, err
	}
	return n, nil
}

// GenerateShareableID allocates a fresh, random shareable ID in the
// default format. Uniqueness against existing vaem:id datoms is the
// transaction engine's responsibility (spec.md §4.5), not this layer's.
func GenerateShareableID() (string, uint64, error) {
	s, err := codec.Generate(ShareableIDLength, ShareableIDSplitEvery, true)
	if err != nil {
		return "", 0, fmt.Errorf("generating shareable id: %w", err)
	}
	n, err := DecodeShareableID(s)
	if err != nil {
		return "", 0, err
	}
	return s, n, nil
}
