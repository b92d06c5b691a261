package store

import (
	"context"
	"fmt"

	"github.com/polyneme/maggtomic"
)

// allocateShareableID generates a fresh shareable ID and retries until it
// is not already used by an existing vaem:id datom (spec.md §4.5: "retry
// generation until the constraint holds"). The store's unique partial
// index on (a=OID_VAEM_ID, v) is the ultimate backstop against a race
// between this check and the write; this loop just keeps that backstop
// from being hit in the common case.
func allocateShareableID(ctx context.Context, s *DatomStore) (int64, error) {
	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, decoded, err := maggtomic.GenerateShareableID()
		if err != nil {
			return 0, err
		}
		n := int64(decoded)

		cur, err := s.Find(ctx, Filter{A: &maggtomic.OidVaemID, V: n})
		if err != nil {
			return 0, err
		}
		taken := cur.Next(ctx)
		cerr := cur.Err()
		_ = cur.Close(ctx)
		if cerr != nil {
			return 0, cerr
		}
		if !taken {
			return n, nil
		}
	}
	return 0, fmt.Errorf("maggtomic: could not allocate a unique shareable id after %d attempts", maxAttempts)
}
