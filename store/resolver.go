package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/polyneme/maggtomic"
)

// ResourceResolver is the bidirectional URI/CURIE <-> Ident mapping of
// spec.md §4.3: an in-process cache backed by uri-ref datoms in the
// store, with a per-URI single-flight guard (spec.md §5) serialising
// concurrent minting of the same new URI's Ident. The four reserved
// Idents are pre-populated so they never round-trip through the store.
type ResourceResolver struct {
	store *DatomStore

	mu      sync.RWMutex
	byURI   map[string]maggtomic.Ident
	byIdent map[maggtomic.Ident]string

	inflight sync.Map // uri -> *sync.Mutex, guarding concurrent Ident minting
}

// NewResourceResolver builds a resolver over s, with its cache seeded
// from the reserved Idents.
func NewResourceResolver(s *DatomStore) *ResourceResolver {
	r := &ResourceResolver{
		store:   s,
		byURI:   make(map[string]maggtomic.Ident),
		byIdent: make(map[maggtomic.Ident]string),
	}
	for id, uri := range maggtomic.ReservedURIs {
		r.publish(uri, id)
	}
	return r
}

func (r *ResourceResolver) publish(uri string, id maggtomic.Ident) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byURI[uri] = id
	r.byIdent[id] = uri
}

func (r *ResourceResolver) lookupURI(uri string) (maggtomic.Ident, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byURI[uri]
	return id, ok
}

func (r *ResourceResolver) lookupIdent(id maggtomic.Ident) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uri, ok := r.byIdent[id]
	return uri, ok
}

// acquire single-flights resolution of one URI: concurrent callers for
// the same new URI block on the same mutex, so only one of them mints
// and persists its Ident (spec.md §5).
func (r *ResourceResolver) acquire(uri string) func() {
	v, _ := r.inflight.LoadOrStore(uri, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// IdsFor resolves each URI to its Ident (spec.md §4.3), minting and
// persisting fresh Idents — all sharing one transaction — for any URIs
// never seen before.
func (r *ResourceResolver) IdsFor(ctx context.Context, uris []string) (map[string]maggtomic.Ident, error) {
	if err := maggtomic.CheckURIs(uris); err != nil {
		return nil, err
	}

	out := make(map[string]maggtomic.Ident, len(uris))
	var misses []string
	for _, u := range uris {
		if id, ok := r.lookupURI(u); ok {
			out[u] = id
			continue
		}
		misses = append(misses, u)
	}
	if len(misses) == 0 {
		return out, nil
	}

	resolved, err := r.resolveMisses(ctx, misses)
	if err != nil {
		return nil, err
	}
	for u, id := range resolved {
		out[u] = id
	}
	return out, nil
}

func (r *ResourceResolver) resolveMisses(ctx context.Context, uris []string) (map[string]maggtomic.Ident, error) {
	out := make(map[string]maggtomic.Ident, len(uris))
	var stillMissing []string

	// Lock each distinct URI in sorted order and hold the locks until the
	// minted Idents are published, so a concurrent caller for the same new
	// URI waits here and then finds it in the cache.
	sorted := append([]string(nil), uris...)
	sort.Strings(sorted)
	for i, u := range sorted {
		if i > 0 && sorted[i-1] == u {
			continue
		}
		release := r.acquire(u)
		defer release()
		if id, ok := r.lookupURI(u); ok {
			out[u] = id
			continue
		}
		// Re-check the store directly: another process may have minted
		// and persisted this URI's Ident since our cache was last
		// populated.
		id, found, err := r.findPersisted(ctx, u)
		if err != nil {
			return nil, err
		}
		if found {
			r.publish(u, id)
			out[u] = id
			continue
		}
		stillMissing = append(stillMissing, u)
	}

	if len(stillMissing) == 0 {
		return out, nil
	}

	t := maggtomic.FreshIdent()
	minted := make(map[string]maggtomic.Ident, len(stillMissing))
	datoms := make([]maggtomic.Datom, 0, len(stillMissing)+2)
	for _, u := range stillMissing {
		id := maggtomic.FreshIdent()
		minted[u] = id
		datoms = append(datoms, maggtomic.Datom{E: id, A: maggtomic.OidURIRef, V: u, T: t, O: true})
	}

	decoded, err := allocateShareableID(ctx, r.store)
	if err != nil {
		return nil, err
	}
	datoms = append(datoms,
		maggtomic.Datom{E: t, A: maggtomic.OidGeneratedAtTime, V: maggtomic.InstantOf(t), T: t, O: true},
		maggtomic.Datom{E: t, A: maggtomic.OidVaemID, V: decoded, T: t, O: true},
	)

	if _, err := r.store.InsertBatch(ctx, datoms); err != nil {
		return nil, err
	}
	for u, id := range minted {
		r.publish(u, id)
		out[u] = id
	}
	logEntry().WithFields(logrus.Fields{"t": t.Hex(), "count": len(minted)}).Debug("minted idents for new uris")
	return out, nil
}

func (r *ResourceResolver) findPersisted(ctx context.Context, uri string) (maggtomic.Ident, bool, error) {
	cur, err := r.store.Find(ctx, Filter{A: &maggtomic.OidURIRef, V: uri})
	if err != nil {
		return maggtomic.NilIdent, false, err
	}
	defer cur.Close(ctx)
	if cur.Next(ctx) {
		return cur.Datom().E, true, nil
	}
	return maggtomic.NilIdent, false, cur.Err()
}

// RefsFor reverse-maps Idents to a user-facing reference: the URI
// (preferred) or, absent a uri-ref datom, "_:" + its shareable ID
// (spec.md §4.3). An Ident with neither fails with UnresolvableIdentError
// (spec.md §7): that indicates corruption, not a user error.
func (r *ResourceResolver) RefsFor(ctx context.Context, ids []maggtomic.Ident) (map[maggtomic.Ident]string, error) {
	out := make(map[maggtomic.Ident]string, len(ids))
	var misses []maggtomic.Ident
	for _, id := range ids {
		if uri, ok := r.lookupIdent(id); ok {
			out[id] = uri
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	cur, err := r.store.Find(ctx, Filter{EIn: misses, AIn: []maggtomic.Ident{maggtomic.OidURIRef, maggtomic.OidVaemID}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	type found struct {
		uri, vaem       string
		hasURI, hasVaem bool
	}
	byEntity := make(map[maggtomic.Ident]*found, len(misses))
	for cur.Next(ctx) {
		d := cur.Datom()
		if !d.O {
			continue
		}
		f := byEntity[d.E]
		if f == nil {
			f = &found{}
			byEntity[d.E] = f
		}
		switch d.A {
		case maggtomic.OidURIRef:
			if uri, ok := d.V.(string); ok {
				f.uri, f.hasURI = uri, true
			}
		case maggtomic.OidVaemID:
			if n, ok := asInt64(d.V); ok {
				f.vaem, f.hasVaem = "_:"+maggtomic.EncodeShareableID(uint64(n)), true
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	for _, id := range misses {
		f := byEntity[id]
		switch {
		case f != nil && f.hasURI:
			out[id] = f.uri
			r.publish(f.uri, id)
		case f != nil && f.hasVaem:
			out[id] = f.vaem
		default:
			return nil, &maggtomic.UnresolvableIdentError{Ident: id}
		}
	}
	return out, nil
}

func asInt64(v maggtomic.Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
