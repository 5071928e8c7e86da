package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liberta/backend/internal/domain/carrier"
)

var (
	// ErrDuplicateStoreMapping is returned when two credentials claim the
	// same store
	ErrDuplicateStoreMapping = errors.New("reconcile: store mapped to more than one credential")
	// ErrNoCredentials is returned when the router is built without any
	// active credential
	ErrNoCredentials = errors.New("reconcile: no active carrier credentials")
)

// Router resolves which carrier credential speaks for a store: exact store
// mapping first, then the primary catch-all, then an exhaustive scan in
// index order.
type Router struct {
	// creds holds active credentials sorted by ascending index
	creds   []carrier.Credential
	byStore map[string]carrier.Credential
	primary *carrier.Credential
}

// NewRouter builds a router over the active credentials. A store appearing
// in more than one credential's list is a configuration error.
func NewRouter(credentials []carrier.Credential) (*Router, error) {
	r := &Router{byStore: make(map[string]carrier.Credential)}

	for _, cred := range credentials {
		if !cred.Active {
			continue
		}
		if err := cred.Validate(); err != nil {
			return nil, err
		}
		r.creds = append(r.creds, cred)

		for _, storeID := range cred.Stores {
			if _, taken := r.byStore[storeID]; taken {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateStoreMapping, storeID)
			}
			r.byStore[storeID] = cred
		}
	}

	if len(r.creds) == 0 {
		return nil, ErrNoCredentials
	}

	sort.Slice(r.creds, func(i, j int) bool { return r.creds[i].Index < r.creds[j].Index })

	for i := range r.creds {
		if r.creds[i].Primary {
			r.primary = &r.creds[i]
			break
		}
	}

	return r, nil
}

// ForStore returns the credential authorized for a store: the exact mapping
// when one exists, else the primary. The boolean is false when neither
// applies and the caller must fan out.
func (r *Router) ForStore(storeID string) (carrier.Credential, bool) {
	if cred, ok := r.byStore[storeID]; ok {
		return cred, true
	}
	if r.primary != nil {
		return *r.primary, true
	}
	return carrier.Credential{}, false
}

// Active returns all active credentials in ascending index order. Used for
// bulk fetches and fan-out lookups, where lower index wins merge conflicts.
func (r *Router) Active() []carrier.Credential {
	out := make([]carrier.Credential, len(r.creds))
	copy(out, r.creds)
	return out
}
