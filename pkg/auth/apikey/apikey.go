// Package apikey authenticates MCP callers by static API keys. Keys are
// held only as SHA-256 digests and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/rhuss/askstream/pkg/auth"
)

type entry struct {
	digest   [32]byte
	identity auth.Identity
}

// Key is one configured API key and the identity it grants.
type Key struct {
	Key      string
	Identity auth.Identity
}

// Authenticator validates bearer tokens against a fixed key set.
type Authenticator struct {
	entries []entry
}

// New hashes the given keys. Plaintext keys are not retained.
func New(keys []Key) *Authenticator {
	a := &Authenticator{entries: make([]entry, 0, len(keys))}
	for _, k := range keys {
		a.entries = append(a.entries, entry{
			digest:   sha256.Sum256([]byte(k.Key)),
			identity: k.Identity,
		})
	}
	return a
}

// Authenticate abstains when no bearer token is present, votes No for an
// unknown or empty token and Yes with a copy of the matching identity.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	digest := sha256.Sum256([]byte(token))
	match := -1
	// Scan every entry so timing does not leak the position of a match.
	for i := range a.entries {
		if subtle.ConstantTimeCompare(digest[:], a.entries[i].digest[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	id := a.entries[match].identity
	id.Scopes = append([]string(nil), id.Scopes...)
	return auth.Result{Decision: auth.Yes, Identity: &id}
}
