package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision represents the three possible outcomes of authentication.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// String returns a short label used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated MCP caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// Tier selects the rate limit bucket.
	Tier string

	// Scopes lists the authorization scopes granted.
	Scopes []string
}

// Owner returns the key used to scope stored conversation threads.
func (id *Identity) Owner() string {
	if id == nil {
		return ""
	}
	return id.Subject
}

// HasScope reports whether the identity was granted scope s.
func (id *Identity) HasScope(s string) bool {
	if id == nil {
		return false
	}
	for _, have := range id.Scopes {
		if have == s {
			return true
		}
	}
	return false
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators in order using three-outcome voting.
type Chain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Yes admits an anonymous identity; No rejects the request.
	DefaultDecision Decision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return Result{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", Tier: "default"},
		}
	}

	return Result{Decision: No, Err: ErrUnauthenticated}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// ok is false when the header is absent or uses another scheme.
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}
