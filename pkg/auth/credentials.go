package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/askstream/pkg/api"
)

// Cookie names the backend expects the session credentials under.
const (
	SessionCookieName = "next-auth.session-token"
	CSRFCookieName    = "next-auth.csrf-token"
)

const redacted = "[redacted]"

// Credentials holds the backend session and CSRF tokens for one account.
//
// A Credentials value is immutable once constructed and is passed explicitly
// into every run; there is no process-wide copy. It is safe to share between
// concurrent runs. Token values never appear in logs or error messages.
type Credentials struct {
	sessionToken string
	csrfToken    string
}

// NewCredentials creates a Credentials value from raw token strings.
func NewCredentials(sessionToken, csrfToken string) *Credentials {
	return &Credentials{sessionToken: sessionToken, csrfToken: csrfToken}
}

// Validate reports an auth error when either token is empty.
func (c *Credentials) Validate() error {
	if c == nil || c.sessionToken == "" {
		return api.NewAuthError(api.CodeMissingToken, "session token is not set")
	}
	if c.csrfToken == "" {
		return api.NewAuthError(api.CodeMissingToken, "CSRF token is not set")
	}
	return nil
}

// Apply attaches the credentials to an outbound request as cookies.
// It fails with an auth error (missing_token) if either token is empty and
// leaves the request untouched in that case.
func (c *Credentials) Apply(req *http.Request) error {
	if err := c.Validate(); err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.sessionToken})
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: c.csrfToken})
	return nil
}

// String implements fmt.Stringer without revealing token values.
func (c *Credentials) String() string {
	return "Credentials{session:" + redacted + ", csrf:" + redacted + "}"
}

// GoString keeps %#v from printing the tokens.
func (c *Credentials) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer so that credentials passed to a logger
// are always redacted.
func (c *Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("session_set", c != nil && c.sessionToken != ""),
		slog.Bool("csrf_set", c != nil && c.csrfToken != ""),
	)
}
