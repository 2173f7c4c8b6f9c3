package api

import (
	"crypto/rand"
	"regexp"
	"strings"
)

const threadIDPrefix = "thread_"

var threadIDPattern = regexp.MustCompile(`^thread_[a-zA-Z0-9]{24}$`)

// NewThreadID returns "thread_" followed by 24 random base32 characters.
func NewThreadID() string {
	return threadIDPrefix + strings.ToLower(rand.Text()[:24])
}

// ValidateThreadID reports whether id has the thread ID shape. Any 24
// alphanumeric characters are accepted so IDs minted by older stores
// remain valid.
func ValidateThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}
