package util

import (
	"fmt"
	"regexp"
	"strings"
)

const maxUsernameLength = 100

// Characters WebFinger allows in the user part of acct: without percent-encoding
var webFingerValidCharsRegex = regexp.MustCompile(`^[A-Za-z0-9\-._~!$&'()*+,;=]+$`)

// Names that collide with routes or well-known actors
var reservedUsernames = map[string]bool{
	"inbox":     true,
	"outbox":    true,
	"users":     true,
	"posts":     true,
	"metrics":   true,
	"admin":     true,
	"root":      true,
	"instance":  true,
	"actor":     true,
	"followers": true,
}

// ValidateUsername checks that a local username can be used as a federated actor name.
// Any non-ASCII or control character would need percent-encoding in WebFinger and is rejected.
func ValidateUsername(username string) error {
	if len(username) == 0 {
		return fmt.Errorf("username must be at least 1 character")
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", maxUsernameLength)
	}
	if !webFingerValidCharsRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters, only A-Z, a-z, 0-9, and -._~!$&'()*+,;= are allowed")
	}
	if reservedUsernames[strings.ToLower(username)] {
		return fmt.Errorf("username %q is reserved", username)
	}
	return nil
}
