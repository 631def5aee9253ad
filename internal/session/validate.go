package session

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// ValidateUsername checks that a chat username can be embedded in REST paths
// and STOMP destinations.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("username is required")
	case strings.ContainsAny(username, "/?#% \t\r\n"):
		return fmt.Errorf("invalid username %q: must not contain '/', '?', '#', '%%' or whitespace", username)
	}
	return nil
}
