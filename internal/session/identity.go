package session

// Identity is the authenticated user of a session: the subject id, its display
// name and the bearer credential issued at login.
type Identity struct {
	Username string
	FullName string
	Token    string
}

// Valid reports whether the identity can be used to talk to the server.
func (id Identity) Valid() bool {
	return id.Username != "" && id.Token != ""
}

// DisplayName returns the full name, falling back to the username.
func (id Identity) DisplayName() string {
	if id.FullName != "" {
		return id.FullName
	}
	return id.Username
}
