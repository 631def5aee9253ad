package session

import (
	"os"
	"strings"

	"github.com/matheus3301/nexus/internal/config"
)

const (
	// DefaultSessionName is used when nothing else names a session.
	DefaultSessionName = "main"
	// SessionEnv names the session when no --session flag is given.
	SessionEnv = "NEXUS_SESSION"
)

// Resolve picks the session name: the --session flag, then $NEXUS_SESSION,
// then default_session from config.toml, then "main". The result is not
// validated.
func Resolve(flagOverride string) string {
	for _, name := range []string{flagOverride, os.Getenv(SessionEnv)} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
