package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/config"
	"github.com/matheus3301/nexus/internal/lock"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNotSignedIn = errors.New("not signed in (run nexusctl login)")

func (o *globalOptions) sessionName() (string, error) {
	name := session.Resolve(o.session)
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func (o *globalOptions) config() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	if o.server != "" {
		cfg.ServerURL = o.server
	}
	return cfg, nil
}

// withStore runs fn with the session store opened under the session lock,
// so a running client is never written behind its back.
func withStore(name string, fn func(db *store.DB) error) (err error) {
	if err := session.EnsureDir(name); err != nil {
		return err
	}
	lk, err := lock.Acquire(session.Dir(name))
	if err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			return fmt.Errorf("session %q is open in another client (pid %d); quit it first", name, held.PID)
		}
		return err
	}
	defer func() {
		if rerr := lk.Release(); err == nil {
			err = rerr
		}
	}()

	db, _, err := store.OpenMigrated(session.DBPath(name))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

// loadIdentity reads the saved identity without taking the lock; a running
// client keeps the database readable.
func loadIdentity(name string) (session.Identity, error) {
	path := session.DBPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return session.Identity{}, errNotSignedIn
		}
		return session.Identity{}, err
	}
	db, err := store.OpenReadOnly(path)
	if err != nil {
		return session.Identity{}, err
	}
	defer func() { _ = db.Close() }()

	id, err := db.LoadIdentity()
	if errors.Is(err, store.ErrNoIdentity) {
		return session.Identity{}, errNotSignedIn
	}
	return id, err
}

func newAPIClient(cfg *config.Config, token string) *api.Client {
	return api.New(cfg.ServerURL,
		api.WithToken(token),
		api.WithTimeout(cfg.HTTPTimeout.Duration),
	)
}

// prompter reads answers from the command's input. Passwords are read
// without echo when the input is a terminal.
type prompter struct {
	in  io.Reader
	out io.Writer
	r   *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, out: cmd.ErrOrStderr(), r: bufio.NewReader(in)}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) password(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.line(label)
}

// orAsk returns v, or prompts for it when empty.
func (p *prompter) orAsk(v, label string) (string, error) {
	if v = strings.TrimSpace(v); v != "" {
		return v, nil
	}
	return p.line(label)
}
