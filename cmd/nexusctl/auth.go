package main

import (
	"errors"
	"fmt"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/store"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign a session in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd)
			user, err := p.orAsk(username, "Username: ")
			if err != nil {
				return err
			}
			if err := session.ValidateUsername(user); err != nil {
				return err
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}
			return authenticate(cmd, opts, user, func(c *api.Client) (*api.AuthResponse, error) {
				return c.Login(cmd.Context(), user, password)
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when omitted)")
	return cmd
}

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var username, fullName string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign the session in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd)
			user, err := p.orAsk(username, "Username: ")
			if err != nil {
				return err
			}
			if err := session.ValidateUsername(user); err != nil {
				return err
			}
			name, err := p.orAsk(fullName, "Full name: ")
			if err != nil {
				return err
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}
			confirm, err := p.password("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}
			return authenticate(cmd, opts, user, func(c *api.Client) (*api.AuthResponse, error) {
				return c.Register(cmd.Context(), user, name, password)
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when omitted)")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name (prompted when omitted)")
	return cmd
}

// authenticate runs call against the server and saves the issued identity.
func authenticate(cmd *cobra.Command, opts *globalOptions, user string, call func(*api.Client) (*api.AuthResponse, error)) error {
	name, err := opts.sessionName()
	if err != nil {
		return err
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	resp, err := call(newAPIClient(cfg, ""))
	if err != nil {
		var authErr *api.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("rejected: %s", authErr.Error())
		}
		return err
	}
	id := session.Identity{Username: resp.Username, FullName: resp.FullName, Token: resp.Token}
	if id.Username == "" {
		id.Username = user
	}
	if !id.Valid() {
		return errors.New("server returned no token")
	}

	if err := withStore(name, func(db *store.DB) error { return db.SaveIdentity(id) }); err != nil {
		return err
	}
	if opts.json {
		return outputJSON(cmd, whoami{Session: name, Username: id.Username, FullName: id.FullName, SignedIn: true})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (session %s)\n", id.DisplayName(), name)
	return nil
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session's credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			if err := withStore(name, func(db *store.DB) error { return db.ClearIdentity() }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out of session %s\n", name)
			return nil
		},
	}
}

type whoami struct {
	Session  string `json:"session"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
	SignedIn bool   `json:"signedIn"`
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			out := whoami{Session: name}
			id, err := loadIdentity(name)
			switch {
			case errors.Is(err, errNotSignedIn):
			case err != nil:
				return err
			default:
				out.Username, out.FullName, out.SignedIn = id.Username, id.FullName, true
			}

			if opts.json {
				return outputJSON(cmd, out)
			}
			if !out.SignedIn {
				return fmt.Errorf("session %s: %w", name, errNotSignedIn)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) in session %s\n", id.DisplayName(), id.Username, name)
			return nil
		},
	}
}
