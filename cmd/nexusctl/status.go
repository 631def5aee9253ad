package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/nexus/internal/control"
	"github.com/matheus3301/nexus/internal/lock"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// transportState maps the control socket's health to a readable state.
func transportState(resp *healthpb.HealthCheckResponse) string {
	switch resp.GetStatus() {
	case healthpb.HealthCheckResponse_SERVING:
		return "online"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return "offline"
	default:
		return "connecting"
	}
}

func probe(ctx context.Context, name string) (*healthpb.HealthCheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return control.Probe(ctx, session.SocketPath(name))
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the session's client is running and connected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			resp, err := probe(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("client for session %q is not running: %w", name, err)
			}
			if opts.json {
				return outputJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:   %s\n", name)
			fmt.Fprintf(out, "PID:       %d\n", lock.Holder(session.Dir(name)))
			fmt.Fprintf(out, "Transport: %s\n", transportState(resp))
			return nil
		},
	}
}

type sessionInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	Transport string `json:"transport,omitempty"`
	User      string `json:"user,omitempty"`
}

func newSessionsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := session.List()
			if err != nil {
				return err
			}
			infos := make([]sessionInfo, 0, len(names))
			for _, name := range names {
				info := sessionInfo{Name: name, Path: session.Dir(name)}
				if id, err := loadIdentity(name); err == nil {
					info.User = id.Username
				}
				if resp, err := probe(cmd.Context(), name); err == nil {
					info.Running = true
					info.PID = lock.Holder(session.Dir(name))
					info.Transport = transportState(resp)
				}
				infos = append(infos, info)
			}

			if opts.json {
				return outputJSON(cmd, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUSER\tSTATE\tPATH")
			for _, s := range infos {
				user := s.User
				if user == "" {
					user = "-"
				}
				state := "stopped"
				if s.Running {
					state = fmt.Sprintf("running (%s, pid %d)", s.Transport, s.PID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, user, state, s.Path)
			}
			return w.Flush()
		},
	}
}
