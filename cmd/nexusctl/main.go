package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	session string
	server  string
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "nexusctl",
		Short:         "Manage nexus sessions",
		Long:          "Signs sessions in and out, and inspects running clients and their contacts.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.session, "session", "", "session name (overrides $NEXUS_SESSION and config default_session)")
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "server URL (overrides config server_url)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")

	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newRegisterCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newWhoamiCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newSessionsCmd(opts))
	cmd.AddCommand(newContactsCmd(opts))
	return cmd
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
