package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/nexus/internal/contacts"
	"github.com/matheus3301/nexus/internal/view"
	"github.com/spf13/cobra"
)

func newContactsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the signed-in user's conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			id, err := loadIdentity(name)
			if err != nil {
				return err
			}

			list, err := newAPIClient(cfg, id.Token).Contacts(cmd.Context(), id.Username)
			if err != nil {
				return err
			}
			if opts.json {
				return outputJSON(cmd, list)
			}

			cs := make([]contacts.Contact, 0, len(list))
			for _, c := range list {
				if c.Username != id.Username {
					cs = append(cs, contacts.FromAPI(c))
				}
			}
			unread := make(map[string]int, len(cs))
			for _, c := range cs {
				unread[c.PeerID] = c.UnreadCount
			}
			rows := view.Rows(id.Username, cs, "", func(peer string) int { return unread[peer] }, time.Now())
			if len(rows.Rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), rows.Placeholder)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tNAME\tUNREAD\tTIME\tLAST MESSAGE")
			for _, r := range rows.Rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.PeerID, r.Name, r.Badge, r.Time, r.Preview)
			}
			return w.Flush()
		},
	}
}
