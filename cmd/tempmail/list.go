package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

func (c *cli) listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "prints stored messages, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			return printMessages(cmd.OutOrStdout(), st.List(context.Background()), limit)
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of most recent messages to show (0 for all)")
	return cmd
}

func printMessages(w io.Writer, msgs []store.Message, limit int) error {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(w, "no messages")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tFROM\tTO\tSUBJECT\tFILES")
	for _, m := range msgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", m.ID, m.Date, m.From, m.To, m.Subject, len(m.Attachments))
	}
	return tw.Flush()
}
