package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/accesslist"
)

// accessCmd builds the add/remove/list/clear tree for one access list.
func (c *cli) accessCmd(name, short string) *cobra.Command {
	list := func() (*accesslist.List, error) {
		cfg, err := c.loadConfig()
		if err != nil {
			return nil, err
		}
		lists := accesslist.New(cfg.Access.BlacklistFile, cfg.Access.WhitelistFile)
		if name == "blacklist" {
			return lists.Blacklist, nil
		}
		return lists.Whitelist, nil
	}

	parent := &cobra.Command{
		Use:               name,
		Short:             "manages " + short,
		DisableAutoGenTag: true,
	}

	addCmd := &cobra.Command{
		Use:   "add ADDRESS...",
		Short: "adds addresses to the " + name,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := list()
			if err != nil {
				return err
			}
			n, err := l.Add(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d address(es) to %s\n", n, l.Path())
			return nil
		},
		DisableAutoGenTag: true,
	}

	removeCmd := &cobra.Command{
		Use:   "remove ADDRESS...",
		Short: "removes addresses from the " + name,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := list()
			if err != nil {
				return err
			}
			n, err := l.Remove(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d address(es) from %s\n", n, l.Path())
			return nil
		},
		DisableAutoGenTag: true,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "prints the " + name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := list()
			if err != nil {
				return err
			}
			entries, err := l.Entries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
		DisableAutoGenTag: true,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "removes every address from the " + name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := list()
			if err != nil {
				return err
			}
			if err := l.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", l.Path())
			return nil
		},
		DisableAutoGenTag: true,
	}

	parent.AddCommand(addCmd, removeCmd, listCmd, clearCmd)
	return parent
}
