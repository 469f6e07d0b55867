// ABOUTME: hidden command: lists, adds and clears hidden posts in the local cache
// ABOUTME: Works offline against the same store a running session uses

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/2389/threadsync/internal/hide"
	"github.com/2389/threadsync/internal/posts"
)

func newHiddenCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hidden",
		Short: "Manage hidden posts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List posts you have hidden",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			off, err := root.openOffline(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer off.Close()

			markers, err := off.store.HiddenPosts(cmd.Context())
			if err != nil {
				return err
			}
			if len(markers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no hidden posts")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "POST\tTHREAD")
			for _, m := range markers {
				fmt.Fprintf(tw, "%d\t%d\n", m.ID, m.OP)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <post-id>...",
		Short: "Hide posts without connecting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseUint(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid post id %q", a)
				}
				ids = append(ids, id)
			}

			off, err := root.openOffline(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer off.Close()

			// Nothing is loaded offline, so only the user hides are recorded
			p := hide.New(posts.NewIndex(), off.store, func() bool { return false }, off.logger)
			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			for _, id := range ids {
				if err := p.Hide(cmd.Context(), id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hidden posts: %d\n", p.Count())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Unhide every post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			off, err := root.openOffline(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer off.Close()

			if err := off.store.ClearHidden(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "hidden posts cleared")
			return nil
		},
	})

	return cmd
}
