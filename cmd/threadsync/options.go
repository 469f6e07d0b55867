// ABOUTME: options command: shows and changes persisted user settings
// ABOUTME: Values are validated with the same rules a session applies

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/threadsync/internal/options"
)

func newOptionsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options [key [value]]",
		Short: "Show or change settings",
		Long: `With no arguments, prints every setting. With a key, prints that setting.
With a key and a value, validates and saves the new value.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := root.openOffline(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer off.Close()

			opts, err := options.Load(cmd.Context(), off.store, off.logger)
			if err != nil {
				return err
			}

			if len(args) == 2 {
				if err := opts.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := options.Save(cmd.Context(), off.store, opts); err != nil {
					return err
				}
			}

			data, err := json.Marshal(opts)
			if err != nil {
				return err
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				v, ok := fields[args[0]]
				if !ok {
					return fmt.Errorf("%w: unknown setting %q", options.ErrInvalid, args[0])
				}
				fmt.Fprintln(out, string(v))
				return nil
			}
			for _, key := range options.Keys() {
				fmt.Fprintf(out, "%s = %s\n", key, fields[key])
			}
			return nil
		},
	}
}
