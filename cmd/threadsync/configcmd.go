// ABOUTME: config command: writes a starter config file and reports its location
// ABOUTME: init prompts for the server origin and board, with flags for scripting

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/threadsync/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var (
		origin string
		board  string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			path := root.path()

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			if !cmd.Flags().Changed("origin") {
				origin = prompt(reader, out, "Server origin", "https://example.org")
			}
			if !cmd.Flags().Changed("board") {
				board = prompt(reader, out, "Board", "all")
			}

			content := strings.Replace(config.Template, `origin: "https://example.org"`, fmt.Sprintf("origin: %q", origin), 1)
			content = strings.Replace(content, `board: "all"`, fmt.Sprintf("board: %q", board), 1)

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			fmt.Fprintf(out, "Config written to %s\n", path)
			fmt.Fprintln(out, "\nTo follow the board:")
			fmt.Fprintln(out, "  threadsync watch")
			return nil
		},
	}
	initCmd.Flags().StringVar(&origin, "origin", "", "server origin, e.g. https://example.org")
	initCmd.Flags().StringVar(&board, "board", "", "board to follow")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(initCmd, &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), root.path())
		},
	})
	return cmd
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
