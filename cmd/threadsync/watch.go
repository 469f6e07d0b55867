// ABOUTME: watch command: connects a session and prints its live state
// ABOUTME: Runs until interrupted, reconnecting on its own when the server drops

package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/threadsync/internal/protocol"
	"github.com/2389/threadsync/internal/session"
	"github.com/2389/threadsync/internal/syncstate"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		board  string
		thread uint64
		push   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a board or thread live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("board") {
				cfg.Page.Board = board
			}
			if flags.Changed("thread") {
				cfg.Page.Thread = thread
			}
			if flags.Changed("push") {
				cfg.Push.Enabled = push
			}

			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
			return runWatch(cmd.Context(), cmd.OutOrStdout(), session.FromConfig(cfg, logger))
		},
	}

	cmd.Flags().StringVarP(&board, "board", "b", "", "board to follow (overrides page.board)")
	cmd.Flags().Uint64VarP(&thread, "thread", "t", 0, "thread to follow, 0 for the board index (overrides page.thread)")
	cmd.Flags().BoolVar(&push, "push", false, "also stream reply notifications (overrides push.enabled)")
	return cmd
}

// lockedWriter serializes writes from session callbacks, which run on the
// connection and notification goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runWatch(ctx context.Context, w io.Writer, cfg session.Config) error {
	out := &lockedWriter{w: w}

	s, err := session.New(cfg)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)
	stamp := func() string {
		return gray.Sprint(time.Now().Format("15:04:05"))
	}

	s.OnStatusChanged(func(st syncstate.Status) {
		fmt.Fprintf(out, "%s %s\n", stamp(), statusColor(st).Sprint(st))
	})
	s.OnHiddenCountChanged(func(n int) {
		fmt.Fprintf(out, "%s hidden posts: %d\n", stamp(), n)
	})
	s.OnNotification(func(n protocol.Notification) {
		fmt.Fprintf(out, "%s %s\n", stamp(), yellow.Sprintf("new reply >>%d in /%s/%d", n.ID, n.Board, n.OP))
	})

	if err := s.Start(ctx); err != nil {
		s.Close()
		return err
	}

	<-ctx.Done()
	if err := s.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %d posts loaded\n", stamp(), s.Posts().Len())
	return nil
}

func statusColor(st syncstate.Status) *color.Color {
	switch st {
	case syncstate.Synced:
		return color.New(color.FgGreen)
	case syncstate.Syncing:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgRed)
	}
}
