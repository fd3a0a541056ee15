package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gravitrone/storesync/internal/cmd"
	"github.com/gravitrone/storesync/internal/store"
	"github.com/gravitrone/storesync/internal/ui"
)

type rootFlags struct {
	store       string
	logFile     string
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "storesync",
		Short: "storesync - browse and edit records of a CRUD API",
		Long:  "storesync keeps a local view of a REST collection in sync with the server: list, filter, search, edit, create and delete records.",
		RunE: func(c *cobra.Command, _ []string) error {
			return runTUI(c, flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVarP(&flags.store, "store", "s", cmd.DefaultStore, "store name from config")
	root.Flags().StringVar(&flags.logFile, "log-file", "", "append logs to this file while the TUI runs")
	root.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9100")

	root.AddCommand(cmd.LoginCmd())
	root.AddCommand(cmd.RecordsCmd())
	return root
}

func init() {
	// Force truecolor so hex colors render correctly
	// Must be set before any lipgloss style initialization
	os.Setenv("COLORTERM", "truecolor")
}

func runTUI(c *cobra.Command, flags rootFlags) error {
	var logOut io.Writer = io.Discard
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}

	sess, err := cmd.OpenSession(logOut)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(c.ErrOrStderr(), "not logged in. run 'storesync login' first.")
		}
		return err
	}
	defer sess.Close()

	if flags.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(flags.metricsAddr, mux); err != nil {
				level.Error(sess.Logger).Log("op", "metrics", "addr", flags.metricsAddr, "error", err)
			}
		}()
	}

	scroll := &ui.ScrollSignal{}
	s := sess.Store(flags.store, store.Hooks{ScrollTop: scroll.ScrollTop})
	defer s.Close()

	m := ui.NewBrowser(s, sess.Config.Store(flags.store), scroll)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
