package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/config"
)

// RunInteractiveLogin prompts for server and api key, then persists config.
// Store definitions from an existing config are kept.
func RunInteractiveLogin(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	defaultURL := cfg.ServerURL
	if defaultURL == "" {
		defaultURL = api.DefaultBaseURL
	}
	fmt.Fprintf(out, "server url [%s]: ", defaultURL)
	serverURL, _ := reader.ReadString('\n')
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		serverURL = defaultURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return fmt.Errorf("server url must start with http:// or https://")
	}

	fmt.Fprint(out, "api key: ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("api key is required")
	}

	cfg.ServerURL = strings.TrimRight(serverURL, "/")
	cfg.APIKey = apiKey

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(out, "logged in to %s\n", cfg.ServerURL)
	fmt.Fprintf(out, "config saved to %s\n", config.Path())
	return nil
}

// LoginCmd returns the `storesync login` command.
func LoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save server url and api key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunInteractiveLogin(os.Stdin, cmd.OutOrStdout())
		},
	}
}
