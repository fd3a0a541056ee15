package cmd

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/config"
	"github.com/gravitrone/storesync/internal/logging"
	"github.com/gravitrone/storesync/internal/storage"
	"github.com/gravitrone/storesync/internal/store"
)

// Session bundles everything a command needs to talk to one server.
type Session struct {
	Config *config.Config
	Client *api.Client
	Logger log.Logger

	state *storage.SQLite
}

// OpenSession loads the config and wires client, logger and state db.
func OpenSession(logOut io.Writer) (*Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("not logged in: %w", err)
	}
	return NewSession(cfg, logOut)
}

// NewSession wires a session around an already loaded config.
func NewSession(cfg *config.Config, logOut io.Writer) (*Session, error) {
	logger, err := logging.New(logOut, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return nil, err
	}

	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = api.DefaultBaseURL
	}
	client := api.NewClient(serverURL, cfg.APIKey, timeout)
	client.SetLogger(log.With(logger, "component", "api"))

	state, err := storage.OpenSQLite(cfg.StateDBPath())
	if err != nil {
		return nil, err
	}

	level.Debug(logger).Log("msg", "session opened", "server", serverURL, "state_db", cfg.StateDBPath())
	return &Session{
		Config: cfg,
		Client: client,
		Logger: logger,
		state:  state,
	}, nil
}

// Store builds the store for name from its config definition, with hooks
// supplied by the surface driving it.
func (s *Session) Store(name string, hooks store.Hooks) *store.Store {
	opts := s.Config.Store(name).Options()
	opts.Storage = s.state
	opts.Logger = s.Logger
	opts.Hooks = hooks
	return store.New(name, s.Client, opts)
}

// Close releases the state db.
func (s *Session) Close() error {
	if s.state == nil {
		return nil
	}
	return s.state.Close()
}
