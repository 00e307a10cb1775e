// Package app wires configuration, credentials and the agent components
// into a ready-to-use App.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	aiservice "github.com/nhle/mailagent/internal/ai"
	"github.com/nhle/mailagent/internal/agent"
	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/executor"
	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/store"
)

// Environment variables that take precedence over the keyring.
const (
	EnvMailboxSecret   = "MAILAGENT_MAILBOX_SECRET"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// App holds the wired components for one CLI invocation.
type App struct {
	Config  *model.AppConfig
	Agent   *agent.Agent
	Gateway mailbox.Gateway
	Store   store.Store
	Logger  *zap.Logger
}

// Close releases the store, if one was opened.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// New builds an App from cfg. Secrets come from the environment or the
// system keyring.
func New(ctx context.Context, cfg *model.AppConfig, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger = logging.OrNop(logger)

	completer, err := loadCompleter(cfg.AI)
	if err != nil {
		return nil, err
	}

	mb, err := openMailbox(ctx, cfg.Mailbox)
	if err != nil {
		return nil, err
	}

	gw := mailbox.Compose(mb, aiservice.NewClassifier(completer))

	policy, err := executor.ParseSubFailurePolicy(cfg.Executor.SubFailurePolicy)
	if err != nil {
		return nil, err
	}

	exec := executor.New(gw,
		executor.WithLogger(logger.Named("executor")),
		executor.WithSubFailurePolicy(policy),
	)

	a := &App{Config: cfg, Gateway: gw, Logger: logger}

	opts := []agent.Option{agent.WithLogger(logger.Named("agent"))}
	if cfg.Store.Enabled {
		s, err := OpenStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		a.Store = s
		opts = append(opts, agent.WithRecorder(s))
	}

	a.Agent = agent.New(aiservice.NewPlanner(completer), exec, opts...)
	return a, nil
}

// OpenStore opens the run history database.
func OpenStore(cfg model.StoreConfig) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening run history %s: %w", cfg.Path, err)
	}
	return s, nil
}

// NewPlanner builds only the plan generator, for dry runs that must not
// touch the mailbox.
func NewPlanner(cfg model.AIConfig) (*aiservice.Planner, error) {
	completer, err := loadCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return aiservice.NewPlanner(completer), nil
}

// loadCompleter reads the API key for the configured provider and builds
// the completion client.
func loadCompleter(cfg model.AIConfig) (aiservice.Completer, error) {
	apiKey, err := credential.Lookup(credential.AIKey(cfg.Provider), os.Getenv(aiKeyEnv(cfg.Provider)))
	if err != nil {
		return nil, fmt.Errorf("loading %s API key: %w", cfg.Provider, err)
	}

	c, err := aiservice.NewCompleter(apiKey, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}
	return c, nil
}

func aiKeyEnv(provider string) string {
	if provider == model.AIProviderOpenAI {
		return EnvOpenAIAPIKey
	}
	return EnvAnthropicAPIKey
}

// IsAuthError reports whether err means the user must run login again.
func IsAuthError(err error) bool {
	return mailbox.IsAuthError(err) || errors.Is(err, credential.ErrNotFound)
}
