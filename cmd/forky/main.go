// Command forky is the CLI front-end for the conversation DAG engine:
// conversations with git-style branching, checkout, semantic merge, and
// full-text search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/config"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/llm/providers"
	"github.com/deepnoodle-ai/forky/service"
	"github.com/deepnoodle-ai/forky/slogger"
	"github.com/deepnoodle-ai/forky/store"
	"github.com/spf13/cobra"
)

var (
	rootCtx context.Context

	cfg *config.Config
	db  *store.SQLiteStore
	svc *service.Service

	configPath   string
	databasePath string
	providerName string
	modelName    string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "forky",
	Short:         "Branching AI conversations",
	Long:          "Forky manages AI conversations as DAGs: fork alternate paths,\ncheck out any node or branch, and merge branches back together with a\nthree-way semantic merge.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

// setup loads configuration, opens the store, and builds the service with
// the configured model provider.
func setup() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if databasePath != "" {
		cfg.DatabasePath = databasePath
	}
	if providerName != "" {
		cfg.Provider = providerName
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := slogger.New(slogger.LevelFromString(cfg.LogLevel))

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err = store.NewSQLiteStore(store.SQLiteStoreOptions{
		Path:   cfg.DatabasePath,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	client, err := createClient(cfg)
	if err != nil {
		return err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}
	svc, err = service.New(service.Options{
		Store:        db,
		Client:       client,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Timeout:      timeout,
		Logger:       logger,
	})
	return err
}

// createClient resolves the model provider: by configured provider name
// first, then by model-name matching.
func createClient(cfg *config.Config) (llm.LLM, error) {
	if cfg.Provider != "" {
		if entry, ok := providers.DefaultRegistry().Lookup(cfg.Provider); ok {
			return entry.Factory(cfg.Model, cfg.Endpoint), nil
		}
	}
	if cfg.Model != "" {
		if client := providers.CreateModel(cfg.Model, cfg.Endpoint); client != nil {
			return client, nil
		}
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// resolveConversation maps a user-supplied identifier to a conversation id.
// It accepts an exact id, a unique id prefix, or an exact name. An empty
// identifier resolves to the active conversation.
func resolveConversation(ctx context.Context, identifier string) (string, error) {
	summaries, err := svc.ListConversations(ctx)
	if err != nil {
		return "", err
	}
	if identifier == "" {
		for _, s := range summaries {
			if s.IsActive {
				return s.ID, nil
			}
		}
		return "", fmt.Errorf("no active conversation: pass --conversation or run 'forky open' first")
	}
	var prefixMatches []string
	for _, s := range summaries {
		if s.ID == identifier || s.Name == identifier {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, identifier) {
			prefixMatches = append(prefixMatches, s.ID)
		}
	}
	if len(prefixMatches) == 1 {
		return prefixMatches[0], nil
	}
	if len(prefixMatches) > 1 {
		return "", fmt.Errorf("ambiguous conversation %q matches %d conversations", identifier, len(prefixMatches))
	}
	return "", fmt.Errorf("%w: %s", forky.ErrConversationNotFound, identifier)
}

func addConversationFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "conversation", "c", "", "Conversation id, id prefix, or name (defaults to the active conversation)")
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.forky/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "Database file (default ~/.forky/conversations.db)")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "", "Model provider: anthropic, openai, or google")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
