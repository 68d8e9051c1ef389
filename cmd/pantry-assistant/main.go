// cmd/pantry-assistant/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcp-pantry-assistant/internal/config"
	"mcp-pantry-assistant/internal/llm"
	"mcp-pantry-assistant/internal/logging"
	"mcp-pantry-assistant/internal/models"
	"mcp-pantry-assistant/internal/orchestrator"
	"mcp-pantry-assistant/internal/server"
	"mcp-pantry-assistant/internal/storage"
)

var (
	version = "1.0.0"

	cfgFile   string
	provider  string
	modelName string
	dbPath    string
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pantry-assistant",
		Short: "Turn chat messages into pantry and food-log commands",
		Long: `pantry-assistant reads a chat message (and optional photos), works out whether
the user is stocking the pantry or logging a meal, and produces validated
commands for either. It runs as an MCP tool server or as a one-shot command.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pantry-assistant/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "model provider: anthropic, openai, gemini, ollama or gateway")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "model name for the provider")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(), newOrchestrateCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pantry-assistant version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers flags over the file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if provider != "" {
		cfg.Model.Provider = provider
	}
	if modelName != "" {
		cfg.Model.Name = modelName
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	var host, address string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			// address is an alias for host
			if address != "" {
				cfg.Server.Host = address
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "host address")
	cmd.Flags().StringVar(&address, "address", "", "address (alias for host)")
	cmd.Flags().IntVar(&port, "port", 8011, "port for HTTP transport")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	model, err := llm.NewFromConfig(ctx, cfg.LLM())
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	srv, err := server.NewPantryServer(&server.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Store:     store,
		Model:     model,
		Logger:    logger,
		Defaults:  cfg.OrchestratorDefaults(),
		MaxTokens: cfg.Model.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	logger.Info("Serving",
		zap.String("provider", cfg.Model.Provider),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))
	return g.Wait()
}

func newOrchestrateCmd() *cobra.Command {
	var groupID, groupName, location string
	var attachments []string
	var persist bool

	cmd := &cobra.Command{
		Use:   "orchestrate [message]",
		Short: "Process one message and print the job result as JSON",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defaults := cfg.OrchestratorDefaults()
			if groupID != "" {
				defaults.GroupID = groupID
			}
			if groupName != "" {
				defaults.GroupName = groupName
			}
			if location != "" {
				defaults.Location = location
			}

			var atts []models.Attachment
			for i, uri := range attachments {
				atts = append(atts, models.Attachment{ID: fmt.Sprintf("photo%d", i+1), URI: uri})
			}
			return runOrchestrate(cmd.Context(), cfg, strings.Join(args, " "), atts, defaults, persist)
		},
	}

	cmd.Flags().StringVar(&groupID, "group-id", "", "pantry group for generated commands")
	cmd.Flags().StringVar(&groupName, "group-name", "", "pantry group display name")
	cmd.Flags().StringVar(&location, "location", "", "default storage location")
	cmd.Flags().StringSliceVar(&attachments, "attachment", nil, "image URI to attach (repeatable)")
	cmd.Flags().BoolVar(&persist, "persist", false, "store the generated commands")
	return cmd
}

func runOrchestrate(ctx context.Context, cfg *config.Config, text string, atts []models.Attachment, defaults models.Defaults, persist bool) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	model, err := llm.NewFromConfig(ctx, cfg.LLM())
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	result := orchestrator.Orchestrate(ctx, orchestrator.Request{
		Text:        text,
		Attachments: atts,
		Defaults:    defaults,
		Model:       model,
		Logger:      logging.OrchestratorSink(logger),
		MaxTokens:   cfg.Model.MaxTokens,
	})

	if persist {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		for i, command := range result.GeneratedCommands {
			if _, err := store.ApplyFoodCommand(ctx, command); err != nil {
				result.Failures = append(result.Failures, fmt.Sprintf("store command %d (%s): %v", i+1, command.Name, err))
			}
		}
		for i, command := range result.GeneratedLogCommands {
			if _, err := store.ApplyFoodLogCommand(ctx, command); err != nil {
				result.Failures = append(result.Failures, fmt.Sprintf("store log command %d: %v", i+1, err))
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
