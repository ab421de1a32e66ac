package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maestro/internal/config"
	"maestro/internal/intent"
	"maestro/internal/llm"
	"maestro/internal/logging"
	"maestro/internal/orchestrator"
	"maestro/internal/personality"
	"maestro/internal/router"
	"maestro/internal/tool"
)

var (
	cfgPath string
	debug   bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "maestro - local-first orchestration agent",
	Long: `maestro is a conversational agent that routes requests to domain
specialists. Simple questions get a direct reply; complex requests are
decomposed into a dependency plan and executed against local tools and
an Ollama model endpoint.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if debug {
			cfg.Logging.Debug = true
		}
		logger, err = logging.New(cfg.Logging.Debug)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.maestro/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose debug logging")
}

// buildOrchestrator wires the full agent from configuration.
func buildOrchestrator() (*orchestrator.Orchestrator, *personality.Manager, error) {
	client := llm.NewOllamaClient(cfg.Ollama.Host, logger).WithDefaultOptions(llm.Options{
		Temperature: cfg.Ollama.Temperature,
		NumCtx:      cfg.Ollama.NumCtx,
		NumPredict:  cfg.Ollama.NumPredict,
	})
	model := cfg.Ollama.Model

	persona := personality.NewManager(client, model, logger.Named("personality"))
	if cfg.Personality.Path != "" {
		if err := persona.Load(cfg.Personality.Path); err != nil {
			return nil, nil, err
		}
	}

	registry := router.NewRegistry(logger.Named("registry"))
	registry.Register(router.NewWebRouter(client, model,
		tool.NewWebFetch(nil, logger.Named("fetch")),
		tool.NewHTMLExtract(),
		tool.NewSummarize(client, model),
		logger.Named("web")))
	registry.Register(router.NewReconRouter(client, model, tool.NewDeviceInfo(), logger.Named("recon")))
	registry.Register(router.NewDataRouter(client, model, logger.Named("data")))
	registry.Register(router.NewDeviceRouter(tool.NewDeviceInfo(), nil, logger.Named("device")))
	if cfg.Files.Root != "" {
		registry.Register(router.NewFilesRouter(cfg.Files.Root, logger.Named("files")))
	}
	// Catch-all so a complex request that no specialist claims still
	// gets an answer.
	registry.Register(router.NewGeneralRouter(client, model, logger.Named("general")))

	classifier := intent.NewClassifier(client, model, logger.Named("intent"))

	orch := orchestrator.New(classifier, registry, persona, client, orchestrator.Config{
		Model:       model,
		Timeout:     cfg.Orchestrator.Timeout,
		MaxParallel: cfg.Orchestrator.MaxParallel,
	}, logger.Named("orchestrator"))

	return orch, persona, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
