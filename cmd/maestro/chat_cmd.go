package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maestro/cmd/maestro/chat"
	"maestro/internal/session"
	"maestro/internal/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	orch, persona, err := buildOrchestrator()
	if err != nil {
		return err
	}

	if cfg.Personality.Path != "" && cfg.Personality.Watch {
		if err := persona.Watch(ctx, cfg.Personality.Path); err != nil {
			logger.Warn("personality watch unavailable", zap.Error(err))
		}
	}

	sess := session.New(cfg.Session.Window)

	var transcripts *store.Store
	if cfg.Store.Path != "" {
		transcripts, err = store.Open(cfg.Store.Path, logger.Named("store"))
		if err != nil {
			return err
		}
		defer transcripts.Close()
		if err := transcripts.EnsureSession(ctx, sess.ID); err != nil {
			return err
		}
	}

	return chat.Run(ctx, chat.Deps{
		Orchestrator: orch,
		Persona:      persona,
		Session:      sess,
		Transcripts:  transcripts,
		Logger:       logger.Named("chat"),
	})
}
