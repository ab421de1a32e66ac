package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"maestro/internal/orchestrator"
	"maestro/internal/session"
	"maestro/internal/store"
)

var askPlain bool

var (
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	stepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Run a single request and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "print the reply without markdown rendering")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, prompt string) error {
	orch, _, err := buildOrchestrator()
	if err != nil {
		return err
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
		_ = transcripts.Append(ctx, sess.ID, session.RoleUser, prompt)
	}

	var response string
	for update := range orch.Process(ctx, sess, prompt) {
		switch u := update.(type) {
		case orchestrator.ThinkingUpdate:
			fmt.Fprintln(os.Stderr, thinkingStyle.Render("· "+u.Segment))
		case orchestrator.PlanUpdate:
			fmt.Fprintln(os.Stderr, stepStyle.Render(u.Plan.Summary()))
		case orchestrator.StepUpdate:
			line := fmt.Sprintf("[wave %d] %s", u.Wave, u.Result.StepID)
			if u.Result.Success {
				fmt.Fprintln(os.Stderr, stepStyle.Render(line+" ok"))
			} else {
				fmt.Fprintln(os.Stderr, failStyle.Render(line+" failed: "+u.Result.Error))
			}
		case orchestrator.CompleteUpdate:
			response = u.Response
		case orchestrator.ErrorUpdate:
			return u.Err
		}
	}

	if transcripts != nil {
		_ = transcripts.Append(ctx, sess.ID, session.RoleAssistant, response)
	}

	if askPlain {
		fmt.Println(response)
		return nil
	}
	rendered, err := glamour.Render(response, "auto")
	if err != nil {
		fmt.Println(response)
		return nil
	}
	fmt.Print(rendered)
	return nil
}
