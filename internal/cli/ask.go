package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/app"
	"github.com/raphaelgruber/docrelay/internal/server"
	"github.com/spf13/cobra"
)

var (
	askRebuild bool
	askSuggest bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documentation",
	Long: `Retrieve the most relevant documentation chunks and ask the local model
to answer from them. Sources are listed after the answer.

Examples:
  docrelay ask "How do I create an agent?"
  docrelay ask --suggest "What is a workflow?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askRebuild, "rebuild", false, "rebuild the index before answering")
	askCmd.Flags().BoolVar(&askSuggest, "suggest", false, "also print follow-up questions")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("no question provided")
	}

	qa, err := app.NewQA(ctx, cfg, askRebuild)
	if err != nil {
		return err
	}
	defer qa.Close()

	out := newPrinter(os.Stdout)
	answer, err := qa.Responder.Ask(ctx, question)
	if err != nil {
		label, advice := server.Remediation(err, cfg.LLMModel)
		newPrinter(os.Stderr).Error("✗ %s", label)
		out.Plain(advice)
		return err
	}

	out.Plain(answer.Answer)
	if len(answer.Sources) > 0 {
		out.Plain("")
		out.Status("Sources")
		for _, s := range answer.Sources {
			out.Plain("  - " + s.File)
		}
	}

	if askSuggest {
		out.Plain("")
		out.Status("You might also ask")
		for _, q := range qa.Suggester.FollowUps(ctx, question) {
			out.Plain("  - " + q)
		}
	}
	return nil
}
