package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/raphaelgruber/docrelay/internal/banner"
	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/spf13/cobra"
)

var (
	bannerTitle   string
	bannerPrompt  string
	bannerCaption string
	bannerBaseURL string
	bannerTags    string
)

var bannerCmd = &cobra.Command{
	Use:   "banner",
	Short: "Generate a banner image and print its URL",
	Long: `Produce a banner using BANNER_PROVIDER (local, openai or auto) and print
the URL it is reachable at. Without --prompt one is built from the title.

Examples:
  docrelay banner --title "Scaling Terraform Pipelines"
  docrelay banner --title "Kubernetes cost tips" --base-url https://cdn.example/banners`,
	Args: cobra.NoArgs,
	RunE: runBanner,
}

func init() {
	bannerCmd.Flags().StringVar(&bannerTitle, "title", "", "title drawn on the banner")
	bannerCmd.Flags().StringVar(&bannerPrompt, "prompt", "", "image prompt (built from --title when empty)")
	bannerCmd.Flags().StringVar(&bannerCaption, "caption", "", "caption under the title (default BANNER_CAPTION)")
	bannerCmd.Flags().StringVar(&bannerBaseURL, "base-url", "", "serve from this base URL instead of uploading")
	bannerCmd.Flags().StringVar(&bannerTags, "tags", "", "comma-separated topics for the prompt")
}

func runBanner(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	caption := orDefault(bannerCaption, cfg.BannerCaption)
	prompt := bannerPrompt
	if prompt == "" {
		if bannerTitle == "" {
			return errors.New("either --title or --prompt is required")
		}
		prompt = banner.BuildPrompt(bannerTitle, "", models.SplitTags(bannerTags), caption, cfg.BannerPromptStyle)
	}

	producer, err := banner.NewProducer(cfg)
	if err != nil {
		return err
	}
	url, err := producer.Produce(ctx, banner.Request{
		Prompt:  prompt,
		Title:   bannerTitle,
		Caption: caption,
		BaseURL: bannerBaseURL,
	})
	if err != nil {
		return err
	}

	newPrinter(os.Stderr).Success("✓ banner ready")
	newPrinter(os.Stdout).Plain(url)
	return nil
}
