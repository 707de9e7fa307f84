package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/raphaelgruber/docrelay/internal/app"
	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/raphaelgruber/docrelay/internal/service"
	"github.com/spf13/cobra"
)

var (
	publishURL           string
	publishTags          string
	publishTitle         string
	publishLockTitle     bool
	publishBanner        string
	publishCanonical     string
	publishAutoBanner    bool
	publishBannerPrompt  string
	publishBannerBaseURL string
	publishSend          bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Rewrite an article with an LLM and cross-post it to Dev.to",
	Long: `Fetch an article, optionally generate a banner, rewrite it with the
summary model and post it to Dev.to.

Without --publish the final markdown is printed and nothing is sent.

Examples:
  docrelay publish --url https://example.com/blog/post --auto-banner
  docrelay publish --url https://example.com/blog/post --tags go,devops --publish
  docrelay publish --url https://example.com/blog/post --title "A Better Title" --banner https://cdn.example/b.png`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishURL, "url", "", "source article URL (required)")
	publishCmd.Flags().StringVar(&publishTags, "tags", "", "comma-separated Dev.to tags")
	publishCmd.Flags().StringVar(&publishTitle, "title", "", "override the article title (locks it)")
	publishCmd.Flags().BoolVar(&publishLockTitle, "lock-title", false, "keep the fetched title verbatim")
	publishCmd.Flags().StringVar(&publishBanner, "banner", "", "use this banner URL instead of generating one")
	publishCmd.Flags().StringVar(&publishCanonical, "canonical", "", "canonical URL (defaults to CANONICAL_URL, then --url)")
	publishCmd.Flags().BoolVar(&publishAutoBanner, "auto-banner", false, "generate a banner image")
	publishCmd.Flags().StringVar(&publishBannerPrompt, "banner-prompt", "", "override the banner prompt")
	publishCmd.Flags().StringVar(&publishBannerBaseURL, "banner-base-url", "", "serve banners from this base URL instead of uploading")
	publishCmd.Flags().BoolVar(&publishSend, "publish", false, "publish to Dev.to instead of a dry run")
	_ = publishCmd.MarkFlagRequired("url")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	needBanner := publishAutoBanner && publishBanner == ""
	svc, err := app.NewPublishService(ctx, cfg, app.PublishNeeds{Banner: needBanner, Publish: publishSend})
	if err != nil {
		return err
	}

	out := newPrinter(os.Stdout)
	status := newPrinter(os.Stderr)
	status.Status("→ fetching %s", publishURL)

	res, err := svc.Run(ctx, service.PublishOptions{
		URL:           publishURL,
		Title:         publishTitle,
		Tags:          models.SplitTags(publishTags),
		LockTitle:     publishLockTitle,
		Banner:        publishBanner,
		Canonical:     publishCanonical,
		AutoBanner:    publishAutoBanner,
		BannerPrompt:  publishBannerPrompt,
		BannerBaseURL: publishBannerBaseURL,
		Publish:       publishSend,
	})
	if err != nil {
		return err
	}

	if res.Published == nil {
		out.Plain(res.Draft.Body)
		status.Hint("dry run: pass --publish to send to Dev.to")
		return nil
	}
	status.Success("✓ published %q", res.Draft.Title)
	out.Plain(res.Published.URL)
	return nil
}
