package banner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const uploadTimeout = 30 * time.Second

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashRuns    = regexp.MustCompile(`-+`)
)

// Auth schemes tried for the Authorization header, in order.
var authSchemes = []string{"Bearer", "token"}

// GitHubConfig identifies where banners are committed.
type GitHubConfig struct {
	Token      string
	Repo       string // owner/repo
	Branch     string
	PathPrefix string
	// BaseURL overrides the API root (tests, GitHub Enterprise).
	BaseURL string
}

// Strategy is one upload attempt configuration.
type Strategy struct {
	Prefix string
	Path   string
	Branch string // empty omits the branch field
	Scheme string
}

// Attempt records the outcome of one Strategy.
type Attempt struct {
	Path    string
	Branch  string
	Scheme  string
	Status  int
	Message string
}

// UploadError is returned when every strategy failed.
type UploadError struct {
	Attempts []Attempt
	LastErr  string
}

func (e *UploadError) Error() string {
	msg := "GitHub upload failed: GitHub rejected the upload path as malformed. " +
		"Set GITHUB_PATH_PREFIX to a simple folder name like 'banners' (no spaces/special chars), " +
		"or leave it empty to upload to repo root."
	if e.LastErr != "" {
		msg += "  Last error: " + e.LastErr
	}
	return msg
}

// GitHubUploader commits banner files through the GitHub Contents API.
type GitHubUploader struct {
	cfg   GitHubConfig
	owner string
	repo  string
}

// NewGitHubUploader validates cfg.
func NewGitHubUploader(cfg GitHubConfig) (*GitHubUploader, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return nil, errors.New("GITHUB_TOKEN missing (needed to upload banner when BANNER_BASE_URL is not set)")
	}
	owner, repo, ok := strings.Cut(strings.TrimSpace(cfg.Repo), "/")
	if !ok || owner == "" || repo == "" {
		return nil, errors.New(`GITHUB_REPO missing/invalid (expected "owner/repo")`)
	}
	if strings.TrimSpace(cfg.Branch) == "" {
		cfg.Branch = "main"
	}
	return &GitHubUploader{cfg: cfg, owner: owner, repo: repo}, nil
}

// SanitizeComponent maps a path component onto [A-Za-z0-9._-].
func SanitizeComponent(value string) (string, error) {
	v := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(value))
	v = unsafeChars.ReplaceAllString(v, "-")
	v = strings.Trim(dashRuns.ReplaceAllString(v, "-"), "-")
	if v == "" || v == "." || v == ".." {
		return "", fmt.Errorf("invalid path component %q", value)
	}
	return v, nil
}

func sanitizePrefix(prefix string) (string, error) {
	var parts []string
	for _, p := range strings.Split(strings.Trim(strings.TrimSpace(prefix), "/"), "/") {
		if p == "" || p == "." || p == ".." {
			continue
		}
		safe, err := SanitizeComponent(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, safe)
	}
	return strings.Join(parts, "/"), nil
}

// Strategies returns the ordered attempts for filename: prefixes
// {configured, "banners", ""} × {with branch, without} × auth schemes.
func (u *GitHubUploader) Strategies(filename string) ([]Strategy, error) {
	name, err := SanitizeComponent(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(name), ".png") {
		name += ".png"
	}

	userPrefix, err := sanitizePrefix(u.cfg.PathPrefix)
	if err != nil {
		return nil, err
	}
	var prefixes []string
	if userPrefix != "" {
		prefixes = append(prefixes, userPrefix)
	}
	if userPrefix != "banners" {
		prefixes = append(prefixes, "banners")
	}
	prefixes = append(prefixes, "")

	var out []Strategy
	for _, prefix := range prefixes {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		for _, branch := range []string{u.cfg.Branch, ""} {
			for _, scheme := range authSchemes {
				out = append(out, Strategy{Prefix: prefix, Path: path, Branch: branch, Scheme: scheme})
			}
		}
	}
	return out, nil
}

// Upload commits the file at path and returns its public download URL.
func (u *GitHubUploader) Upload(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read banner: %w", err)
	}
	strategies, err := u.Strategies(filepath.Base(path))
	if err != nil {
		return "", err
	}

	uploadErr := &UploadError{}
	skipPrefix := ""
	skipping := false

	for _, s := range strategies {
		if skipping && s.Prefix == skipPrefix {
			continue
		}
		skipping = false

		downloadURL, attempt := u.try(ctx, s, content)
		uploadErr.Attempts = append(uploadErr.Attempts, attempt)
		slog.Debug("github upload attempt", "path", s.Path, "branch", s.Branch, "scheme", s.Scheme, "status", attempt.Status)

		lower := strings.ToLower(attempt.Message)
		switch {
		case downloadURL != "":
			slog.Info("uploaded banner", "path", s.Path, "url", downloadURL)
			return downloadURL, nil

		case attempt.Status == http.StatusOK || attempt.Status == http.StatusCreated:
			uploadErr.LastErr = attempt.Message
			skipPrefix, skipping = s.Prefix, true

		case attempt.Status == http.StatusUnprocessableEntity && strings.Contains(lower, "malformed path component"):
			skipPrefix, skipping = s.Prefix, true

		case attempt.Status == http.StatusForbidden && strings.Contains(lower, "resource not accessible by personal access token"):
			uploadErr.LastErr = "GitHub upload failed (403): token cannot access this repo/path. " +
				"Use a fine-grained PAT with access to this repository and Contents: Read and write. " +
				"If this repo is under an org with SSO/SAML, authorize the token for that org. " +
				"Response: " + attempt.Message
			skipPrefix, skipping = s.Prefix, true

		default:
			uploadErr.LastErr = fmt.Sprintf("GitHub upload failed (%d): %s", attempt.Status, attempt.Message)
		}
	}

	return "", uploadErr
}

func (u *GitHubUploader) try(ctx context.Context, s Strategy, content []byte) (string, Attempt) {
	attempt := Attempt{Path: s.Path, Branch: s.Branch, Scheme: s.Scheme}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	client, err := u.client(ctx, s.Scheme)
	if err != nil {
		attempt.Message = err.Error()
		return "", attempt
	}

	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr("Add banner " + filepath.Base(s.Path)),
		Content: content,
	}
	if s.Branch != "" {
		opts.Branch = gh.Ptr(s.Branch)
	}

	result, resp, err := client.Repositories.CreateFile(ctx, u.owner, u.repo, s.Path, opts)
	if resp != nil {
		attempt.Status = resp.StatusCode
	}
	if err != nil {
		var errResp *gh.ErrorResponse
		if errors.As(err, &errResp) {
			attempt.Message = errResp.Message
			for _, e := range errResp.Errors {
				attempt.Message += " " + e.Message
			}
		} else {
			attempt.Message = err.Error()
		}
		return "", attempt
	}

	downloadURL := ""
	if result != nil && result.Content != nil {
		downloadURL = strings.TrimSpace(result.Content.GetDownloadURL())
	}
	if downloadURL == "" {
		attempt.Message = "GitHub upload succeeded but download_url was missing"
	}
	return downloadURL, attempt
}

func (u *GitHubUploader) client(ctx context.Context, scheme string) (*gh.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: u.cfg.Token, TokenType: scheme})
	client := gh.NewClient(oauth2.NewClient(ctx, ts))
	if u.cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(u.cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub base URL: %w", err)
		}
		client.BaseURL = base
	}
	return client, nil
}
