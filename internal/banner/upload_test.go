package banner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	Path   string
	Auth   string
	Branch string
}

// fakeContentsAPI answers Contents API PUTs with a scripted handler.
type fakeContentsAPI struct {
	mu     sync.Mutex
	calls  []recordedPut
	answer func(call recordedPut, n int) (int, string)
}

func (f *fakeContentsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	call := recordedPut{
		Path:   strings.TrimPrefix(r.URL.Path, "/repos/acme/site/contents/"),
		Auth:   r.Header.Get("Authorization"),
		Branch: body.Branch,
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()

	status, payload := f.answer(call, n)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func writeBanner(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"banner-1.png", "banner-1.png", false},
		{"my banner!!.png", "my-banner-.png", false},
		{"  --weird//name--  ", "weird-name", false},
		{"..", "", true},
		{"   ", "", true},
		{"///", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeComponent(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestStrategiesOrder(t *testing.T) {
	u, err := NewGitHubUploader(GitHubConfig{Token: "t", Repo: "acme/site", Branch: "main", PathPrefix: "/assets/img/"})
	require.NoError(t, err)

	strategies, err := u.Strategies("banner 1")
	require.NoError(t, err)
	require.Len(t, strategies, 12)

	assert.Equal(t, Strategy{Prefix: "assets/img", Path: "assets/img/banner-1.png", Branch: "main", Scheme: "Bearer"}, strategies[0])
	assert.Equal(t, Strategy{Prefix: "assets/img", Path: "assets/img/banner-1.png", Branch: "main", Scheme: "token"}, strategies[1])
	assert.Equal(t, Strategy{Prefix: "assets/img", Path: "assets/img/banner-1.png", Branch: "", Scheme: "Bearer"}, strategies[2])
	assert.Equal(t, "banners/banner-1.png", strategies[4].Path)
	assert.Equal(t, "banner-1.png", strategies[8].Path)

	u, err = NewGitHubUploader(GitHubConfig{Token: "t", Repo: "acme/site", PathPrefix: "banners"})
	require.NoError(t, err)
	strategies, err = u.Strategies("banner-1.png")
	require.NoError(t, err)
	assert.Len(t, strategies, 8, "the default prefix is not repeated")
}

func TestNewGitHubUploaderValidates(t *testing.T) {
	_, err := NewGitHubUploader(GitHubConfig{Repo: "acme/site"})
	assert.ErrorContains(t, err, "GITHUB_TOKEN missing")

	_, err = NewGitHubUploader(GitHubConfig{Token: "t", Repo: "acme"})
	assert.ErrorContains(t, err, "GITHUB_REPO missing/invalid")
}

func TestUploadFollowsStrategies(t *testing.T) {
	api := &fakeContentsAPI{answer: func(call recordedPut, n int) (int, string) {
		switch {
		case strings.HasPrefix(call.Path, "custom/"):
			return http.StatusUnprocessableEntity, `{"message":"path contains a malformed path component"}`
		case strings.HasPrefix(call.Path, "banners/"):
			return http.StatusForbidden, `{"message":"Resource not accessible by personal access token"}`
		case call.Auth == "Bearer secret":
			return http.StatusInternalServerError, `{"message":"boom"}`
		default:
			return http.StatusCreated, `{"content":{"download_url":"https://raw.example/acme/site/main/banner-1.png"}}`
		}
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	u, err := NewGitHubUploader(GitHubConfig{Token: "secret", Repo: "acme/site", Branch: "main", PathPrefix: "custom", BaseURL: srv.URL})
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), writeBanner(t, "banner-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://raw.example/acme/site/main/banner-1.png", url)

	assert.Equal(t, []recordedPut{
		{Path: "custom/banner-1.png", Auth: "Bearer secret", Branch: "main"},
		{Path: "banners/banner-1.png", Auth: "Bearer secret", Branch: "main"},
		{Path: "banner-1.png", Auth: "Bearer secret", Branch: "main"},
		{Path: "banner-1.png", Auth: "token secret", Branch: "main"},
	}, api.calls)
}

func TestUploadReportsAttempts(t *testing.T) {
	api := &fakeContentsAPI{answer: func(recordedPut, int) (int, string) {
		return http.StatusNotFound, `{"message":"Not Found"}`
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	u, err := NewGitHubUploader(GitHubConfig{Token: "secret", Repo: "acme/site", PathPrefix: "banners", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), writeBanner(t, "banner-2.png"))
	require.Error(t, err)

	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Len(t, uploadErr.Attempts, 8)
	assert.Equal(t, http.StatusNotFound, uploadErr.Attempts[0].Status)
	assert.Equal(t, "", uploadErr.Attempts[7].Branch)
	assert.Contains(t, err.Error(), "Last error: GitHub upload failed (404): Not Found")
}

func TestUploadMissingDownloadURL(t *testing.T) {
	api := &fakeContentsAPI{answer: func(recordedPut, int) (int, string) {
		return http.StatusCreated, `{"content":{}}`
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	u, err := NewGitHubUploader(GitHubConfig{Token: "secret", Repo: "acme/site", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), writeBanner(t, "banner-3.png"))
	assert.ErrorContains(t, err, "download_url was missing")
	assert.Len(t, api.calls, 2, "one attempt per prefix")
}
