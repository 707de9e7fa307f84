// Package corpus collects documentation files for the vector index.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// SourceKey is the metadata key holding the file path of a document.
const SourceKey = "source"

// DefaultExcludes are path parts that never contain documentation.
var DefaultExcludes = []string{"backend", "node_modules", ".git", "chroma_db", "dist", "build"}

// Loader walks a docs root and loads matching files.
type Loader struct {
	Root     string
	Glob     string
	Excludes []string
}

// NewLoader creates a loader. indexDir's base name is added to the exclusions
// so an index kept inside the docs tree is never read back.
func NewLoader(root, glob, indexDir string) *Loader {
	if glob == "" {
		glob = "**/*.mdx"
	}
	excludes := append([]string(nil), DefaultExcludes...)
	if base := filepath.Base(filepath.Clean(indexDir)); indexDir != "" && base != "." && base != ".." {
		excludes = append(excludes, base)
	}
	return &Loader{Root: root, Glob: glob, Excludes: excludes}
}

// Load returns one document per matching file, with metadata source set to its path.
// When the exclusions would drop every match, all matches are kept.
func (l *Loader) Load(ctx context.Context) ([]schema.Document, error) {
	paths, err := l.Collect()
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if !l.excluded(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 && len(paths) > 0 {
		slog.Warn("all documents matched an exclusion, keeping everything", "count", len(paths), "excludes", l.Excludes)
		kept = paths
	}

	docs := make([]schema.Document, 0, len(kept))
	for _, p := range kept {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := loadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	slog.Info("loaded documents", "root", l.Root, "glob", l.Glob, "count", len(docs))
	return docs, nil
}

// Collect returns every file under Root whose slash-separated relative path matches Glob.
func (l *Loader) Collect() ([]string, error) {
	if !doublestar.ValidatePattern(l.Glob) {
		return nil, fmt.Errorf("invalid docs glob %q", l.Glob)
	}

	var files []string
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.Match(l.Glob, filepath.ToSlash(rel)); ok {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(l.Root, walkFn); err != nil {
		return nil, fmt.Errorf("scan docs root: %w", err)
	}
	return files, nil
}

// excluded matches exclusions against the path below Root only.
func (l *Loader) excluded(path string) bool {
	if rel, err := filepath.Rel(l.Root, path); err == nil {
		path = rel
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, ex := range l.Excludes {
			if part == ex {
				return true
			}
		}
	}
	return false
}

func loadFile(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata[SourceKey] = path
	}
	return docs, nil
}
