// Package parser holds the markdown transforms applied to generated articles
// and the text chunker used to build the docs index.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const (
	fence        = "---\n"
	bannerMarker = "![Banner]("
)

var underlineRegex = regexp.MustCompile(`^[=\-]{3,}$`)

// frontMatter is a leading YAML block. Head runs through the closing fence line
// (including its newline), Block is the YAML between the fences, Rest follows Head.
type frontMatter struct {
	Head  string
	Block string
	Rest  string
}

// splitFrontMatter returns the front matter of md, tolerating leading whitespace.
func splitFrontMatter(md string) (frontMatter, bool) {
	if !strings.HasPrefix(trimLeftSpace(md), fence) {
		return frontMatter{}, false
	}
	start := strings.Index(md, fence)
	closeIdx := strings.Index(md[start+len(fence):], "\n---")
	if closeIdx < 0 {
		return frontMatter{}, false
	}
	closeIdx += start + len(fence)

	end := len(md)
	if nl := strings.IndexByte(md[closeIdx+1:], '\n'); nl >= 0 {
		end = closeIdx + 1 + nl + 1
	}
	return frontMatter{
		Head:  md[:end],
		Block: md[start+len(fence) : closeIdx],
		Rest:  md[end:],
	}, true
}

// ParseFrontMatter decodes the leading YAML block, if any. A document without
// front matter yields an empty map.
func ParseFrontMatter(md string) (map[string]any, error) {
	meta := make(map[string]any)
	fm, ok := splitFrontMatter(md)
	if !ok {
		return meta, nil
	}
	if err := yaml.Unmarshal([]byte(fm.Block), &meta); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	if meta == nil {
		meta = make(map[string]any)
	}
	return meta, nil
}

// RemoveLeadingTitle strips one leading title from the body of md while keeping
// front matter byte-for-byte. After skipping blank lines it removes the first of:
// a "# " heading, a line equal to title (case-insensitive, ignoring '#' and
// whitespace), or a setext title whose next non-empty line is === or ---.
// md is returned unchanged when none apply.
func RemoveLeadingTitle(md, title string) string {
	if md == "" {
		return md
	}

	front, body := "", md
	if fm, ok := splitFrontMatter(md); ok {
		front, body = fm.Head, fm.Rest
	}

	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) {
		return md
	}

	first := strings.TrimSpace(lines[i])
	wantTitle := strings.ToLower(strings.TrimSpace(title))
	removed := false

	switch {
	case strings.HasPrefix(first, "# "):
		i++
		removed = true
	case wantTitle != "" && strings.ToLower(strings.Trim(first, " #\t")) == wantTitle:
		i++
		removed = true
	default:
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j < len(lines) && underlineRegex.MatchString(strings.TrimSpace(lines[j])) {
			i = j + 1
			removed = true
		}
	}

	if !removed {
		return md
	}
	return front + strings.TrimLeft(strings.Join(lines[i:], "\n"), "\n")
}

// EnsureCoverImage sets the cover_image front-matter key to url, creating front
// matter when absent. Applying it twice with the same url is a no-op.
func EnsureCoverImage(md, url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return md
	}
	entry := "cover_image: " + url

	fm, ok := splitFrontMatter(md)
	if !ok {
		return fence + entry + "\n" + fence + "\n" + strings.TrimLeft(md, "\n")
	}

	lines := strings.Split(fm.Block, "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "cover_image:") {
			lines[i] = entry
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	block := strings.TrimRightFunc(strings.Join(lines, "\n"), unicode.IsSpace)
	return fence + block + "\n" + fence + "\n" + strings.TrimLeft(fm.Rest, "\n")
}

// EnsureBanner inserts a visible banner image right after the front matter,
// unless one already appears near the top of the document.
func EnsureBanner(md, url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return md
	}

	head := trimLeftSpace(md)
	if len(head) > 400 {
		head = head[:400]
	}
	if strings.Contains(head, bannerMarker) {
		return md
	}

	image := bannerMarker + url + ")"
	if fm, ok := splitFrontMatter(md); ok && strings.HasSuffix(fm.Head, "\n") {
		return fm.Head + "\n" + image + "\n\n" + strings.TrimLeft(fm.Rest, "\n")
	}
	return image + "\n\n" + strings.TrimLeft(md, "\n")
}

// AppendAbout appends the company boilerplate section once.
func AppendAbout(md, company, blurb string) string {
	blurb = strings.TrimSpace(blurb)
	if blurb == "" || strings.Contains(md, blurb) {
		return md
	}
	return strings.TrimRightFunc(md, unicode.IsSpace) + "\n\n---\n\n## About " + company + "\n\n" + blurb
}

func trimLeftSpace(s string) string {
	return strings.TrimLeftFunc(s, unicode.IsSpace)
}
