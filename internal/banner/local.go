package banner

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/raphaelgruber/docrelay/internal/models"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Canvas and layout constants for locally rendered banners.
const (
	Width  = 1000
	Height = 420

	defaultTitle    = "New Blog Post"
	maxTitleLen     = 72
	maxLocalCaption = 160
	maxTitleLines   = 3
	lineSpacing     = 10
	captionSize     = 24
	maxFontSize     = 76
	minFontSize     = 36
	fontSizeStep    = 2
)

var (
	accentBlue  = color.RGBA{96, 165, 250, 255}
	accentGreen = color.RGBA{167, 243, 208, 255}
	captionFill = color.RGBA{12, 18, 32, 255}
	captionText = color.RGBA{230, 245, 255, 255}

	outlineOffsets = [][2]float64{{-2, -2}, {2, -2}, {-2, 2}, {2, 2}, {0, -2}, {0, 2}, {-2, 0}, {2, 0}}
)

var (
	boldFont    = mustParseFont(gobold.TTF)
	regularFont = mustParseFont(goregular.TTF)
)

func mustParseFont(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(fmt.Sprintf("parse embedded font: %v", err))
	}
	return f
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// LocalRenderer draws text banners without any external service.
type LocalRenderer struct {
	dir string
	now func() time.Time
}

// NewLocalRenderer writes banners into dir.
func NewLocalRenderer(dir string) *LocalRenderer {
	return &LocalRenderer{dir: dir, now: time.Now}
}

// Render draws a banner for title and saves it as banner-<unix>.png.
// It returns the path of the written file.
func (r *LocalRenderer) Render(title, caption string) (string, error) {
	img := Draw(title, caption)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create banner dir: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("banner-%d.png", r.now().Unix()))
	if err := gg.SavePNG(path, img); err != nil {
		return "", fmt.Errorf("save banner: %w", err)
	}

	slog.Info("rendered local banner", "path", path)
	return path, nil
}

// Draw renders the banner image in memory.
func Draw(title, caption string) image.Image {
	dc := gg.NewContext(Width, Height)

	grad := gg.NewLinearGradient(0, 0, 0, Height)
	grad.AddColorStop(0, color.RGBA{18, 24, 46, 255})
	grad.AddColorStop(1, color.RGBA{50, 46, 90, 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, Width, Height)
	dc.Fill()

	drawAccents(dc)
	drawTitle(dc, normalizeTitle(title))
	if caption = strings.TrimSpace(caption); caption != "" {
		drawCaption(dc, models.Truncate(models.CollapseSpace(caption), maxLocalCaption, maxLocalCaption-3, "..."))
	}
	return dc.Image()
}

func drawAccents(dc *gg.Context) {
	dc.SetLineWidth(6)

	// Ellipse bounded by (W-360,-120)..(W+40,280).
	dc.DrawEllipse(Width-160, 80, 200, 200)
	dc.SetColor(accentBlue)
	dc.Stroke()

	dc.DrawRoundedRectangle(60, Height-200, 460, 120, 24)
	dc.SetColor(accentGreen)
	dc.Stroke()
}

func normalizeTitle(title string) string {
	title = models.CollapseSpace(title)
	if title == "" {
		return defaultTitle
	}
	return models.Truncate(title, maxTitleLen, maxTitleLen-3, "…")
}

func drawTitle(dc *gg.Context, title string) {
	lines, size := fitText(dc, title)
	dc.SetFontFace(face(boldFont, size))

	lineHeight := dc.FontHeight()
	blockHeight := float64(len(lines))*lineHeight + float64(len(lines)-1)*lineSpacing
	top := (Height - blockHeight) / 2

	draw := func(dx, dy float64) {
		for i, line := range lines {
			y := top + float64(i)*(lineHeight+lineSpacing) + lineHeight/2
			dc.DrawStringAnchored(line, Width/2+dx, y+dy, 0.5, 0.5)
		}
	}

	dc.SetColor(color.Black)
	for _, o := range outlineOffsets {
		draw(o[0], o[1])
	}
	dc.SetColor(color.White)
	draw(0, 0)
}

// fitText picks the largest font size whose wrapped block fits the title area.
func fitText(dc *gg.Context, title string) ([]string, float64) {
	maxW := math.Floor(Width * 0.86)
	maxH := math.Floor(Height * 0.42)

	for size := maxFontSize; size >= minFontSize; size -= fontSizeStep {
		dc.SetFontFace(face(boldFont, float64(size)))
		lines := wrapLines(title, measureWith(dc), maxW, maxTitleLines)

		width := 0.0
		for _, line := range lines {
			if w, _ := dc.MeasureString(line); w > width {
				width = w
			}
		}
		height := float64(len(lines))*dc.FontHeight() + float64(len(lines)-1)*lineSpacing
		if width <= maxW && height <= maxH {
			return lines, float64(size)
		}
	}

	dc.SetFontFace(face(boldFont, minFontSize))
	return wrapLines(title, measureWith(dc), maxW, maxTitleLines), minFontSize
}

func measureWith(dc *gg.Context) func(string) float64 {
	return func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}
}

// wrapLines greedily wraps text into at most maxLines lines no wider than maxW.
// A word always starts an empty line even if it is too wide. When words are
// left over, the last line is shortened until it fits with a trailing "…".
func wrapLines(text string, measure func(string) float64, maxW float64, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current []string
	for _, word := range words {
		candidate := strings.Join(append(append([]string{}, current...), word), " ")
		if measure(candidate) <= maxW || len(current) == 0 {
			current = append(current, word)
			continue
		}
		lines = append(lines, strings.Join(current, " "))
		current = []string{word}
		if len(lines) >= maxLines {
			break
		}
	}
	if len(lines) < maxLines && len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	placed := 0
	for _, line := range lines {
		placed += len(strings.Fields(line))
	}
	if len(lines) == maxLines && placed < len(words) {
		lines[len(lines)-1] = ellipsize(lines[len(lines)-1], measure, maxW)
	}
	return lines
}

func ellipsize(line string, measure func(string) float64, maxW float64) string {
	for last := line; last != ""; {
		candidate := strings.TrimRight(last, " .") + "…"
		if measure(candidate) <= maxW {
			return candidate
		}
		fields := strings.Fields(last)
		last = strings.Join(fields[:len(fields)-1], " ")
	}

	r := []rune(line)
	keep := len(r) - 2
	if keep < 1 {
		keep = 1
	}
	if keep > len(r) {
		keep = len(r)
	}
	return strings.TrimRight(string(r[:keep]), " ") + "…"
}

func drawCaption(dc *gg.Context, caption string) {
	const padX, padY, boxX = 14.0, 10.0, 36.0

	dc.SetFontFace(face(regularFont, captionSize))
	capW, capH := dc.MeasureString(caption)
	boxY := Height - capH - padY*2 - 28

	dc.DrawRectangle(boxX-padX, boxY-padY, capW+padX*2, capH+padY*2)
	dc.SetColor(captionFill)
	dc.FillPreserve()
	dc.SetLineWidth(2)
	dc.SetColor(color.White)
	dc.Stroke()

	dc.SetColor(captionText)
	dc.DrawStringAnchored(caption, boxX, boxY, 0, 1)
}
