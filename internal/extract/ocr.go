package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Rasterizer renders a single PDF page to a PNG file.
type Rasterizer interface {
	// Available reports whether the rendering tool can run on this host.
	Available(ctx context.Context) bool
	// RenderPage renders 1-based page of pdfPath into outPath.
	RenderPage(ctx context.Context, pdfPath string, page int, outPath string) error
}

// Recognizer runs optical character recognition on an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath, language string) (string, error)
}

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// GraphicsMagick renders pages with `gm convert` at 200 dpi scaled to A4 at that density.
type GraphicsMagick struct {
	path   string
	runner CommandRunner

	once      sync.Once
	available bool
}

// NewGraphicsMagick returns a rasterizer using the gm binary at path ("gm" when empty).
func NewGraphicsMagick(path string, runner CommandRunner) *GraphicsMagick {
	if path == "" {
		path = "gm"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &GraphicsMagick{path: path, runner: runner}
}

// Available runs `gm -version` once and caches the result.
func (g *GraphicsMagick) Available(ctx context.Context) bool {
	g.once.Do(func() {
		_, err := g.runner.Run(ctx, g.path, "-version")
		g.available = err == nil
	})
	return g.available
}

// RenderPage renders one page to outPath.
func (g *GraphicsMagick) RenderPage(ctx context.Context, pdfPath string, page int, outPath string) error {
	src := fmt.Sprintf("%s[%d]", pdfPath, page-1)
	out, err := g.runner.Run(ctx, g.path, "convert", "-density", "200", src, "-resize", "1654x2339", outPath)
	if err != nil {
		return fmt.Errorf("gm convert page %d: %w: %s", page, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// localOCR rasterizes each page into a scratch directory and recognizes it.
// Page failures are skipped; the scratch directory is always removed.
func (e *Extractor) localOCR(ctx context.Context, content []byte, language string) string {
	if e.rasterizer == nil || e.recognizer == nil {
		return ""
	}
	if !e.rasterizer.Available(ctx) {
		e.debug("local ocr skipped: rasterizer unavailable")
		return ""
	}

	pages := e.pdf.PageCount(content)
	if pages <= 0 {
		pages = 1
	}
	if e.maxPages > 0 && pages > e.maxPages {
		pages = e.maxPages
	}

	dir, err := os.MkdirTemp("", "loomi-ocr-*")
	if err != nil {
		e.warn("local ocr skipped: scratch dir", zap.Error(err))
		return ""
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, content, 0600); err != nil {
		e.warn("local ocr skipped: write input", zap.Error(err))
		return ""
	}

	var b strings.Builder
	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			break
		}
		text, err := e.recognizePage(ctx, dir, pdfPath, page, language)
		if err != nil {
			e.debug("local ocr page skipped", zap.Int("page", page), zap.Error(err))
			continue
		}
		b.WriteByte('\n')
		b.WriteString(text)
	}
	return Clean(b.String())
}

func (e *Extractor) recognizePage(ctx context.Context, dir, pdfPath string, page int, language string) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()
	imagePath := filepath.Join(dir, fmt.Sprintf("page-%d.png", page))
	if err := e.rasterizer.RenderPage(stepCtx, pdfPath, page, imagePath); err != nil {
		return "", err
	}
	defer os.Remove(imagePath)
	return e.recognizer.Recognize(stepCtx, imagePath, language)
}
