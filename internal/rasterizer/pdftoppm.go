package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const stderrLimit = 2 << 10

// Pdftoppm renders through the poppler-utils binary.
type Pdftoppm struct {
	path   string
	runner Runner
}

func NewPdftoppm(path string, runner Runner) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Pdftoppm{path: path, runner: runner}
}

func (p *Pdftoppm) Name() string { return "pdftoppm" }

func (p *Pdftoppm) Render(ctx context.Context, pdf []byte, dpi int) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "testhub-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page> writes page-1.png, page-2.png, ...
	prefix := filepath.Join(tmpDir, "page")
	_, stderr, err := p.runner.Run(ctx, p.path, "-r", strconv.Itoa(dpi), "-png", in, prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("run %s: %w: %s", p.path, err, truncate(string(stderr), stderrLimit))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob output: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s produced no images", p.path)
	}
	numbered, err := sortByPageNumber(prefix, matches)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, len(numbered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, file := range numbered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(file.path)
			if err != nil {
				return fmt.Errorf("read page %d: %w", file.number, err)
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("decode page %d: %w", file.number, err)
			}
			pages[i] = Page{
				Number:   i + 1,
				Data:     data,
				MimeType: MimeTypePNG,
				Width:    cfg.Width,
				Height:   cfg.Height,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

type pageFile struct {
	number int
	path   string
}

// sortByPageNumber orders output files numerically; pdftoppm zero-pads by document
// length, so lexical order is not reliable across versions.
func sortByPageNumber(prefix string, matches []string) ([]pageFile, error) {
	files := make([]pageFile, 0, len(matches))
	for _, m := range matches {
		raw := strings.TrimSuffix(strings.TrimPrefix(m, prefix+"-"), ".png")
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("unexpected output file %q", filepath.Base(m))
		}
		files = append(files, pageFile{number: n, path: m})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].number < files[j].number })
	return files, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
