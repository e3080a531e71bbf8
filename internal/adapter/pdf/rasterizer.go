package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/user/tablemagnifier/internal/repository"
)

// Rasterizer renders PDF pages to images with poppler's pdftoppm.
type Rasterizer struct {
	bin     string
	timeout time.Duration
}

// NewRasterizer uses bin (looked up on PATH when not absolute) and bounds each
// page render by timeout.
func NewRasterizer(bin string, timeout time.Duration) *Rasterizer {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &Rasterizer{bin: bin, timeout: timeout}
}

// Available reports whether the pdftoppm binary can be found.
func (r *Rasterizer) Available() error {
	if _, err := exec.LookPath(r.bin); err != nil {
		return fmt.Errorf("%s not found: %w", r.bin, err)
	}
	return nil
}

func pdftoppmArgs(pdfPath, prefix string, page, dpi int) []string {
	p := strconv.Itoa(page)
	return []string{"-png", "-r", strconv.Itoa(dpi), "-f", p, "-l", p, "-singlefile", "-q", pdfPath, prefix}
}

// RenderPage rasterizes one 1-based page at dpi.
func (r *Rasterizer) RenderPage(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "tablemagnifier-page-")
	if err != nil {
		return nil, fmt.Errorf("mkdir tmp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, r.bin, pdftoppmArgs(pdfPath, prefix, page, dpi)...)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: pdftoppm page %d", repository.ErrRenderTimeout, page)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm page %d: %w: %s", repository.ErrDecodeFailed, page, err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page %d: %w", page, err)
	}
	return img, nil
}
