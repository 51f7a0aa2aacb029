package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/openshare-counts/internal/config"
	"github.com/samvad-hq/openshare-counts/internal/logger"
	"github.com/samvad-hq/openshare-counts/internal/scanner"
)

// Renderer represents the page rendering runtime. It scans an HTML page for
// open share nodes, writes the rendered page and optionally repeats on an
// interval so counts stay fresh.
type Renderer struct {
	rt              *runtime
	scanner         *scanner.Scanner
	input           string
	output          string
	stdout          io.Writer
	refreshInterval time.Duration
	log             logger.Logger
}

// NewRenderer builds a renderer runtime from config.
func NewRenderer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Renderer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if cfg.RenderInput == "" {
		return nil, fmt.Errorf("render_input is required")
	}

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	sc := scanner.New(rt.registry,
		scanner.WithPublisher(rt.fanout),
		scanner.WithLogger(rt.log),
		scanner.WithCounterOptions(rt.counterOptions()...),
	)

	return &Renderer{
		rt:              rt,
		scanner:         sc,
		input:           cfg.RenderInput,
		output:          cfg.RenderOutput,
		stdout:          os.Stdout,
		refreshInterval: cfg.RefreshInterval,
		log:             rt.log,
	}, nil
}

// Run renders the page once, then again on every refresh tick until the
// context is cancelled. With no refresh interval it returns after one pass.
func (r *Renderer) Run(ctx context.Context) error {
	if r == nil || r.scanner == nil {
		return fmt.Errorf("renderer is not initialized")
	}
	defer r.close()

	if err := r.runOnce(ctx); err != nil {
		if r.refreshInterval <= 0 {
			return err
		}
		r.log.ErrorObj("initial render failed", "error", err)
	}
	if r.refreshInterval <= 0 {
		return nil
	}

	r.log.InfoObj("renderer loop starting", "renderer_state", map[string]any{
		"input":            r.input,
		"output":           r.output,
		"publishers_count": r.rt.fanout.Size(),
		"refresh_interval": r.refreshInterval.String(),
	})

	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("renderer loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled render failed", "error", err)
			}
		}
	}
}

// runOnce performs a single scan of the input page.
func (r *Renderer) runOnce(ctx context.Context) error {
	start := time.Now()

	raw, err := os.ReadFile(r.input)
	if err != nil {
		return fmt.Errorf("read render input: %w", err)
	}

	report, out, err := r.scanner.Scan(ctx, r.input, raw)
	if err != nil {
		return fmt.Errorf("scan %s: %w", r.input, err)
	}

	if err := r.write(out); err != nil {
		return err
	}

	r.log.InfoObj("render completed", "render_meta", map[string]any{
		"input":      r.input,
		"output":     r.output,
		"counts":     len(report.Counts),
		"shares":     len(report.Shares),
		"skipped":    report.Skipped,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// write replaces the output file atomically, or prints to stdout when no
// output path is configured.
func (r *Renderer) write(out []byte) error {
	if r.output == "" {
		_, err := r.stdout.Write(out)
		return err
	}

	dir := filepath.Dir(r.output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".render-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write render output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close render output: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.output); err != nil {
		return fmt.Errorf("replace render output: %w", err)
	}
	return nil
}

// close releases the runtime, logging any errors encountered.
func (r *Renderer) close() {
	if err := r.rt.Close(); err != nil {
		r.log.ErrorObj("runtime close failed", "error", err)
	}
}
