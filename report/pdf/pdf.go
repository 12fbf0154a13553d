package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRender wraps every failure to turn HTML into a PDF. It is not retried.
var ErrRender = errors.New("pdf render failed")

const (
	EngineChrome = "chrome"
	EngineBasic  = "basic"
)

// Generator converts a self-contained HTML document into PDF bytes.
type Generator interface {
	Render(ctx context.Context, html string) ([]byte, error)
	Close() error
}

// Options selects and configures an engine.
type Options struct {
	Engine     string
	ChromePath string
	Timeout    time.Duration
}

// New returns the engine named by opts.Engine. Chrome is the default.
func New(opts Options) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Engine)) {
	case EngineBasic:
		return NewBasic(), nil
	case "", EngineChrome:
		return NewChrome(opts.ChromePath, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown PDF engine %q", opts.Engine)
	}
}

func renderErr(engine string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRender, engine, err)
}
