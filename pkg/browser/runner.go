// Package browser binds the engine to a live page driven by go-rod: the
// page's localStorage and sessionStorage as stores, its location as the
// fragment carrier and its form controls as the field provider.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
)

// Runner evaluates a JavaScript function on a page and returns its result as
// JSON.
type Runner interface {
	Run(ctx context.Context, js string, args ...any) ([]byte, error)
}

// PageRunner runs scripts on a rod page.
type PageRunner struct {
	Page *rod.Page
}

// NewPageRunner wraps page.
func NewPageRunner(page *rod.Page) PageRunner {
	return PageRunner{Page: page}
}

func (r PageRunner) Run(ctx context.Context, js string, args ...any) ([]byte, error) {
	if r.Page == nil {
		return nil, fmt.Errorf("browser: page is required")
	}
	res, err := r.Page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: evaluate: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return []byte("null"), nil
	}
	return res.Value.MarshalJSON()
}

func call(ctx context.Context, r Runner, out any, js string, args ...any) error {
	raw, err := r.Run(ctx, js, args...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("browser: decode result: %w", err)
	}
	return nil
}
