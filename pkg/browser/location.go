package browser

import (
	"context"
	"fmt"

	formstate "github.com/goliatone/go-formstate"
)

// Location reads and replaces the page's URL fragment.
type Location struct {
	run Runner
}

func NewLocation(r Runner) *Location {
	return &Location{run: r}
}

const jsHash = `() => window.location.hash`

// history.replaceState swaps the fragment without a history entry or a
// hashchange event.
const jsReplaceHash = `(hash) => {
	const base = window.location.pathname + window.location.search;
	history.replaceState(history.state, "", hash ? base + hash : base);
	return true;
}`

func (l *Location) Hash(ctx context.Context) (string, error) {
	var hash string
	if err := call(ctx, l.run, &hash, jsHash); err != nil {
		return "", fmt.Errorf("browser: read hash: %w", err)
	}
	return hash, nil
}

func (l *Location) ReplaceHash(ctx context.Context, hash string) error {
	if err := call(ctx, l.run, nil, jsReplaceHash, hash); err != nil {
		return fmt.Errorf("browser: replace hash: %w", err)
	}
	return nil
}

var _ formstate.Location = (*Location)(nil)
