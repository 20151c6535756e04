package cdphost

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Sweeper closes page targets the host does not own, such as surfaces left
// behind by a previous run or popups that escaped interception.
type Sweeper struct {
	cdpURL string
	owned  func() map[target.ID]bool
}

func NewSweeper(cdpURL string, owned func() map[target.ID]bool) *Sweeper {
	return &Sweeper{cdpURL: cdpURL, owned: owned}
}

// Sweep closes every unowned page target and returns how many it closed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, s.cdpURL)
	defer allocCancel()

	tempCtx, tempCancel := chromedp.NewContext(allocCtx)
	defer tempCancel()

	if err := chromedp.Run(tempCtx); err != nil {
		return 0, fmt.Errorf("sweeper: connect to browser: %w", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		return 0, fmt.Errorf("sweeper: enumerate targets: %w", err)
	}

	self := chromedp.FromContext(tempCtx).Target.TargetID
	orphans := OrphanTargets(targets, s.owned(), self)

	closed := 0
	for _, id := range orphans {
		closeAction := chromedp.ActionFunc(func(ctx context.Context) error {
			return target.CloseTarget(id).Do(ctx)
		})
		if err := chromedp.Run(tempCtx, closeAction); err != nil {
			slog.Warn("orphan target close failed", "target_id", id, "error", err)
			continue
		}
		closed++
	}
	slog.Info("orphan sweep finished", "targets", len(targets), "closed", closed)
	return closed, nil
}

// OrphanTargets picks the page targets that are neither owned nor self.
func OrphanTargets(targets []*target.Info, owned map[target.ID]bool, self target.ID) []target.ID {
	var out []target.ID
	for _, t := range targets {
		if t.Type != "page" || t.TargetID == self || owned[t.TargetID] {
			continue
		}
		out = append(out, t.TargetID)
	}
	return out
}
