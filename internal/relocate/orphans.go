package relocate

import (
	"context"
	"fmt"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
)

// ReclaimOrphans retries reclamation of every old root recorded by earlier
// relocations. Roots that end up Removed are dropped from the ledger.
func (c *Coordinator) ReclaimOrphans(ctx context.Context) ([]reaper.Reclamation, error) {
	if !c.mu.TryLock() {
		return nil, ErrRelocationInProgress
	}
	defer c.mu.Unlock()
	c.running.Store(true)
	defer c.running.Store(false)

	current := c.ledger.CurrentRoot()
	var out []reaper.Reclamation
	for _, o := range c.ledger.Orphans() {
		if !current.IsZero() && c.overlaps(o.Path, current.Path) {
			c.logger.Warn("orphan overlaps the active root; forgetting it", "path", o.Path)
			if err := c.ledger.ForgetOrphan(o.Path); err != nil {
				return out, err
			}
			continue
		}
		rec, err := c.reclaim(ctx, o.Path)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReclaimPath runs the reaper alone on path, which must not overlap the
// active root. The orphan list is updated with the outcome.
func (c *Coordinator) ReclaimPath(ctx context.Context, path string) (reaper.Reclamation, error) {
	if !c.mu.TryLock() {
		return reaper.Reclamation{}, ErrRelocationInProgress
	}
	defer c.mu.Unlock()
	c.running.Store(true)
	defer c.running.Store(false)

	current := c.ledger.CurrentRoot()
	if !current.IsZero() && c.overlaps(path, current.Path) {
		return reaper.Reclamation{}, fmt.Errorf("refusing to reclaim %s: it overlaps the active root %s", path, current.Path)
	}
	return c.reclaim(ctx, path)
}

func (c *Coordinator) reclaim(ctx context.Context, path string) (reaper.Reclamation, error) {
	rec := c.reaper.Reclaim(ctx, path)
	c.publish(events.TypeReclamation, events.ReclamationPayload{Path: rec.Path, Outcome: rec.OutcomeName})
	c.logger.Info("reclamation finished", "path", path, "outcome", rec.Outcome.String(), "tier", rec.Tier)

	var err error
	if rec.Outcome == reaper.Removed {
		err = c.ledger.ForgetOrphan(path)
	} else if !rec.Refused {
		err = c.ledger.RecordOrphan(path, rec.Outcome.String())
	}
	if err != nil {
		return rec, fmt.Errorf("update orphan record for %s: %w", path, err)
	}
	return rec, nil
}

func (c *Coordinator) overlaps(a, b string) bool {
	if _, ok := c.flavor.Within(a, b); ok {
		return true
	}
	_, ok := c.flavor.Within(b, a)
	return ok
}
