package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/roster"
)

// Reconciler applies queue entries to the run's roster.
type Reconciler struct {
	cfg    *config.Config
	roster *roster.Roster
	logger *log.Logger
}

// New creates a Reconciler for one run. The roster must have been built for
// the same configuration.
//
// If logger is nil, a default logger writing to stderr is used.
func New(cfg *config.Config, r *roster.Roster, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(log.Writer(), "[reconcile] ", log.LstdFlags)
	}
	return &Reconciler{cfg: cfg, roster: r, logger: logger}
}

// Reconcile applies one entry. See the package documentation for the
// decision rules.
func (rc *Reconciler) Reconcile(ctx context.Context, e Entry) Result {
	name := strings.TrimSpace(e.FullName)
	tag := strings.TrimSpace(e.NewCoachTag)
	res := Result{Row: e.Row, Client: name}

	if name == "" || !rc.cfg.HasCoachPrefix(tag) {
		rc.logger.Printf("Skipping row %d: missing full name or coach tag", e.Row)
		return rc.fail(res, ReasonInvalidRow, fmt.Errorf("row %d: name %q, tag %q", e.Row, name, tag))
	}

	newCoach, ok := rc.cfg.CoachForTag(tag)
	if !ok {
		rc.logger.Printf("Skipping row %d: %q is not a configured coach sheet", e.Row, tag)
		return rc.fail(res, ReasonUnknownCoach, fmt.Errorf("row %d: unknown coach %q", e.Row, tag))
	}
	res.NewCoach = newCoach

	oldCoach, placed := rc.roster.CoachOf(name)
	if placed {
		res.OldCoach = oldCoach
	}

	// A row in the target sheet means the client is already in place, even
	// when the index points at another sheet holding a stray copy.
	if rc.roster.Has(newCoach, name) {
		rc.logger.Printf("%s is already in %s, checking other sheets for duplicates", name, newCoach)
		return rc.dedupe(ctx, res)
	}

	return rc.move(ctx, res, placed)
}

// dedupe removes every copy of the client outside the target sheet.
func (rc *Reconciler) dedupe(ctx context.Context, res Result) Result {
	res.Outcome = DedupedOnly
	if err := rc.removeElsewhere(ctx, &res); err != nil {
		return rc.fail(res, ReasonWriteError, err)
	}
	return res
}

// move appends the client to the target sheet, then removes it from the
// old coach's sheet and any other sheet still holding a copy.
func (rc *Reconciler) move(ctx context.Context, res Result, placed bool) Result {
	pay := ResolvePay(rc.cfg, res.NewCoach)
	if raw, ok := rc.cfg.PayFor(res.NewCoach); ok && NormalizePay(raw, "") == "" {
		warning := fmt.Sprintf("pay %q for %s is not an amount, %s got the default %s", raw, res.NewCoach, res.Client, pay)
		rc.logger.Printf("WARNING: %s", warning)
		res.Warnings = append(res.Warnings, warning)
	}
	rec := roster.ClientRecord{
		AssignedCoach: res.NewCoach,
		ClientName:    res.Client,
		PayRate:       pay,
	}

	row, err := rc.roster.Append(ctx, res.NewCoach, rec)
	if err != nil {
		rc.logger.Printf("Failed to add %s to %s: %v", res.Client, res.NewCoach, err)
		return rc.fail(res, ReasonWriteError, err)
	}
	res.Added = 1
	rc.logger.Printf("Added %s to %s (row %d, pay %s)", res.Client, res.NewCoach, row, pay)

	if placed && res.OldCoach != res.NewCoach {
		n, err := rc.roster.Remove(ctx, res.OldCoach, res.Client)
		res.Removed += n
		if err != nil {
			rc.logger.Printf("Failed to remove %s from %s: %v", res.Client, res.OldCoach, err)
			return rc.fail(res, ReasonWriteError, err)
		}
		rc.logger.Printf("Removed %s from %s", res.Client, res.OldCoach)
	}

	if err := rc.removeElsewhere(ctx, &res); err != nil {
		return rc.fail(res, ReasonWriteError, err)
	}

	res.Outcome = Moved
	return res
}

// removeElsewhere deletes the client from every coach sheet except the
// target, adding to res.Removed as it goes.
func (rc *Reconciler) removeElsewhere(ctx context.Context, res *Result) error {
	for _, sheet := range rc.roster.Sheets() {
		if sheet == res.NewCoach {
			continue
		}
		n, err := rc.roster.Remove(ctx, sheet, res.Client)
		res.Removed += n
		if err != nil {
			rc.logger.Printf("Failed to remove duplicate %s from %s: %v", res.Client, sheet, err)
			return err
		}
		if n > 0 {
			rc.logger.Printf("Removed duplicate %s from %s", res.Client, sheet)
		}
	}
	return nil
}

func (rc *Reconciler) fail(res Result, reason Reason, err error) Result {
	res.Outcome = Failed
	res.Reason = reason
	res.Err = err
	return res
}
