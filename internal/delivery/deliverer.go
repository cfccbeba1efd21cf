// Package delivery implements the capsule delivery scheduler: discover due
// capsules, resolve and render their content, send, and write the terminal
// status exactly once per capsule.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capsulemail/capsuled/internal/metrics"
	"github.com/capsulemail/capsuled/internal/model"
	"github.com/capsulemail/capsuled/internal/notifier"
	"github.com/capsulemail/capsuled/internal/render"
	"github.com/capsulemail/capsuled/internal/repository"
	"go.uber.org/zap"
)

// RunResult is what a single scheduler run reports to the operator.
type RunResult struct {
	Processed int       `json:"processed"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// candidateResult is the explicit per-candidate outcome aggregated by the
// run loop; one candidate's failure never aborts the others.
type candidateResult struct {
	capsule model.Capsule
	outcome model.DeliveryOutcome
	errMsg  string
}

// Deliverer orchestrates delivery runs. All collaborators are injected;
// the command entry point owns their lifecycle.
//
// Runs are stateless and safe under at-least-once invocation: the only
// shared mutable state is the capsule record, and both terminal writes are
// conditional on status still being pending. Two overlapping runs racing on
// one capsule may both send (accepted risk) but only one transition lands.
type Deliverer struct {
	store    repository.CapsulesRepository
	resolver *ContentResolver
	notifier notifier.Notifier
	dlog     repository.DeliveryLogRepository // optional
	logger   *zap.Logger

	// Behavior
	Workers     int           // goroutines processing candidates
	BatchLimit  int           // max candidates fetched per run
	SendTimeout time.Duration // per-send bound; timeout counts as send failure

	now func() time.Time
}

// NewDeliverer builds a scheduler with sane defaults. dlog may be nil when
// no delivery log is configured.
func NewDeliverer(
	store repository.CapsulesRepository,
	resolver *ContentResolver,
	n notifier.Notifier,
	dlog repository.DeliveryLogRepository,
	logger *zap.Logger,
) *Deliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{
		store:       store,
		resolver:    resolver,
		notifier:    n,
		dlog:        dlog,
		logger:      logger,
		Workers:     4,
		BatchLimit:  500,
		SendTimeout: 10 * time.Second,
		now:         time.Now,
	}
}

// Run executes one discovery-through-delivery cycle. Only a failing due
// query fails the run; everything after is absorbed per candidate.
func (d *Deliverer) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	runAt := d.now().UTC()

	due, err := d.store.FindDue(ctx, runAt, d.BatchLimit)
	if err != nil {
		return RunResult{}, fmt.Errorf("find due capsules: %w", err)
	}

	d.logger.Info("delivery run started",
		zap.Time("run_at", runAt),
		zap.Int("due", len(due)),
	)

	results := d.processAll(ctx, due)

	res := RunResult{Timestamp: runAt}
	records := make([]model.DeliveryRecord, 0, len(results))
	for _, cr := range results {
		res.Processed++
		switch cr.outcome {
		case model.OutcomeDelivered:
			res.Delivered++
		case model.OutcomeFailed:
			res.Failed++
		case model.OutcomeSkipped:
			// already transitioned by a concurrent run: counted as
			// processed only, never double-counted as delivered
		}
		metrics.DeliveriesTotal.WithLabelValues(cr.outcome.String()).Inc()

		records = append(records, model.DeliveryRecord{
			CapsuleID: cr.capsule.ID,
			OwnerID:   cr.capsule.OwnerID,
			Recipient: cr.capsule.RecipientEmail,
			Outcome:   cr.outcome,
			Error:     cr.errMsg,
			RunAt:     runAt,
		})
	}

	if d.dlog != nil && len(records) > 0 {
		if err := d.dlog.InsertBatch(ctx, records); err != nil {
			d.logger.Warn("delivery log append failed", zap.Error(err))
		}
	}

	d.logger.Info("delivery run completed",
		zap.Int("processed", res.Processed),
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)

	return res, nil
}

// processAll fans candidates out to d.Workers goroutines and collects
// per-candidate results. Candidates are independent; ordering between them
// carries no meaning.
func (d *Deliverer) processAll(ctx context.Context, due []model.Capsule) []candidateResult {
	if len(due) == 0 {
		return nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(due) {
		workers = len(due)
	}

	in := make(chan model.Capsule, len(due))
	for _, c := range due {
		in <- c
	}
	close(in)

	out := make(chan candidateResult, len(due))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range in {
				out <- d.processOne(ctx, c)
			}
		}()
	}
	wg.Wait()
	close(out)

	results := make([]candidateResult, 0, len(due))
	for cr := range out {
		results = append(results, cr)
	}
	return results
}

// processOne runs the per-candidate protocol: resolve, render, send, then
// the conditional terminal write. The adapter's conditional update is the
// pending re-validation; no separate read is needed.
func (d *Deliverer) processOne(ctx context.Context, c model.Capsule) candidateResult {
	text := d.resolver.Resolve(ctx, c)
	msg := render.Render(c, text)

	sendCtx, cancel := context.WithTimeout(ctx, d.SendTimeout)
	defer cancel()

	sendErr := d.notifier.Send(sendCtx, notifier.Email{
		To:       c.RecipientEmail,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
	})

	at := d.now().UTC()

	if sendErr != nil {
		applied, werr := d.store.MarkFailed(ctx, c.ID, sendErr.Error(), at)
		if werr != nil {
			// the capsule stays pending and the next run retries it
			d.logger.Error("mark failed write error",
				zap.String("capsule_id", c.ID),
				zap.Error(werr),
			)
		} else if !applied {
			d.logger.Info("capsule already terminal on failure path",
				zap.String("capsule_id", c.ID),
			)
		}
		d.logger.Warn("capsule delivery failed",
			zap.String("capsule_id", c.ID),
			zap.String("recipient", c.RecipientEmail),
			zap.Error(sendErr),
		)
		return candidateResult{capsule: c, outcome: model.OutcomeFailed, errMsg: sendErr.Error()}
	}

	applied, werr := d.store.MarkDelivered(ctx, c.ID, at)
	switch {
	case werr != nil:
		// email went out but the record still says pending; accepted risk,
		// not corrected automatically
		d.logger.Error("mark delivered write error",
			zap.String("capsule_id", c.ID),
			zap.Error(werr),
		)
		return candidateResult{capsule: c, outcome: model.OutcomeDelivered, errMsg: werr.Error()}
	case !applied:
		d.logger.Info("capsule already delivered by concurrent run",
			zap.String("capsule_id", c.ID),
		)
		return candidateResult{capsule: c, outcome: model.OutcomeSkipped}
	default:
		d.logger.Info("capsule delivered",
			zap.String("capsule_id", c.ID),
			zap.String("recipient", c.RecipientEmail),
		)
		return candidateResult{capsule: c, outcome: model.OutcomeDelivered}
	}
}
