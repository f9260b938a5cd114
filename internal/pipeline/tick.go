package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/schedule"
)

const itemLeaseTTL = 2 * time.Minute

// Tick runs one scheduler pass. Due plans get new items and the research,
// script and video stages; every enabled plan gets generating-item sync and
// distribution. Plans are processed one after another and a failing plan
// never stops the others.
func (p *Pipeline) Tick(ctx context.Context) (*TickReport, error) {
	report := &TickReport{RunID: uuid.NewString()}
	log := p.Logger.With("run_id", report.RunID)

	plans, err := p.Store.EnabledPlans(ctx)
	if err != nil {
		return report, err
	}
	now := p.now()
	report.Plans = len(plans)

	due := make(map[uint]bool)
	for _, id := range p.Evaluator.EvaluateDuePlans(now, plans) {
		due[id] = true
	}
	report.DuePlans = len(due)

	for i := range plans {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		plan := &plans[i]
		planLog := log.With("plan_id", plan.ID)

		if due[plan.ID] {
			p.runGeneration(ctx, planLog, plan, now, report)
		}
		p.runReconciliation(ctx, planLog, plan, now, report)
	}

	log.Info("tick finished",
		"plans", report.Plans,
		"due", report.DuePlans,
		"created", report.Created,
		"scripts_ok", report.Scripts.Succeeded,
		"scripts_failed", report.Scripts.Failed,
		"videos_ok", report.Videos.Succeeded,
		"videos_failed", report.Videos.Failed,
		"distributed", report.Distribute.Succeeded,
	)
	return report, nil
}

func (p *Pipeline) runGeneration(ctx context.Context, log *slog.Logger, plan *models.Plan, now time.Time, report *TickReport) {
	created, err := p.ensureItems(ctx, plan, now)
	if err != nil {
		log.Error("failed to create plan items", "error", err)
	}
	report.Created += created

	if items, err := p.Store.ItemsNeedingResearch(ctx, plan.ID); err != nil {
		log.Error("failed to load items for research", "error", err)
	} else {
		add(&report.Research, fanOut(ctx, p.cfg.Concurrency, items, func(ctx context.Context, item *models.PlanItem) error {
			return p.research(ctx, plan, item)
		}))
	}

	if items, err := p.Store.ItemsNeedingScript(ctx, plan.ID); err != nil {
		log.Error("failed to load items for scripting", "error", err)
	} else {
		add(&report.Scripts, fanOut(ctx, p.cfg.Concurrency, items, func(ctx context.Context, item *models.PlanItem) error {
			return p.writeScript(ctx, plan, item)
		}))
	}

	if !plan.AutoCreate {
		return
	}
	if items, err := p.Store.ItemsAwaitingVideo(ctx, plan.ID); err != nil {
		log.Error("failed to load items for video generation", "error", err)
	} else {
		add(&report.Videos, fanOut(ctx, p.cfg.Concurrency, items, func(ctx context.Context, item *models.PlanItem) error {
			if p.Dispatch != nil {
				if err := p.Dispatch(ctx, item.ID); err != nil {
					log.Error("failed to dispatch video generation", "item_id", item.ID, "error", err)
					return err
				}
				return nil
			}
			return p.generate(ctx, plan, item)
		}))
	}
}

func (p *Pipeline) runReconciliation(ctx context.Context, log *slog.Logger, plan *models.Plan, now time.Time, report *TickReport) {
	if items, err := p.Store.ItemsGenerating(ctx, plan.ID); err != nil {
		log.Error("failed to load generating items", "error", err)
	} else {
		add(&report.Synced, fanOut(ctx, p.cfg.Concurrency, items, func(ctx context.Context, item *models.PlanItem) error {
			return p.syncItem(ctx, item)
		}))
	}

	if items, err := p.Store.ItemsAwaitingDistribution(ctx, plan.ID); err != nil {
		log.Error("failed to load items for distribution", "error", err)
	} else {
		add(&report.Distribute, fanOut(ctx, p.cfg.Concurrency, items, func(ctx context.Context, item *models.PlanItem) error {
			return p.distribute(ctx, plan, item, now)
		}))
	}
}

// ensureItems creates today's items for a due plan. The lease keeps two
// overlapping ticks from racing on creation; the unique index is the backstop.
func (p *Pipeline) ensureItems(ctx context.Context, plan *models.Plan, now time.Time) (int, error) {
	date, err := schedule.LocalDate(now, plan.Timezone)
	if err != nil {
		return 0, err
	}

	if p.Lease != nil {
		key := fmt.Sprintf("autopilot:lease:plan:%d:items:%s", plan.ID, date)
		acquired, err := p.Lease.Acquire(ctx, key, itemLeaseTTL)
		if err != nil {
			return 0, fmt.Errorf("failed to acquire item lease: %w", err)
		}
		if !acquired {
			return 0, nil
		}
	}

	return p.Store.EnsureItems(ctx, plan, date)
}

func add(dst *StageResult, r StageResult) {
	dst.Succeeded += r.Succeeded
	dst.Failed += r.Failed
}
