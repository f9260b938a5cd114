package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/providers/uploadpost"
	"github.com/reelcast/autopilot/internal/schedule"
	"github.com/reelcast/autopilot/internal/scriptgen"
	"github.com/reelcast/autopilot/internal/videogen"
)

// research moves a pending item to ready. Items that already carry research,
// or a topic on a plan without auto research, skip the text-generation call.
// A pending item with neither waits for the user.
func (p *Pipeline) research(ctx context.Context, plan *models.Plan, item *models.PlanItem) error {
	log := p.Logger.With("plan_id", plan.ID, "item_id", item.ID, "stage", "research")

	var research *models.Research
	switch {
	case item.Research != nil:
	case !plan.AutoResearch && strings.TrimSpace(item.Topic) != "":
	case !plan.AutoResearch:
		log.Debug("item has no topic and auto research is off")
		return nil
	default:
		r, err := p.Scripts.Research(ctx, plan.Niche, item.Topic)
		if err != nil {
			return p.fail(ctx, log, item.ID, models.ItemStatusPending, err)
		}
		research = r
	}

	if err := p.Store.MarkReady(ctx, item.ID, research); err != nil {
		if conflict(err) {
			return nil
		}
		return err
	}
	log.Info("item ready")
	return nil
}

// writeScript generates a script for a ready item.
func (p *Pipeline) writeScript(ctx context.Context, plan *models.Plan, item *models.PlanItem) error {
	log := p.Logger.With("plan_id", plan.ID, "item_id", item.ID, "stage", "script")

	res, err := p.Scripts.Generate(ctx, FieldsFor(item))
	if err != nil {
		return p.fail(ctx, log, item.ID, models.ItemStatusReady, err)
	}

	status, err := p.Store.SaveScript(ctx, item.ID, res.Script, plan.AutoApprove)
	if err != nil {
		if conflict(err) {
			log.Debug("item advanced concurrently, discarding script")
			return nil
		}
		return err
	}
	log.Info("script generated", "status", status, "tokens", res.TokensUsed)
	return nil
}

// FieldsFor maps an item's research, or its bare topic, to script inputs.
func FieldsFor(item *models.PlanItem) scriptgen.Fields {
	if r := item.Research; r != nil {
		f := scriptgen.Fields{
			Idea:         r.Idea,
			Description:  r.Description,
			WhyItMatters: r.WhyItMatters,
			UsefulTips:   r.UsefulTips,
			Category:     r.Category,
		}
		if f.Idea == "" {
			f.Idea = item.Topic
		}
		return f
	}
	return scriptgen.Fields{Idea: item.Topic}
}

func videoTopic(item *models.PlanItem) string {
	if item.Research != nil && item.Research.Idea != "" {
		return item.Research.Idea
	}
	return item.Topic
}

// generate claims an approved item and runs the orchestrator for it. Losing
// the claim to another worker is not an error.
func (p *Pipeline) generate(ctx context.Context, plan *models.Plan, item *models.PlanItem) error {
	log := p.Logger.With("plan_id", plan.ID, "item_id", item.ID, "stage", "video")

	if err := p.Store.ClaimForGeneration(ctx, item.ID); err != nil {
		if conflict(err) {
			log.Debug("item already claimed")
			return nil
		}
		return err
	}

	video, err := p.videoFor(ctx, plan, item)
	if err != nil {
		if ctx.Err() != nil {
			return p.release(ctx, log, item.ID, 0)
		}
		return p.fail(ctx, log, item.ID, models.ItemStatusGenerating, err)
	}
	log = log.With("video_id", video.ID)

	err = p.Videos.GenerateVideo(ctx, video, videogen.Options{
		AspectRatio:    plan.AspectRatio,
		GenerationMode: plan.GenerationMode,
		Settings:       plan.GenerationSettings,
	})
	if err != nil {
		if ctx.Err() != nil {
			return p.release(ctx, log, item.ID, video.ID)
		}
		return p.fail(ctx, log, item.ID, models.ItemStatusGenerating, err)
	}

	if video.Status != models.VideoStatusCompleted {
		// Another run owned the provider task; reconciliation finishes the item.
		return nil
	}
	if err := p.Store.TransitionItem(ctx, item.ID, models.ItemStatusGenerating, models.ItemStatusCompleted, nil); err != nil && !conflict(err) {
		return err
	}
	log.Info("item video completed", "url", video.VideoURL)
	return nil
}

// release handles a generation run interrupted by ctx. Once a provider task
// is recorded the item stays generating and reconciliation finishes it.
// Without one nothing would ever pick the item up again, so it goes back to
// approved. The writes outlive ctx.
func (p *Pipeline) release(ctx context.Context, log *slog.Logger, itemID, videoID uint) error {
	cause := ctx.Err()
	ctx = context.WithoutCancel(ctx)

	if videoID != 0 {
		video, err := p.Store.FindVideo(ctx, videoID)
		if err != nil {
			log.Error("failed to load interrupted video", "error", err)
			return cause
		}
		if video.HasProviderTask() {
			log.Warn("video generation interrupted, leaving item for reconciliation", "task_id", video.ProviderTaskID)
			return cause
		}
	}

	if err := p.Store.TransitionItem(ctx, itemID, models.ItemStatusGenerating, models.ItemStatusApproved, nil); err != nil && !conflict(err) {
		log.Error("failed to release interrupted item", "error", err)
		return cause
	}
	log.Warn("video generation interrupted before a provider task existed, item returned to approved")
	return cause
}

// videoFor returns the item's linked video or creates and links a new one.
func (p *Pipeline) videoFor(ctx context.Context, plan *models.Plan, item *models.PlanItem) (*models.Video, error) {
	if item.VideoID != nil {
		return p.Store.FindVideo(ctx, *item.VideoID)
	}

	script := ""
	if item.Script != nil {
		script = *item.Script
	}
	video := &models.Video{
		UserID:         plan.UserID,
		PlanItemID:     &item.ID,
		Topic:          videoTopic(item),
		Script:         script,
		Style:          plan.VideoStyle,
		AspectRatio:    plan.AspectRatio,
		GenerationMode: plan.GenerationMode,
		Status:         models.VideoStatusPending,
	}
	if p.Modes != nil {
		if mode, err := p.Modes.Resolve(plan.GenerationMode); err == nil {
			video.DurationSeconds = mode.DurationSeconds
			video.GenerationMode = mode.Name
		}
	}

	if err := p.Store.CreateVideo(ctx, video); err != nil {
		return nil, err
	}
	if err := p.Store.AttachVideo(ctx, item.ID, video.ID); err != nil {
		return nil, err
	}
	return video, nil
}

// syncItem moves a generating item to follow its video's terminal state.
func (p *Pipeline) syncItem(ctx context.Context, item *models.PlanItem) error {
	if item.VideoID == nil {
		return nil
	}
	video, err := p.Store.FindVideo(ctx, *item.VideoID)
	if err != nil {
		return err
	}
	return p.applyVideoStatus(ctx, item.ID, video)
}

func (p *Pipeline) applyVideoStatus(ctx context.Context, itemID uint, video *models.Video) error {
	var err error
	switch video.Status {
	case models.VideoStatusCompleted:
		err = p.Store.TransitionItem(ctx, itemID, models.ItemStatusGenerating, models.ItemStatusCompleted, nil)
	case models.VideoStatusFailed:
		msg := video.ErrorMessage
		if msg == "" {
			msg = "video generation failed"
		}
		err = p.Store.FailItem(ctx, itemID, models.ItemStatusGenerating, msg)
	default:
		return nil
	}
	if err != nil && !conflict(err) {
		return err
	}
	return nil
}

// distribute publishes a completed item. Posts are scheduled for the plan's
// post time when it is still ahead today and published immediately otherwise.
// An unparsable post time holds the item back.
func (p *Pipeline) distribute(ctx context.Context, plan *models.Plan, item *models.PlanItem, now time.Time) error {
	log := p.Logger.With("plan_id", plan.ID, "item_id", item.ID, "stage", "distribute")

	platforms := item.TargetPlatforms(*plan)
	if len(platforms) == 0 || item.VideoID == nil {
		return nil
	}

	var scheduledAt *time.Time
	if plan.PostTime != nil {
		loc, err := schedule.LoadLocation(plan.Timezone)
		if err != nil {
			log.Warn("plan timezone invalid, holding distribution", "error", err)
			return err
		}
		local := now.In(loc)
		clock, err := schedule.ParseClock(*plan.PostTime)
		if err != nil {
			log.Warn("post time invalid, holding distribution", "post_time", *plan.PostTime)
			return err
		}
		if !schedule.HasScheduledTimePassed(plan.PostTime, local) {
			at := clock.On(local)
			scheduledAt = &at
		}
	}

	video, err := p.Store.FindVideo(ctx, *item.VideoID)
	if err != nil {
		return err
	}
	account, err := p.Store.SocialAccount(ctx, plan.UserID, models.SocialAccountProviderUploadPost)
	if err != nil {
		return p.fail(ctx, log, item.ID, models.ItemStatusCompleted, fmt.Errorf("no distribution account linked: %w", err))
	}

	res, err := p.Publisher.Publish(ctx, uploadpost.PostRequest{
		User:        account.ProfileUsername,
		APIKey:      account.ProfileKey,
		Platforms:   platforms,
		VideoURL:    video.VideoURL,
		Title:       videoTopic(item),
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return p.fail(ctx, log, item.ID, models.ItemStatusCompleted, err)
	}

	post := &models.ScheduledPost{
		PlanItemID:  item.ID,
		VideoID:     video.ID,
		Platforms:   platforms,
		Status:      models.PostStatusPosted,
		RequestID:   res.RequestID,
		ScheduledAt: scheduledAt,
	}
	to := models.ItemStatusPosted
	if scheduledAt != nil {
		post.Status = models.PostStatusScheduled
		to = models.ItemStatusScheduled
	} else {
		postedAt := now
		post.PostedAt = &postedAt
	}

	if err := p.Store.CreateScheduledPost(ctx, post); err != nil {
		return err
	}
	if err := p.Store.AttachScheduledPost(ctx, item.ID, post.ID, to); err != nil && !conflict(err) {
		return err
	}
	log.Info("item distributed", "status", to, "request_id", res.RequestID)
	return nil
}

// fail records cause on the item and returns it. A conflicting write means
// another worker moved the item first; the cause is still returned.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, itemID uint, from models.ItemStatus, cause error) error {
	log.Warn("stage failed", "error", cause)
	if err := p.Store.FailItem(ctx, itemID, from, cause.Error()); err != nil && !conflict(err) {
		log.Error("failed to record item failure", "error", err)
	}
	return cause
}
