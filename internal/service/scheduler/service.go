// Package scheduler runs the background jobs: campaign status sweep, points
// reconciliation and achievement evaluation backstop.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/doefacil/doefacil-api/internal/cache"
	"github.com/doefacil/doefacil-api/internal/config"
	prommetrics "github.com/doefacil/doefacil-api/internal/metrics"
	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/internal/service/achievements"
	"github.com/doefacil/doefacil-api/internal/service/points"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// reconcileMinAge keeps reconciliation away from donations whose synchronous
// award may still be in flight.
const reconcileMinAge = 10 * time.Minute

const lockTTL = 5 * time.Minute

// Alerter sends ops alerts.
type Alerter interface {
	SendReconciliationSummary(recovered, failed int) error
}

// Service handles background job scheduling.
type Service struct {
	config       *config.Config
	campaignRepo *repository.CampaignRepository
	donationRepo *repository.DonationRepository
	points       *points.Service
	achievements *achievements.Service
	cache        cache.Cache
	alerts       Alerter
	log          *logger.Logger
	cron         *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	campaignRepo *repository.CampaignRepository,
	donationRepo *repository.DonationRepository,
	pointsSvc *points.Service,
	achievementsSvc *achievements.Service,
	c cache.Cache,
	alerts Alerter,
	log *logger.Logger,
) *Service {
	return &Service{
		config:       cfg,
		campaignRepo: campaignRepo,
		donationRepo: donationRepo,
		points:       pointsSvc,
		achievements: achievementsSvc,
		cache:        c,
		alerts:       alerts,
		log:          log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.config.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	jobs := []struct {
		name string
		expr string
		run  func(context.Context)
	}{
		{"campaign_sweep", s.config.Scheduler.CampaignSweepCron, s.runCampaignSweep},
		{"reconciliation", s.config.Scheduler.ReconciliationCron, s.runReconciliation},
		{"achievement_evaluation", s.config.Scheduler.AchievementCron, s.runAchievementEvaluation},
	}

	for _, job := range jobs {
		if job.expr == "" {
			s.log.Info().Str("job", job.name).Msg("Job has no schedule, skipping")
			continue
		}
		run := job.run
		name := job.name
		if _, err := s.cron.AddFunc(job.expr, func() {
			s.withLock(name, run)
		}); err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
		s.log.Info().
			Str("job", job.name).
			Str("schedule", job.expr).
			Msg("Job registered")
	}

	s.cron.Start()

	s.log.Info().
		Str("timezone", s.config.Scheduler.Timezone).
		Int("jobs", len(s.cron.Entries())).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// withLock runs a job under a cache lock so only one instance executes it.
func (s *Service) withLock(name string, run func(context.Context)) {
	ctx := context.Background()

	key := fmt.Sprintf("lock:scheduler:%s", name)
	acquired, err := s.cache.SetNX(ctx, key, "1", lockTTL)
	if err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Failed to acquire job lock")
		return
	}
	if !acquired {
		s.log.Debug().Str("job", name).Msg("Job running on another instance, skipping")
		return
	}
	defer func() {
		if err := s.cache.Del(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("job", name).Msg("Failed to release job lock")
		}
	}()

	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(name, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(name)
	}()

	run(ctx)
}

// runCampaignSweep transitions fully funded active campaigns to completed.
// Reads derive the completed status on their own, so the sweep only has to
// persist the transition, not race it.
func (s *Service) runCampaignSweep(_ context.Context) {
	s.log.Info().Msg("Running campaign sweep job")

	funded, err := s.campaignRepo.ListFunded()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list funded campaigns")
		prommetrics.RecordSchedulerJobRun("campaign_sweep", "error")
		return
	}

	completed := 0
	for _, campaign := range funded {
		if err := s.campaignRepo.UpdateStatus(campaign.ID, models.CampaignStatusCompleted); err != nil {
			s.log.Error().
				Err(err).
				Uint("campaign_id", campaign.ID).
				Msg("Failed to complete campaign")
			continue
		}
		completed++
		prommetrics.RecordCampaignCompleted()
		s.log.Info().
			Uint("campaign_id", campaign.ID).
			Int64("raised_cents", campaign.RaisedCents).
			Int64("goal_cents", campaign.GoalCents).
			Msg("Campaign completed")
	}

	prommetrics.RecordSchedulerJobRun("campaign_sweep", "success")
	s.log.Info().
		Int("funded", len(funded)).
		Int("completed", completed).
		Msg("Campaign sweep job finished")
}

// runReconciliation re-awards points for donations whose award was lost to a
// storage failure. The award path is idempotent per source, so replaying a
// donation that meanwhile succeeded is harmless.
func (s *Service) runReconciliation(ctx context.Context) {
	s.log.Info().Msg("Running points reconciliation job")

	unawarded, err := s.donationRepo.ListUnawarded(time.Now().Add(-reconcileMinAge))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list unawarded donations")
		prommetrics.RecordSchedulerJobRun("reconciliation", "error")
		return
	}

	prommetrics.SetPendingAwards(len(unawarded))

	recovered, failed := 0, 0
	for _, donation := range unawarded {
		if err := s.reconcileDonation(ctx, &donation); err != nil {
			failed++
			s.log.Error().
				Err(err).
				Str("intent_id", donation.PaymentIntentID).
				Msg("Failed to reconcile donation")
			continue
		}
		recovered++
		prommetrics.RecordDonationReconciled()
	}

	if err := s.alerts.SendReconciliationSummary(recovered, failed); err != nil {
		s.log.Error().Err(err).Msg("Failed to send reconciliation summary")
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	prommetrics.RecordSchedulerJobRun("reconciliation", status)

	s.log.Info().
		Int("pending", len(unawarded)).
		Int("recovered", recovered).
		Int("failed", failed).
		Msg("Points reconciliation job finished")
}

// reconcileDonation replays the missing awards for one donation. Either side
// may already exist: a donor award can succeed while the owner award fails, an
// anonymous donation never has a donor award at all. Each side is re-awarded
// only if its ledger entry is absent.
func (s *Service) reconcileDonation(ctx context.Context, donation *models.Donation) error {
	campaign, err := s.campaignRepo.GetByID(donation.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign %d: %w", donation.CampaignID, err)
	}

	if donation.UserID != nil {
		donorID := *donation.UserID

		hasDonorAward, err := s.points.HasAward(ctx, donorID, "donation", donation.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("failed to check donor award: %w", err)
		}
		if !hasDonorAward {
			_, err = s.points.Award(ctx, donorID, models.CategoryDonation, points.DonationDonorPoints,
				fmt.Sprintf("Donation to %q", campaign.Title), "donation", donation.PaymentIntentID)
			if err != nil {
				return fmt.Errorf("failed to re-award donor points: %w", err)
			}
			if _, err := s.achievements.EvaluateUser(ctx, donorID); err != nil {
				s.log.Error().Err(err).Str("user_id", donorID).Msg("Achievement evaluation failed")
			}
		}

		// Self-donations earn donor points only.
		if donorID == campaign.UserID {
			return nil
		}
	}

	hasOwnerAward, err := s.points.HasAward(ctx, campaign.UserID, "donation", donation.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to check owner award: %w", err)
	}
	if !hasOwnerAward {
		_, err = s.points.Award(ctx, campaign.UserID, models.CategoryDonation, points.DonationOwnerPoints,
			fmt.Sprintf("Donation received on %q", campaign.Title), "donation", donation.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("failed to re-award owner points: %w", err)
		}
		if _, err := s.achievements.EvaluateUser(ctx, campaign.UserID); err != nil {
			s.log.Error().Err(err).Str("user_id", campaign.UserID).Msg("Achievement evaluation failed")
		}
	}

	return nil
}

// runAchievementEvaluation executes the achievement evaluation backstop.
func (s *Service) runAchievementEvaluation(ctx context.Context) {
	s.log.Info().Msg("Running achievement evaluation job")

	unlockCount, err := s.achievements.EvaluateAllUsers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Achievement evaluation job failed")
		prommetrics.RecordSchedulerJobRun("achievement_evaluation", "error")
		return
	}

	prommetrics.RecordSchedulerJobRun("achievement_evaluation", "success")
	s.log.Info().
		Int("unlocked", unlockCount).
		Msg("Achievement evaluation job finished")
}
