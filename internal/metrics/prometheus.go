// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the donation platform.
var (
	// Counters.
	PaymentIntentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Total number of payment intents created",
		},
		[]string{"status"},
	)

	DonationsRegisteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donations_registered_total",
			Help: "Total number of donation registrations",
		},
		[]string{"status"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of payment provider webhook events received",
		},
		[]string{"type", "status"},
	)

	PointsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_awarded_total",
			Help: "Total points awarded",
		},
		[]string{"category"},
	)

	PointsAwardFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_award_failures_total",
			Help: "Total failed point award attempts",
		},
		[]string{"reason"},
	)

	AchievementsUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"achievement_name"},
	)

	CampaignsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_completed_total",
			Help: "Total campaigns transitioned to completed",
		},
	)

	DonationsReconciledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_reconciled_total",
			Help: "Total donations whose lost point awards were recovered",
		},
	)

	// Gauges.
	PendingAwardsCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_awards_count",
			Help: "Number of donations awaiting point awards at last reconciliation",
		},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of the last run per scheduler job",
		},
		[]string{"job"},
	)

	// Histograms.
	DonationAmountCents = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donation_amount_cents",
			Help:    "Donation amounts in cents",
			Buckets: prometheus.ExponentialBuckets(100, 2.5, 10), // R$1 to ~R$95k
		},
		[]string{"campaign_category"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute scheduler jobs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"job"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)
)

// RecordPaymentIntentCreated records a payment intent creation attempt.
func RecordPaymentIntentCreated(status string) {
	PaymentIntentsCreatedTotal.WithLabelValues(status).Inc()
}

// RecordDonationRegistered records a donation registration outcome.
func RecordDonationRegistered(status string) {
	DonationsRegisteredTotal.WithLabelValues(status).Inc()
}

// RecordWebhookEvent records a received webhook event.
func RecordWebhookEvent(eventType, status string) {
	WebhookEventsTotal.WithLabelValues(eventType, status).Inc()
}

// RecordPointsAwarded records awarded points in a category.
func RecordPointsAwarded(category string, points int) {
	PointsAwardedTotal.WithLabelValues(category).Add(float64(points))
}

// RecordPointsAwardFailure records a failed point award attempt.
func RecordPointsAwardFailure(reason string) {
	PointsAwardFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordAchievementUnlocked records an achievement unlock event.
func RecordAchievementUnlocked(name string) {
	AchievementsUnlockedTotal.WithLabelValues(name).Inc()
}

// RecordCampaignCompleted records a campaign completion transition.
func RecordCampaignCompleted() {
	CampaignsCompletedTotal.Inc()
}

// RecordDonationReconciled records a recovered point award.
func RecordDonationReconciled() {
	DonationsReconciledTotal.Inc()
}

// SetPendingAwards sets the number of donations still awaiting awards.
func SetPendingAwards(count int) {
	PendingAwardsCount.Set(float64(count))
}

// ObserveDonationAmount observes a donation amount for a campaign category.
func ObserveDonationAmount(campaignCategory string, amountCents int64) {
	DonationAmountCents.WithLabelValues(campaignCategory).Observe(float64(amountCents))
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run for a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
