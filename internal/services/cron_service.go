package services

import (
	"context"
	"fmt"
	"time"

	"github.com/easexpo/marketplace-backend/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Retention windows for housekeeping jobs
const (
	revokedTokenRetention = 7 * 24 * time.Hour
	auditLogRetention     = 180 * 24 * time.Hour
	idleVisitorTimeout    = 30 * time.Minute
	rateLimitCleanupSpec  = "0 */10 * * * *"
	cronJobTimeout        = 5 * time.Minute
)

// StallReleaser frees stalls whose bookings have ended
type StallReleaser interface {
	ReleaseEndedStalls(ctx context.Context) (int64, error)
}

// TokenCleaner purges refresh tokens that can no longer be used
type TokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
	CleanupRevoked(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditCleaner purges old audit log rows
type AuditCleaner interface {
	CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron        *cron.Cron
	config      config.CronConfig
	stalls      StallReleaser
	tokens      TokenCleaner
	audits      AuditCleaner
	rateLimiter *RateLimitService
	logger      *logrus.Logger
}

// NewCronService creates a new CronService. Any job dependency may be nil,
// in which case that job is not scheduled.
func NewCronService(cfg config.CronConfig, stalls StallReleaser, tokens TokenCleaner, audits AuditCleaner, rateLimiter *RateLimitService, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:        cron.New(cron.WithSeconds()),
		config:      cfg,
		stalls:      stalls,
		tokens:      tokens,
		audits:      audits,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if !s.config.Enabled {
		s.logger.Info("Cron service disabled")
		return nil
	}

	jobs := []struct {
		name string
		spec string
		run  func()
		on   bool
	}{
		{"release ended stalls", s.config.ReleaseStallsSchedule, s.releaseStallsJob, s.stalls != nil},
		{"cleanup refresh tokens", s.config.TokenCleanupSchedule, s.cleanupTokensJob, s.tokens != nil},
		{"cleanup audit logs", s.config.TokenCleanupSchedule, s.cleanupAuditLogsJob, s.audits != nil},
		{"cleanup idle rate limiters", rateLimitCleanupSpec, s.cleanupRateLimitersJob, s.rateLimiter != nil},
	}

	for _, job := range jobs {
		if !job.on {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.name, "schedule": job.spec}).Info("Scheduled cron job")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// Entries returns the number of scheduled jobs
func (s *CronService) Entries() int {
	return len(s.cron.Entries())
}

// RunReleaseStallsNow runs the stall release job immediately
func (s *CronService) RunReleaseStallsNow(ctx context.Context) (int64, error) {
	if s.stalls == nil {
		return 0, nil
	}
	return s.stalls.ReleaseEndedStalls(ctx)
}

func (s *CronService) releaseStallsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	start := time.Now()
	released, err := s.RunReleaseStallsNow(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to release ended stalls")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"released": released,
		"duration": time.Since(start).String(),
	}).Info("[CRON] Released stalls of ended bookings")
}

func (s *CronService) cleanupTokensJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	expired, err := s.tokens.CleanupExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup expired refresh tokens")
		return
	}
	revoked, err := s.tokens.CleanupRevoked(ctx, revokedTokenRetention)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup revoked refresh tokens")
		return
	}
	s.logger.WithFields(logrus.Fields{"expired": expired, "revoked": revoked}).Info("[CRON] Cleaned up refresh tokens")
}

func (s *CronService) cleanupAuditLogsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	removed, err := s.audits.CleanupOldAuditLogs(ctx, auditLogRetention)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to cleanup audit logs")
		return
	}
	s.logger.WithField("removed", removed).Info("[CRON] Cleaned up audit logs")
}

func (s *CronService) cleanupRateLimitersJob() {
	if removed := s.rateLimiter.CleanupIdle(idleVisitorTimeout); removed > 0 {
		s.logger.WithField("removed", removed).Debug("[CRON] Dropped idle rate limiters")
	}
}
