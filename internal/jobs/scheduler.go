// internal/jobs/scheduler.go
package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/propaintco/proppaint-backend/internal/services"
)

// Scheduler runs background maintenance. One job today: expiring unanswered
// approval requests.
type Scheduler struct {
	scheduler *gocron.Scheduler
	approvals *services.ApprovalService
}

func NewScheduler(approvals *services.ApprovalService) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		approvals: approvals,
	}
}

// Start registers the jobs and launches the scheduler in the background.
// The expiry sweep also runs once at startup to catch tokens that lapsed
// while the server was down.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At("06:00").Do(s.sweepApprovals); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	go s.sweepApprovals()

	logrus.WithField("jobs", len(s.scheduler.Jobs())).Info("Scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	logrus.Info("Scheduler stopped")
}

func (s *Scheduler) sweepApprovals() {
	expired, err := s.approvals.SweepExpired(time.Now())
	if err != nil {
		logrus.WithError(err).Error("Approval expiry sweep failed")
		return
	}
	if expired > 0 {
		logrus.WithField("expired", expired).Info("Approval tokens expired")
	}
}
