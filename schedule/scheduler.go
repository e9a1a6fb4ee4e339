package schedule

import (
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"snipewatch/internal/tracker"
	"snipewatch/pkg/solana/stream"
)

const StatusSchedule = "@every 5m"

// Controller is satisfied by *tracker.Controller.
type Controller interface {
	PrunePending() int
	Status() tracker.Status
}

// StateSource is satisfied by *stream.Manager.
type StateSource interface {
	State() stream.State
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron       *cron.Cron
	controller Controller
	stream     StateSource
}

// New registers the pending-token pruner on pruneSpec and the status log on
// StatusSchedule. An empty pruneSpec disables pruning.
func New(pruneSpec string, controller Controller, stream StateSource) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		controller: controller,
		stream:     stream,
	}

	if pruneSpec != "" {
		if _, err := s.cron.AddFunc(pruneSpec, s.prunePending); err != nil {
			return nil, fmt.Errorf("failed to add prune job %q: %w", pruneSpec, err)
		}
	}
	if _, err := s.cron.AddFunc(StatusSchedule, s.logStatus); err != nil {
		return nil, fmt.Errorf("failed to add status job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) prunePending() {
	if n := s.controller.PrunePending(); n > 0 {
		log.WithField("pruned", n).Debug("Pending token prune finished")
	}
}

func (s *Scheduler) logStatus() {
	st := s.controller.Status()
	fields := log.Fields{
		"target":               st.Target,
		"connection":           s.stream.State(),
		"pending_tokens":       len(st.PendingTokens),
		"processed_signatures": st.ProcessedSignatures,
		"retargets":            st.Retargets,
	}
	if st.LastBalance != nil {
		fields["last_balance_lamports"] = *st.LastBalance
	}
	log.WithFields(fields).Info("Watcher status")
}
