package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rdaemon/internal/config"
	"rdaemon/internal/journal"
	"rdaemon/internal/logging"
	"rdaemon/internal/stopper"
)

// StopOptions identifies the daemon to stop.
type StopOptions struct {
	Port    int
	Path    string
	Journal *journal.Journal
	Logger  *slog.Logger
}

// StopResult describes a completed stop attempt.
type StopResult struct {
	CorrelationID string
	Port          int
	Path          string
	Duration      time.Duration
}

// StopRemote stops and destroys the daemon bound at opts.Path in the registry
// on opts.Port, then removes the binding. Failures carry a stopper kind.
func StopRemote(ctx context.Context, cfg *config.Config, opts StopOptions) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	if err := config.ValidatePort(opts.Port); err != nil {
		return StopResult{}, err
	}
	if err := config.ValidateLookupPath(opts.Path); err != nil {
		return StopResult{}, err
	}

	logger := logging.NewComponentLogger(opts.Logger, "daemonctl")
	s, err := stopper.New(NewResolver(cfg.Registry.Host, DialOptions(cfg)), logger)
	if err != nil {
		return StopResult{}, err
	}

	correlationID := uuid.NewString()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	logger = logging.WithContext(ctx, logger).With(
		logging.Int(logging.FieldRegistryPort, opts.Port),
		logging.String(logging.FieldRegistryPath, opts.Path),
	)

	started := time.Now().UTC()
	stopErr := s.Stop(ctx, opts.Port, opts.Path)
	finished := time.Now().UTC()
	result := StopResult{
		CorrelationID: correlationID,
		Port:          opts.Port,
		Path:          opts.Path,
		Duration:      finished.Sub(started),
	}

	entry := journal.Entry{
		CorrelationID: correlationID,
		Path:          opts.Path,
		Port:          opts.Port,
		Outcome:       journal.OutcomeStopped,
		StartedAt:     started,
		FinishedAt:    finished,
	}
	if stopErr != nil {
		entry.Outcome = journal.OutcomeFailed
		entry.FailureKind = string(stopper.KindOf(stopErr))
		entry.Message = stopErr.Error()
		var se *stopper.Error
		if errors.As(stopErr, &se) {
			entry.FailedOp = string(se.Op)
		}
	}
	recordAttempt(ctx, opts.Journal, entry, logger)

	if stopErr != nil {
		hint, impact := FailureGuidance(stopper.KindOf(stopErr))
		logging.ErrorWithContext(logger, "remote stop failed", "remote_stop_failed",
			logging.Error(stopErr),
			logging.String(logging.FieldFailureKind, string(stopper.KindOf(stopErr))),
			logging.String(logging.FieldImpact, impact),
			logging.String(logging.FieldErrorHint, hint))
		return result, stopErr
	}
	logger.Info("remote daemon stopped",
		logging.String(logging.FieldEventType, "remote_stop_completed"),
		logging.Duration("duration", result.Duration))
	return result, nil
}

// FailureGuidance returns operator hint and impact text for a failure kind.
func FailureGuidance(kind stopper.Kind) (hint, impact string) {
	switch kind {
	case stopper.KindLookup:
		return "check that the daemon was started and that --port and --path match its registry binding",
			"nothing was stopped"
	case stopper.KindRemoteInvocation:
		return "inspect the daemon's log; it may already be stopped or unable to shut down its workload",
			"the daemon may still be running and remains bound"
	case stopper.KindUnbind:
		return "the daemon is down; run rdaemon start to replace the stale binding or restart the registry",
			"the registry still lists a binding for a destroyed daemon"
	}
	return "", ""
}

func recordAttempt(ctx context.Context, j *journal.Journal, entry journal.Entry, logger *slog.Logger) {
	if j == nil {
		return
	}
	if _, err := j.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "failed to record stop attempt", "journal_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stop history will be missing this attempt"),
			logging.String(logging.FieldErrorHint, "check permissions on "+strings.TrimSpace(j.Path())))
	}
}

// OpenJournal opens the stop journal when enabled in cfg. It returns nil
// without error when the journal is disabled.
func OpenJournal(cfg *config.Config) (*journal.Journal, error) {
	if cfg == nil || !cfg.Journal.Enabled {
		return nil, nil
	}
	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("open stop journal: %w", err)
	}
	return j, nil
}
