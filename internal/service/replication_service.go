package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/repository"
)

// maxReplicatedWeeks bounds how many plan weeks one request may write.
const maxReplicatedWeeks = 520

// ReplicationRequest asks for plan weeks to be copied, or for the period count to change.
type ReplicationRequest struct {
	ActivityID    primitive.ObjectID
	SourcePeriods []int // source week numbers, copied in this order
	TargetPeriods []int // first week number of each destination run
	Repetitions   int
	Type          domain.ReplicationType
}

// ReplicationResult lists the records written by one request.
type ReplicationResult struct {
	BatchID string                     `json:"batchId"`
	Records []domain.ReplicationRecord `json:"records"`
}

type ReplicationService interface {
	Replicate(ctx context.Context, actorID primitive.ObjectID, req ReplicationRequest) (*ReplicationResult, error)
	List(ctx context.Context, actorID, activityID primitive.ObjectID) ([]domain.ReplicationRecord, error)
	Revert(ctx context.Context, actorID, replicationID primitive.ObjectID) (*domain.ReplicationRecord, error)
}

// replicationService implements the ReplicationService interface.
type replicationService struct {
	repos  Repositories
	logger *slog.Logger
	now    func() time.Time
}

// NewReplicationService creates a new instance of replicationService.
func NewReplicationService(repos Repositories, logger *slog.Logger) ReplicationService {
	return &replicationService{
		repos:  repos,
		logger: logger.With("service", "replication"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ownedActivity loads the activity and checks the actor is its coach.
func (s *replicationService) ownedActivity(ctx context.Context, actorID, activityID primitive.ObjectID) (*domain.Activity, error) {
	if activityID == primitive.NilObjectID {
		return nil, validationError("activityId is required")
	}
	activity, err := s.repos.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, lookupError(s.logger, "activity", activityID, err)
	}
	if activity.CoachID != actorID {
		return nil, ErrForbidden
	}
	return activity, nil
}

type weekCopy struct {
	source int
	target int
}

// planWeekCopies expands the request into (source, target) pairs. Each target run
// receives the source weeks back to back, once per repetition.
func planWeekCopies(req ReplicationRequest) ([]weekCopy, error) {
	if len(req.SourcePeriods) == 0 || len(req.TargetPeriods) == 0 {
		return nil, validationError("sourcePeriods and targetPeriods are required")
	}
	sources := make(map[int]bool, len(req.SourcePeriods))
	for _, w := range req.SourcePeriods {
		if w < 1 {
			return nil, validationError("source week %d must be positive", w)
		}
		if sources[w] {
			return nil, validationError("source week %d is listed twice", w)
		}
		sources[w] = true
	}
	if total := len(req.SourcePeriods) * len(req.TargetPeriods) * req.Repetitions; total > maxReplicatedWeeks {
		return nil, validationError("request would write %d weeks, limit is %d", total, maxReplicatedWeeks)
	}

	targets := make(map[int]bool)
	copies := make([]weekCopy, 0, len(req.SourcePeriods)*len(req.TargetPeriods)*req.Repetitions)
	for _, start := range req.TargetPeriods {
		if start < 1 {
			return nil, validationError("target week %d must be positive", start)
		}
		for r := 0; r < req.Repetitions; r++ {
			for j, src := range req.SourcePeriods {
				target := start + r*len(req.SourcePeriods) + j
				if sources[target] {
					return nil, validationError("target week %d overlaps a source week", target)
				}
				if targets[target] {
					return nil, validationError("target week %d is written twice", target)
				}
				targets[target] = true
				copies = append(copies, weekCopy{source: src, target: target})
			}
		}
	}
	return copies, nil
}

// Replicate applies the request in one unit of work and stores an undo record for
// every row it changed.
func (s *replicationService) Replicate(ctx context.Context, actorID primitive.ObjectID, req ReplicationRequest) (*ReplicationResult, error) {
	if req.Repetitions < 1 {
		return nil, validationError("repetitions must be at least 1")
	}
	switch req.Type {
	case domain.ReplicationWeeks, domain.ReplicationPeriods:
	default:
		return nil, validationError("unknown replicationType %q", req.Type)
	}

	var copies []weekCopy
	if req.Type == domain.ReplicationWeeks {
		var err error
		if copies, err = planWeekCopies(req); err != nil {
			return nil, err
		}
	}

	activity, err := s.ownedActivity(ctx, actorID, req.ActivityID)
	if err != nil {
		return nil, err
	}

	result := &ReplicationResult{BatchID: uuid.NewString()}
	base := domain.ReplicationRecord{
		ActivityID: activity.ID,
		CoachID:    actorID,
		BatchID:    result.BatchID,
		Type:       req.Type,
	}

	var work func(ctx context.Context) error
	if req.Type == domain.ReplicationWeeks {
		entries, err := s.repos.Plans.GetByActivityID(ctx, activity.ID)
		if err != nil {
			return nil, upstreamError(s.logger, "load weekly plan", err, "activityId", activity.ID.Hex())
		}
		byWeek := make(map[int]domain.WeeklyPlanEntry, len(entries))
		for _, e := range entries {
			byWeek[e.WeekNumber] = e
		}
		for _, src := range req.SourcePeriods {
			if _, ok := byWeek[src]; !ok {
				return nil, validationError("source week %d has no plan", src)
			}
		}
		work = func(ctx context.Context) error {
			records, err := s.copyWeeks(ctx, base, byWeek, copies)
			result.Records = records
			return err
		}
	} else {
		work = func(ctx context.Context) error {
			record, err := s.setPeriodCount(ctx, base, req.Repetitions)
			if err != nil {
				return err
			}
			result.Records = []domain.ReplicationRecord{*record}
			return nil
		}
	}

	if err := s.repos.UnitOfWork.Do(ctx, work); err != nil {
		return nil, upstreamError(s.logger, "replicate plan", err,
			"activityId", activity.ID.Hex(), "type", req.Type, "batchId", result.BatchID)
	}

	s.logger.Info("replicated plan",
		"activityId", activity.ID.Hex(), "type", req.Type, "batchId", result.BatchID, "records", len(result.Records))
	return result, nil
}

func (s *replicationService) copyWeeks(ctx context.Context, base domain.ReplicationRecord, byWeek map[int]domain.WeeklyPlanEntry, copies []weekCopy) ([]domain.ReplicationRecord, error) {
	records := make([]domain.ReplicationRecord, 0, len(copies))
	for _, c := range copies {
		previous, err := s.repos.Plans.GetWeek(ctx, base.ActivityID, c.target)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			previous = nil
		}

		week := byWeek[c.source]
		week.ID = primitive.NilObjectID
		week.WeekNumber = c.target
		week.UpdatedAt = s.now()
		if err := s.repos.Plans.UpsertWeek(ctx, &week); err != nil {
			return nil, err
		}

		record := base
		record.SourceWeek = c.source
		record.TargetWeek = c.target
		record.PreviousWeek = previous
		if _, err := s.repos.Replications.Create(ctx, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *replicationService) setPeriodCount(ctx context.Context, base domain.ReplicationRecord, count int) (*domain.ReplicationRecord, error) {
	record := base
	current, err := s.repos.PeriodConfigs.GetByActivityID(ctx, base.ActivityID)
	switch {
	case err == nil:
		record.PreviousPeriodCount = current.PeriodCount
	case errors.Is(err, repository.ErrNotFound):
		record.PreviousPeriodCount = 0
	default:
		return nil, err
	}

	if _, err := s.repos.PeriodConfigs.SetPeriodCount(ctx, base.ActivityID, count); err != nil {
		return nil, err
	}
	record.NewPeriodCount = count
	if _, err := s.repos.Replications.Create(ctx, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the replications of an activity that can still be reverted.
func (s *replicationService) List(ctx context.Context, actorID, activityID primitive.ObjectID) ([]domain.ReplicationRecord, error) {
	if _, err := s.ownedActivity(ctx, actorID, activityID); err != nil {
		return nil, err
	}
	records, err := s.repos.Replications.GetActiveByActivityID(ctx, activityID)
	if err != nil {
		return nil, upstreamError(s.logger, "list replications", err, "activityId", activityID.Hex())
	}
	if records == nil {
		records = []domain.ReplicationRecord{}
	}
	return records, nil
}

var errAlreadyReverted = errors.New("replication already reverted")

// Revert puts the row touched by one replication record back to its earlier state.
func (s *replicationService) Revert(ctx context.Context, actorID, replicationID primitive.ObjectID) (*domain.ReplicationRecord, error) {
	if replicationID == primitive.NilObjectID {
		return nil, validationError("replication_id is required")
	}
	record, err := s.repos.Replications.GetByID(ctx, replicationID)
	if err != nil {
		return nil, lookupError(s.logger, "replication", replicationID, err)
	}
	if _, err := s.ownedActivity(ctx, actorID, record.ActivityID); err != nil {
		return nil, err
	}
	if record.Reverted {
		return nil, validationError("replication %s is already reverted", replicationID.Hex())
	}

	at := s.now()
	err = s.repos.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		if err := s.undo(ctx, record); err != nil {
			return err
		}
		if err := s.repos.Replications.MarkReverted(ctx, record.ID, at); err != nil {
			if errors.Is(err, repository.ErrUpdateFailed) {
				return errAlreadyReverted
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyReverted) {
			return nil, validationError("replication %s is already reverted", replicationID.Hex())
		}
		return nil, upstreamError(s.logger, "revert replication", err, "replicationId", replicationID.Hex())
	}

	record.Reverted = true
	record.RevertedAt = &at
	s.logger.Info("reverted replication", "replicationId", replicationID.Hex(), "type", record.Type)
	return record, nil
}

func (s *replicationService) undo(ctx context.Context, record *domain.ReplicationRecord) error {
	switch record.Type {
	case domain.ReplicationWeeks:
		if record.PreviousWeek == nil {
			err := s.repos.Plans.DeleteWeek(ctx, record.ActivityID, record.TargetWeek)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		restored := *record.PreviousWeek
		restored.ID = primitive.NilObjectID
		restored.ActivityID = record.ActivityID
		restored.WeekNumber = record.TargetWeek
		restored.UpdatedAt = s.now()
		return s.repos.Plans.UpsertWeek(ctx, &restored)

	case domain.ReplicationPeriods:
		if record.PreviousPeriodCount < 1 {
			err := s.repos.PeriodConfigs.DeleteByActivityID(ctx, record.ActivityID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		_, err := s.repos.PeriodConfigs.SetPeriodCount(ctx, record.ActivityID, record.PreviousPeriodCount)
		return err
	}
	return validationError("unknown replication type %q", record.Type)
}
