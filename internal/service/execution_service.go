package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/repository"
	"alcyxob/coach-scheduler/internal/schedule"
	"alcyxob/coach-scheduler/internal/storage"
)

const (
	reasonDeadline        = "batch deadline exceeded"
	reasonMissingExercise = "exercise definition not found"
	reasonInsertFailed    = "insert failed"
	reasonUpdateFailed    = "update failed"
)

// ScheduleOptions are the deployment-wide scheduling knobs.
type ScheduleOptions struct {
	PeriodLengthDays int           // 0 derives the period length from the plan
	BatchTimeout     time.Duration // 0 disables the per-batch deadline
	Location         *time.Location
}

// FailedUnit is one unit of a materialization batch that was not written.
type FailedUnit struct {
	Unit       int    `json:"unit"` // 1-based position in the canonical sequence
	ExerciseID string `json:"exerciseId"`
	Reason     string `json:"reason"`
}

// MaterializeSummary reports the outcome of a materialization batch.
type MaterializeSummary struct {
	Total    int          `json:"total"`
	Inserted int          `json:"inserted"`
	Skipped  int          `json:"skipped"` // already materialized
	Failed   []FailedUnit `json:"failed"`
	TimedOut bool         `json:"timedOut"`
}

// MaterializeRequest is a replicated unit sequence bound to one enrollment.
type MaterializeRequest struct {
	Units            []schedule.ReplicatedUnit
	ClientID         primitive.ObjectID
	ActivityID       primitive.ObjectID
	EnrollmentID     primitive.ObjectID
	PeriodConfigID   primitive.ObjectID
	StartDate        *time.Time // nil leaves scheduledDate unset
	PeriodLengthDays int
}

// RowIssue is an execution that a regeneration pass skipped or failed to update.
type RowIssue struct {
	ExecutionID string `json:"executionId"`
	Reason      string `json:"reason"`
}

// RegenerateSummary reports the outcome of a date regeneration pass.
type RegenerateSummary struct {
	StartDate time.Time  `json:"startDate"`
	Total     int        `json:"total"`
	Updated   int        `json:"updated"`
	Skipped   []RowIssue `json:"skipped"`
	Failed    []RowIssue `json:"failed"`
	TimedOut  bool       `json:"timedOut"`
}

// CalendarEntry is an execution as shown to the client.
type CalendarEntry struct {
	domain.ExerciseExecution
	ExerciseName string             `json:"exerciseName"`
	MediaURL     string             `json:"mediaUrl,omitempty"`
	Sets         []domain.SetDetail `json:"sets,omitempty"` // nil when the snapshot is empty or malformed
}

type ExecutionService interface {
	Materialize(ctx context.Context, actorID, enrollmentID primitive.ObjectID) (*MaterializeSummary, error)
	MaterializeUnits(ctx context.Context, req MaterializeRequest) (*MaterializeSummary, error)
	RegenerateDates(ctx context.Context, actorID, enrollmentID primitive.ObjectID, startDate time.Time) (*RegenerateSummary, error)
	Calendar(ctx context.Context, actorID, enrollmentID primitive.ObjectID) ([]CalendarEntry, error)
	UpdateProgress(ctx context.Context, actorID, executionID primitive.ObjectID, completed *bool, clientNote *string) (*domain.ExerciseExecution, error)
}

// executionService implements the ExecutionService interface.
type executionService struct {
	repos  Repositories
	files  storage.FileStorage // may be nil when media storage is not configured
	opts   ScheduleOptions
	logger *slog.Logger
}

// NewExecutionService creates a new instance of executionService.
func NewExecutionService(repos Repositories, files storage.FileStorage, opts ScheduleOptions, logger *slog.Logger) ExecutionService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &executionService{
		repos:  repos,
		files:  files,
		opts:   opts,
		logger: logger.With("service", "execution"),
	}
}

// loadEnrollment fetches the enrollment and its activity and checks that the actor is
// either the enrolled client or the activity's coach.
func (s *executionService) loadEnrollment(ctx context.Context, actorID, enrollmentID primitive.ObjectID) (*domain.Enrollment, *domain.Activity, error) {
	if enrollmentID == primitive.NilObjectID {
		return nil, nil, validationError("enrollmentId is required")
	}
	enrollment, err := s.repos.Enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, nil, lookupError(s.logger, "enrollment", enrollmentID, err)
	}
	activity, err := s.repos.Activities.GetByID(ctx, enrollment.ActivityID)
	if err != nil {
		return nil, nil, lookupError(s.logger, "activity", enrollment.ActivityID, err)
	}
	if actorID != enrollment.ClientID && actorID != activity.CoachID {
		return nil, nil, ErrForbidden
	}
	return enrollment, activity, nil
}

// Materialize expands the enrollment's activity plan into execution rows.
func (s *executionService) Materialize(ctx context.Context, actorID, enrollmentID primitive.ObjectID) (*MaterializeSummary, error) {
	enrollment, activity, err := s.loadEnrollment(ctx, actorID, enrollmentID)
	if err != nil {
		return nil, err
	}

	periodCfg, err := s.repos.PeriodConfigs.GetByActivityID(ctx, activity.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("activity %s has no period configuration", activity.ID.Hex())
		}
		return nil, upstreamError(s.logger, "load period config", err, "activityId", activity.ID.Hex())
	}

	entries, err := s.repos.Plans.GetByActivityID(ctx, activity.ID)
	if err != nil {
		return nil, upstreamError(s.logger, "load weekly plan", err, "activityId", activity.ID.Hex())
	}

	units, skips := schedule.ParsePlan(entries)
	for _, skip := range skips {
		s.logger.Warn("skipping malformed day plan",
			"activityId", activity.ID.Hex(), "week", skip.Week, "weekday", skip.Weekday, "error", skip.Err)
	}

	replicated, err := schedule.Replicate(units, periodCfg.PeriodCount)
	if err != nil {
		return nil, validationError("activity %s: %v", activity.ID.Hex(), err)
	}

	return s.MaterializeUnits(ctx, MaterializeRequest{
		Units:            replicated,
		ClientID:         enrollment.ClientID,
		ActivityID:       activity.ID,
		EnrollmentID:     enrollment.ID,
		PeriodConfigID:   periodCfg.ID,
		StartDate:        enrollment.StartDate,
		PeriodLengthDays: schedule.PeriodLengthDays(schedule.WeeksPerPeriod(entries), s.opts.PeriodLengthDays),
	})
}

// MaterializeUnits writes one execution per unit, in order. Units whose natural key is
// already present are skipped untouched, so re-running a batch never duplicates rows or
// resets client progress. A failing unit is reported and does not stop the batch.
func (s *executionService) MaterializeUnits(ctx context.Context, req MaterializeRequest) (*MaterializeSummary, error) {
	if req.ClientID == primitive.NilObjectID || req.PeriodConfigID == primitive.NilObjectID {
		return nil, validationError("clientId and periodConfigId are required")
	}
	summary := &MaterializeSummary{Total: len(req.Units), Failed: []FailedUnit{}}
	if len(req.Units) == 0 {
		return summary, nil
	}

	ids := make([]primitive.ObjectID, 0, len(req.Units))
	seen := make(map[primitive.ObjectID]bool)
	for _, u := range req.Units {
		if !seen[u.ExerciseID] {
			seen[u.ExerciseID] = true
			ids = append(ids, u.ExerciseID)
		}
	}
	definitions, err := s.repos.Exercises.GetByIDs(ctx, ids)
	if err != nil {
		return nil, upstreamError(s.logger, "load exercise definitions", err, "count", len(ids))
	}

	batchCtx, cancel := s.batchContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	for i, u := range req.Units {
		fail := func(reason string) {
			summary.Failed = append(summary.Failed, FailedUnit{Unit: i + 1, ExerciseID: u.ExerciseID.Hex(), Reason: reason})
		}
		if batchCtx.Err() != nil {
			summary.TimedOut = true
			fail(reasonDeadline)
			continue
		}

		def, ok := definitions[u.ExerciseID]
		if !ok {
			fail(reasonMissingExercise)
			continue
		}

		execution := &domain.ExerciseExecution{
			ExerciseID:           u.ExerciseID,
			ClientID:             req.ClientID,
			ActivityID:           req.ActivityID,
			EnrollmentID:         req.EnrollmentID,
			PeriodConfigID:       req.PeriodConfigID,
			Period:               u.Period,
			Week:                 u.Week,
			Weekday:              u.Weekday,
			BlockNumber:          u.Block,
			OrderInBlock:         u.OrderInBlock,
			DetailOfSetsSnapshot: canonicalSets(def.DetailOfSets),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if req.StartDate != nil {
			date, err := schedule.ProjectDate(req.StartDate.In(s.opts.Location), u.Period, u.Week, u.Weekday, req.PeriodLengthDays)
			if err != nil {
				fail(err.Error())
				continue
			}
			execution.ScheduledDate = &date
		}

		inserted, err := s.repos.Executions.InsertIfAbsent(batchCtx, execution)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				summary.TimedOut = true
				fail(reasonDeadline)
				continue
			}
			s.logger.Error("failed to insert execution",
				"unit", i+1, "exerciseId", u.ExerciseID.Hex(), "clientId", req.ClientID.Hex(), "error", err)
			fail(reasonInsertFailed)
			continue
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Skipped++
		}
	}

	s.logger.Info("materialized executions",
		"enrollmentId", req.EnrollmentID.Hex(), "total", summary.Total, "inserted", summary.Inserted,
		"skipped", summary.Skipped, "failed", len(summary.Failed), "timedOut", summary.TimedOut)
	return summary, nil
}

func (s *executionService) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.BatchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.BatchTimeout)
}

// RegenerateDates stores a new start date on the enrollment and recomputes the
// scheduled date of every execution the client has for that activity. Rows are
// overwritten in place; the plan is not re-expanded.
func (s *executionService) RegenerateDates(ctx context.Context, actorID, enrollmentID primitive.ObjectID, startDate time.Time) (*RegenerateSummary, error) {
	if startDate.IsZero() {
		return nil, validationError("startDate is required")
	}
	enrollment, activity, err := s.loadEnrollment(ctx, actorID, enrollmentID)
	if err != nil {
		return nil, err
	}

	y, m, d := startDate.In(s.opts.Location).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)

	entries, err := s.repos.Plans.GetByActivityID(ctx, activity.ID)
	if err != nil {
		return nil, upstreamError(s.logger, "load weekly plan", err, "activityId", activity.ID.Hex())
	}

	if err := s.repos.Enrollments.SetStartDate(ctx, enrollment.ID, start); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, lookupError(s.logger, "enrollment", enrollment.ID, err)
		}
		return nil, upstreamError(s.logger, "store start date", err, "enrollmentId", enrollment.ID.Hex())
	}

	all, err := s.repos.Executions.GetByClientID(ctx, enrollment.ClientID)
	if err != nil {
		return nil, upstreamError(s.logger, "load executions", err, "clientId", enrollment.ClientID.Hex())
	}
	executions := make([]domain.ExerciseExecution, 0, len(all))
	weeks := schedule.WeeksPerPeriod(entries)
	for _, e := range all {
		if e.ActivityID != activity.ID {
			continue
		}
		executions = append(executions, e)
		// With the plan gone, the stored rows still say how long a period was
		if len(entries) == 0 && e.Week > weeks {
			weeks = e.Week
		}
	}
	periodLength := schedule.PeriodLengthDays(weeks, s.opts.PeriodLengthDays)

	summary := &RegenerateSummary{StartDate: start, Total: len(executions), Skipped: []RowIssue{}, Failed: []RowIssue{}}

	batchCtx, cancel := s.batchContext(ctx)
	defer cancel()

	for _, e := range executions {
		issue := RowIssue{ExecutionID: e.ID.Hex()}
		if batchCtx.Err() != nil {
			summary.TimedOut = true
			issue.Reason = reasonDeadline
			summary.Failed = append(summary.Failed, issue)
			continue
		}

		weekday, err := domain.NormalizeDay(string(e.Weekday))
		if err != nil {
			issue.Reason = err.Error()
			summary.Skipped = append(summary.Skipped, issue)
			continue
		}
		date, err := schedule.ProjectDate(start, e.Period, e.Week, weekday, periodLength)
		if err != nil {
			issue.Reason = err.Error()
			summary.Skipped = append(summary.Skipped, issue)
			continue
		}

		if err := s.repos.Executions.SetScheduledDate(batchCtx, e.ID, &date); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				summary.TimedOut = true
				issue.Reason = reasonDeadline
			} else {
				s.logger.Error("failed to update scheduled date", "executionId", e.ID.Hex(), "error", err)
				issue.Reason = reasonUpdateFailed
			}
			summary.Failed = append(summary.Failed, issue)
			continue
		}
		summary.Updated++
	}

	s.logger.Info("regenerated execution dates",
		"enrollmentId", enrollment.ID.Hex(), "startDate", start.Format(domain.DateLayout),
		"periodLengthDays", periodLength, "total", summary.Total, "updated", summary.Updated,
		"skipped", len(summary.Skipped), "failed", len(summary.Failed))
	return summary, nil
}

// Calendar lists the enrollment's executions in canonical order, with exercise names
// and short-lived media links.
func (s *executionService) Calendar(ctx context.Context, actorID, enrollmentID primitive.ObjectID) ([]CalendarEntry, error) {
	enrollment, _, err := s.loadEnrollment(ctx, actorID, enrollmentID)
	if err != nil {
		return nil, err
	}

	all, err := s.repos.Executions.GetByClientID(ctx, enrollment.ClientID)
	if err != nil {
		return nil, upstreamError(s.logger, "load executions", err, "clientId", enrollment.ClientID.Hex())
	}
	var executions []domain.ExerciseExecution
	ids := make([]primitive.ObjectID, 0)
	seen := make(map[primitive.ObjectID]bool)
	for _, e := range all {
		if e.EnrollmentID != enrollment.ID {
			continue
		}
		executions = append(executions, e)
		if !seen[e.ExerciseID] {
			seen[e.ExerciseID] = true
			ids = append(ids, e.ExerciseID)
		}
	}
	sort.SliceStable(executions, func(i, j int) bool {
		return schedule.Less(executionUnit(executions[i]), executionUnit(executions[j]))
	})

	definitions := map[primitive.ObjectID]domain.ExerciseDefinition{}
	if len(ids) > 0 {
		definitions, err = s.repos.Exercises.GetByIDs(ctx, ids)
		if err != nil {
			return nil, upstreamError(s.logger, "load exercise definitions", err, "count", len(ids))
		}
	}

	mediaURLs := make(map[primitive.ObjectID]string)
	entries := make([]CalendarEntry, 0, len(executions))
	for _, e := range executions {
		entry := CalendarEntry{ExerciseExecution: e}
		if sets, err := domain.ParseDetailOfSets(e.DetailOfSetsSnapshot); err == nil {
			entry.Sets = sets
		} else {
			s.logger.Debug("calendar entry has malformed sets",
				"executionId", e.ID.Hex(), "detailOfSets", e.DetailOfSetsSnapshot, "error", err)
		}
		if def, ok := definitions[e.ExerciseID]; ok {
			entry.ExerciseName = def.Name
			entry.MediaURL = s.mediaURL(ctx, def, mediaURLs)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// canonicalSets rewrites a well-formed detail of sets in its canonical spelling.
// Malformed values are kept verbatim.
func canonicalSets(raw string) string {
	sets, err := domain.ParseDetailOfSets(raw)
	if err != nil || len(sets) == 0 {
		return raw
	}
	return domain.FormatDetailOfSets(sets)
}

func (s *executionService) mediaURL(ctx context.Context, def domain.ExerciseDefinition, cache map[primitive.ObjectID]string) string {
	if s.files == nil || def.MediaKey == "" {
		return ""
	}
	if url, ok := cache[def.ID]; ok {
		return url
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, def.MediaKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		// The calendar is still useful without the video link
		s.logger.Warn("failed to presign exercise media", "exerciseId", def.ID.Hex(), "error", err)
		url = ""
	}
	cache[def.ID] = url
	return url
}

func executionUnit(e domain.ExerciseExecution) schedule.ReplicatedUnit {
	return schedule.ReplicatedUnit{
		ScheduleUnit: schedule.ScheduleUnit{
			Week:         e.Week,
			Weekday:      e.Weekday,
			Block:        e.BlockNumber,
			OrderInBlock: e.OrderInBlock,
			ExerciseID:   e.ExerciseID,
		},
		Period: e.Period,
	}
}

// UpdateProgress lets the client tick off an execution or leave a note on it.
func (s *executionService) UpdateProgress(ctx context.Context, actorID, executionID primitive.ObjectID, completed *bool, clientNote *string) (*domain.ExerciseExecution, error) {
	if completed == nil && clientNote == nil {
		return nil, validationError("nothing to update")
	}
	execution, err := s.repos.Executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, lookupError(s.logger, "execution", executionID, err)
	}
	if execution.ClientID != actorID {
		return nil, ErrForbidden
	}

	if err := s.repos.Executions.UpdateProgress(ctx, executionID, completed, clientNote); err != nil {
		return nil, lookupError(s.logger, "execution", executionID, err)
	}
	if completed != nil {
		execution.Completed = *completed
	}
	if clientNote != nil {
		execution.ClientNote = *clientNote
	}
	execution.UpdatedAt = time.Now().UTC()
	return execution, nil
}
