package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
)

// RecoveryMode selects whether recovery only reports or also writes.
type RecoveryMode string

const (
	ModePreview RecoveryMode = "preview"
	ModeRestore RecoveryMode = "restore"
)

// RecoveryOptions configure topic reconstruction.
type RecoveryOptions struct {
	DefaultCapacity int // used when a log row carries no capacity
	Location        *time.Location
}

// TopicFailure is a reconstructed topic that could not be written.
type TopicFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RecoveryResult is what a recovery pass found and, in restore mode, wrote.
type RecoveryResult struct {
	Mode          RecoveryMode           `json:"mode"`
	Topics        []domain.WorkshopTopic `json:"topics"`
	InsertedCount int                    `json:"insertedCount"`
	UpdatedCount  int                    `json:"updatedCount"`
	Failed        []TopicFailure         `json:"failed"`
}

// TopicActiveChange is a topic whose active flag no longer matches its schedule.
type TopicActiveChange struct {
	TopicID    primitive.ObjectID
	ActivityID primitive.ObjectID
	Name       string
	Active     bool // the value it should have
}

// RefreshSummary reports a pass over every topic's active flag.
type RefreshSummary struct {
	Checked int
	Changed int
	Failed  int
}

type TopicRecoveryService interface {
	Recover(ctx context.Context, actorID, activityID primitive.ObjectID, mode RecoveryMode) (*RecoveryResult, error)
	ActiveChanges(ctx context.Context) ([]TopicActiveChange, int, error)
	RefreshActive(ctx context.Context) (*RefreshSummary, error)
}

// topicRecoveryService implements the TopicRecoveryService interface.
type topicRecoveryService struct {
	repos  Repositories
	opts   RecoveryOptions
	logger *slog.Logger
	now    func() time.Time
}

// NewTopicRecoveryService creates a new instance of topicRecoveryService.
func NewTopicRecoveryService(repos Repositories, opts RecoveryOptions, logger *slog.Logger) TopicRecoveryService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultCapacity < 1 {
		opts.DefaultCapacity = 10
	}
	return &topicRecoveryService{
		repos:  repos,
		opts:   opts,
		logger: logger.With("service", "topic_recovery"),
		now:    time.Now,
	}
}

func (s *topicRecoveryService) today() string {
	return s.now().In(s.opts.Location).Format(domain.DateLayout)
}

// Recover rebuilds an activity's workshop topics from attendance logs. Preview only
// reports them; restore also upserts them by name.
func (s *topicRecoveryService) Recover(ctx context.Context, actorID, activityID primitive.ObjectID, mode RecoveryMode) (*RecoveryResult, error) {
	if mode == "" {
		mode = ModePreview
	}
	if mode != ModePreview && mode != ModeRestore {
		return nil, validationError("unknown recovery mode %q", mode)
	}
	if activityID == primitive.NilObjectID {
		return nil, validationError("actividad_id is required")
	}

	activity, err := s.repos.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, lookupError(s.logger, "activity", activityID, err)
	}
	if activity.CoachID != actorID {
		return nil, ErrForbidden
	}
	if mode == ModeRestore && activity.Type != domain.ActivityWorkshop {
		return nil, validationError("activity %s is a %s, not a workshop", activityID.Hex(), activity.Type)
	}

	logs, err := s.repos.TopicLogs.GetByActivityID(ctx, activityID)
	if err != nil {
		return nil, upstreamError(s.logger, "load topic logs", err, "activityId", activityID.Hex())
	}

	result := &RecoveryResult{
		Mode:   mode,
		Topics: ReconstructTopics(activityID, logs, s.opts.DefaultCapacity, s.today()),
		Failed: []TopicFailure{},
	}
	if mode == ModePreview {
		return result, nil
	}

	for i := range result.Topics {
		topic := &result.Topics[i]
		inserted, err := s.repos.Topics.UpsertByName(ctx, topic)
		if err != nil {
			s.logger.Error("failed to restore workshop topic",
				"activityId", activityID.Hex(), "topic", topic.Name, "error", err)
			result.Failed = append(result.Failed, TopicFailure{Name: topic.Name, Reason: "upsert failed"})
			continue
		}
		if inserted {
			result.InsertedCount++
		} else {
			result.UpdatedCount++
		}
	}

	s.logger.Info("restored workshop topics",
		"activityId", activityID.Hex(), "topics", len(result.Topics),
		"inserted", result.InsertedCount, "updated", result.UpdatedCount, "failed", len(result.Failed))
	return result, nil
}

type slotKey struct {
	date, start, end string
}

// ReconstructTopics groups logs by trimmed topic name, in first-seen order, and
// collects each topic's distinct (date, start, end) slots sorted by date and start
// time. Logs without a topic name are ignored.
func ReconstructTopics(activityID primitive.ObjectID, logs []domain.TopicExecutionLog, defaultCapacity int, today string) []domain.WorkshopTopic {
	topics := []domain.WorkshopTopic{}
	index := make(map[string]int)
	seenSlots := make(map[string]map[slotKey]bool)

	for _, log := range logs {
		name := strings.TrimSpace(log.TopicName)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(topics)
			index[name] = i
			seenSlots[name] = make(map[slotKey]bool)
			topics = append(topics, domain.WorkshopTopic{
				ActivityID:      activityID,
				Name:            name,
				PrimarySchedule: []domain.ScheduleSlot{},
			})
		}
		topic := &topics[i]
		if topic.Description == "" {
			topic.Description = strings.TrimSpace(log.TopicDescription)
		}

		key := slotKey{
			date:  strings.TrimSpace(log.ScheduledDate),
			start: strings.TrimSpace(log.SelectedTimeSlot.StartTime),
			end:   strings.TrimSpace(log.SelectedTimeSlot.EndTime),
		}
		if key.date == "" || seenSlots[name][key] {
			continue
		}
		seenSlots[name][key] = true

		capacity := defaultCapacity
		if log.Capacity != nil && *log.Capacity > 0 {
			capacity = *log.Capacity
		}
		topic.PrimarySchedule = append(topic.PrimarySchedule, domain.ScheduleSlot{
			Date:      key.date,
			StartTime: key.start,
			EndTime:   key.end,
			Capacity:  capacity,
		})
	}

	for i := range topics {
		slots := topics[i].PrimarySchedule
		sort.SliceStable(slots, func(a, b int) bool {
			if slots[a].Date != slots[b].Date {
				return slots[a].Date < slots[b].Date
			}
			if slots[a].StartTime != slots[b].StartTime {
				return slots[a].StartTime < slots[b].StartTime
			}
			return slots[a].EndTime < slots[b].EndTime
		})
		topics[i].Active = domain.HasUpcomingSlot(slots, today)
	}
	return topics
}

// ActiveChanges lists the topics whose active flag is stale, along with the number
// of topics checked.
func (s *topicRecoveryService) ActiveChanges(ctx context.Context) ([]TopicActiveChange, int, error) {
	topics, err := s.repos.Topics.GetAll(ctx)
	if err != nil {
		return nil, 0, upstreamError(s.logger, "load workshop topics", err)
	}
	today := s.today()
	var changes []TopicActiveChange
	for _, t := range topics {
		want := domain.HasUpcomingSlot(t.PrimarySchedule, today)
		if want != t.Active {
			changes = append(changes, TopicActiveChange{TopicID: t.ID, ActivityID: t.ActivityID, Name: t.Name, Active: want})
		}
	}
	return changes, len(topics), nil
}

// RefreshActive recomputes the active flag of every topic. A failed update is logged
// and counted; the pass continues.
func (s *topicRecoveryService) RefreshActive(ctx context.Context) (*RefreshSummary, error) {
	changes, checked, err := s.ActiveChanges(ctx)
	if err != nil {
		return nil, err
	}
	summary := &RefreshSummary{Checked: checked}
	for _, c := range changes {
		if err := s.repos.Topics.SetActive(ctx, c.TopicID, c.Active); err != nil {
			s.logger.Error("failed to update topic active flag", "topicId", c.TopicID.Hex(), "error", err)
			summary.Failed++
			continue
		}
		summary.Changed++
	}
	s.logger.Info("refreshed workshop topic flags",
		"checked", summary.Checked, "changed", summary.Changed, "failed", summary.Failed)
	return summary, nil
}
