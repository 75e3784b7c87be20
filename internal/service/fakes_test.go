package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/repository"
)

// memDB is an in-memory datastore backing every repository fake. The fake unit of work
// snapshots it and restores the snapshot when fn fails, like a transaction would.
type memDB struct {
	mu sync.Mutex

	activities    map[primitive.ObjectID]domain.Activity
	enrollments   map[primitive.ObjectID]domain.Enrollment
	plans         map[primitive.ObjectID]map[int]domain.WeeklyPlanEntry
	periodConfigs map[primitive.ObjectID]domain.PeriodConfig
	exercises     map[primitive.ObjectID]domain.ExerciseDefinition
	executions    []domain.ExerciseExecution
	topics        []domain.WorkshopTopic
	topicLogs     []domain.TopicExecutionLog
	replications  []domain.ReplicationRecord

	// failure injection
	failInsert     func(*domain.ExerciseExecution) error
	failSetDate    func(id primitive.ObjectID) error
	failUpsertTop  func(name string) error
	failReplCreate func(*domain.ReplicationRecord) error
	onInsert       func()
}

func newMemDB() *memDB {
	return &memDB{
		activities:    map[primitive.ObjectID]domain.Activity{},
		enrollments:   map[primitive.ObjectID]domain.Enrollment{},
		plans:         map[primitive.ObjectID]map[int]domain.WeeklyPlanEntry{},
		periodConfigs: map[primitive.ObjectID]domain.PeriodConfig{},
		exercises:     map[primitive.ObjectID]domain.ExerciseDefinition{},
	}
}

func (db *memDB) repos() Repositories {
	return Repositories{
		UnitOfWork:    memUnitOfWork{db},
		Activities:    memActivities{db},
		Enrollments:   memEnrollments{db},
		Plans:         memPlans{db},
		PeriodConfigs: memPeriodConfigs{db},
		Exercises:     memExercises{db},
		Executions:    memExecutions{db},
		Topics:        memTopics{db},
		TopicLogs:     memTopicLogs{db},
		Replications:  memReplications{db},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- unit of work ---

type memUnitOfWork struct{ db *memDB }

type memSnapshot struct {
	plans         map[primitive.ObjectID]map[int]domain.WeeklyPlanEntry
	periodConfigs map[primitive.ObjectID]domain.PeriodConfig
	replications  []domain.ReplicationRecord
}

func (u memUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u.db.mu.Lock()
	snap := memSnapshot{
		plans:         map[primitive.ObjectID]map[int]domain.WeeklyPlanEntry{},
		periodConfigs: map[primitive.ObjectID]domain.PeriodConfig{},
		replications:  append([]domain.ReplicationRecord(nil), u.db.replications...),
	}
	for a, weeks := range u.db.plans {
		snap.plans[a] = map[int]domain.WeeklyPlanEntry{}
		for w, e := range weeks {
			snap.plans[a][w] = e
		}
	}
	for a, c := range u.db.periodConfigs {
		snap.periodConfigs[a] = c
	}
	u.db.mu.Unlock()

	if err := fn(ctx); err != nil {
		u.db.mu.Lock()
		u.db.plans = snap.plans
		u.db.periodConfigs = snap.periodConfigs
		u.db.replications = snap.replications
		u.db.mu.Unlock()
		return err
	}
	return nil
}

// --- activities & enrollments ---

type memActivities struct{ db *memDB }

func (r memActivities) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Activity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

type memEnrollments struct{ db *memDB }

func (r memEnrollments) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Enrollment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r memEnrollments) SetStartDate(_ context.Context, id primitive.ObjectID, startDate time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.enrollments[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.StartDate = &startDate
	r.db.enrollments[id] = e
	return nil
}

// --- plans & period configs ---

type memPlans struct{ db *memDB }

func (r memPlans) GetByActivityID(_ context.Context, activityID primitive.ObjectID) ([]domain.WeeklyPlanEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.WeeklyPlanEntry
	for _, e := range r.db.plans[activityID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekNumber < out[j].WeekNumber })
	return out, nil
}

func (r memPlans) GetWeek(_ context.Context, activityID primitive.ObjectID, weekNumber int) (*domain.WeeklyPlanEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.plans[activityID][weekNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r memPlans) UpsertWeek(_ context.Context, entry *domain.WeeklyPlanEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	weeks, ok := r.db.plans[entry.ActivityID]
	if !ok {
		weeks = map[int]domain.WeeklyPlanEntry{}
		r.db.plans[entry.ActivityID] = weeks
	}
	stored := *entry
	if existing, ok := weeks[entry.WeekNumber]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = primitive.NewObjectID()
	}
	weeks[entry.WeekNumber] = stored
	return nil
}

func (r memPlans) DeleteWeek(_ context.Context, activityID primitive.ObjectID, weekNumber int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.plans[activityID][weekNumber]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.plans[activityID], weekNumber)
	return nil
}

type memPeriodConfigs struct{ db *memDB }

func (r memPeriodConfigs) GetByActivityID(_ context.Context, activityID primitive.ObjectID) (*domain.PeriodConfig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.periodConfigs[activityID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r memPeriodConfigs) SetPeriodCount(_ context.Context, activityID primitive.ObjectID, count int) (*domain.PeriodConfig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.periodConfigs[activityID]
	if !ok {
		c = domain.PeriodConfig{ID: primitive.NewObjectID(), ActivityID: activityID}
	}
	c.PeriodCount = count
	r.db.periodConfigs[activityID] = c
	return &c, nil
}

func (r memPeriodConfigs) DeleteByActivityID(_ context.Context, activityID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.periodConfigs[activityID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.periodConfigs, activityID)
	return nil
}

// --- exercises & executions ---

type memExercises struct{ db *memDB }

func (r memExercises) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ExerciseDefinition, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r memExercises) GetByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.ExerciseDefinition, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := map[primitive.ObjectID]domain.ExerciseDefinition{}
	for _, id := range ids {
		if d, ok := r.db.exercises[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

type memExecutions struct{ db *memDB }

func sameExecutionKey(a, b *domain.ExerciseExecution) bool {
	return a.ClientID == b.ClientID && a.PeriodConfigID == b.PeriodConfigID && a.ExerciseID == b.ExerciseID &&
		a.Period == b.Period && a.Week == b.Week && a.Weekday == b.Weekday &&
		a.BlockNumber == b.BlockNumber && a.OrderInBlock == b.OrderInBlock
}

func (r memExecutions) InsertIfAbsent(ctx context.Context, execution *domain.ExerciseExecution) (bool, error) {
	if r.db.onInsert != nil {
		r.db.onInsert()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.db.failInsert != nil {
		if err := r.db.failInsert(execution); err != nil {
			return false, err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.executions {
		if sameExecutionKey(&r.db.executions[i], execution) {
			return false, nil
		}
	}
	stored := *execution
	stored.ID = primitive.NewObjectID()
	r.db.executions = append(r.db.executions, stored)
	return true, nil
}

func (r memExecutions) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ExerciseExecution, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.executions {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memExecutions) GetByClientID(_ context.Context, clientID primitive.ObjectID) ([]domain.ExerciseExecution, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.ExerciseExecution
	for _, e := range r.db.executions {
		if e.ClientID == clientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memExecutions) SetScheduledDate(_ context.Context, id primitive.ObjectID, date *time.Time) error {
	if r.db.failSetDate != nil {
		if err := r.db.failSetDate(id); err != nil {
			return err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.executions {
		if r.db.executions[i].ID == id {
			r.db.executions[i].ScheduledDate = date
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memExecutions) UpdateProgress(_ context.Context, id primitive.ObjectID, completed *bool, clientNote *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.executions {
		if r.db.executions[i].ID == id {
			if completed != nil {
				r.db.executions[i].Completed = *completed
			}
			if clientNote != nil {
				r.db.executions[i].ClientNote = *clientNote
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- workshop topics & logs ---

type memTopics struct{ db *memDB }

func (r memTopics) GetByActivityID(_ context.Context, activityID primitive.ObjectID) ([]domain.WorkshopTopic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.WorkshopTopic
	for _, t := range r.db.topics {
		if t.ActivityID == activityID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTopics) GetAll(_ context.Context) ([]domain.WorkshopTopic, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]domain.WorkshopTopic(nil), r.db.topics...), nil
}

func (r memTopics) UpsertByName(_ context.Context, topic *domain.WorkshopTopic) (bool, error) {
	if r.db.failUpsertTop != nil {
		if err := r.db.failUpsertTop(topic.Name); err != nil {
			return false, err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.topics {
		t := &r.db.topics[i]
		if t.ActivityID == topic.ActivityID && t.Name == topic.Name {
			t.PrimarySchedule = topic.PrimarySchedule
			t.Active = topic.Active
			if topic.Description != "" {
				t.Description = topic.Description
			}
			return false, nil
		}
	}
	stored := *topic
	stored.ID = primitive.NewObjectID()
	stored.SecondarySchedule = []domain.ScheduleSlot{}
	r.db.topics = append(r.db.topics, stored)
	return true, nil
}

func (r memTopics) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.topics {
		if r.db.topics[i].ID == id {
			r.db.topics[i].Active = active
			return nil
		}
	}
	return repository.ErrNotFound
}

type memTopicLogs struct{ db *memDB }

func (r memTopicLogs) GetByActivityID(_ context.Context, activityID primitive.ObjectID) ([]domain.TopicExecutionLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.TopicExecutionLog
	for _, l := range r.db.topicLogs {
		if l.ActivityID == activityID {
			out = append(out, l)
		}
	}
	return out, nil
}

// --- replications ---

type memReplications struct{ db *memDB }

func (r memReplications) Create(_ context.Context, record *domain.ReplicationRecord) (primitive.ObjectID, error) {
	if r.db.failReplCreate != nil {
		if err := r.db.failReplCreate(record); err != nil {
			return primitive.NilObjectID, err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	record.ID = primitive.NewObjectID()
	r.db.replications = append(r.db.replications, *record)
	return record.ID, nil
}

func (r memReplications) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ReplicationRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rec := range r.db.replications {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memReplications) GetActiveByActivityID(_ context.Context, activityID primitive.ObjectID) ([]domain.ReplicationRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.ReplicationRecord
	for i := len(r.db.replications) - 1; i >= 0; i-- {
		rec := r.db.replications[i]
		if rec.ActivityID == activityID && !rec.Reverted {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r memReplications) MarkReverted(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.replications {
		if r.db.replications[i].ID == id && !r.db.replications[i].Reverted {
			r.db.replications[i].Reverted = true
			r.db.replications[i].RevertedAt = &at
			return nil
		}
	}
	return repository.ErrUpdateFailed
}
