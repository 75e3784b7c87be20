package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/schedule"
)

// dayJSON encodes one block holding the given exercises in order.
func dayJSON(ids ...primitive.ObjectID) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = fmt.Sprintf(`{"exerciseId":%q,"order":%d}`, id.Hex(), i+1)
	}
	return `{"1":[` + strings.Join(items, ",") + `]}`
}

type programFixture struct {
	db         *memDB
	coach      primitive.ObjectID
	client     primitive.ObjectID
	activity   primitive.ObjectID
	enrollment primitive.ObjectID
	exA        primitive.ObjectID
	exB        primitive.ObjectID
	exC        primitive.ObjectID
}

// newActivity78 seeds a one-week program: Monday A,B; Wednesday C; Thursday C.
func newActivity78(periodCount int, start *time.Time) *programFixture {
	f := &programFixture{
		db:         newMemDB(),
		coach:      primitive.NewObjectID(),
		client:     primitive.NewObjectID(),
		activity:   primitive.NewObjectID(),
		enrollment: primitive.NewObjectID(),
		exA:        primitive.NewObjectID(),
		exB:        primitive.NewObjectID(),
		exC:        primitive.NewObjectID(),
	}
	f.db.activities[f.activity] = domain.Activity{ID: f.activity, CoachID: f.coach, Title: "Fuerza", Type: domain.ActivityProgram}
	f.db.enrollments[f.enrollment] = domain.Enrollment{ID: f.enrollment, ClientID: f.client, ActivityID: f.activity, StartDate: start}
	f.db.periodConfigs[f.activity] = domain.PeriodConfig{ID: primitive.NewObjectID(), ActivityID: f.activity, PeriodCount: periodCount}
	f.db.plans[f.activity] = map[int]domain.WeeklyPlanEntry{
		1: {
			ID:         primitive.NewObjectID(),
			ActivityID: f.activity,
			WeekNumber: 1,
			Monday:     dayJSON(f.exA, f.exB),
			Tuesday:    "[]",
			Wednesday:  dayJSON(f.exC),
			Thursday:   dayJSON(f.exC),
		},
	}
	f.db.exercises[f.exA] = domain.ExerciseDefinition{ID: f.exA, CoachID: f.coach, Name: "Sentadilla", DetailOfSets: "(80-8-4)", MediaKey: "squat.mp4"}
	f.db.exercises[f.exB] = domain.ExerciseDefinition{ID: f.exB, CoachID: f.coach, Name: "Press banca", DetailOfSets: "(60-10-3)"}
	f.db.exercises[f.exC] = domain.ExerciseDefinition{ID: f.exC, CoachID: f.coach, Name: "Remo", DetailOfSets: "(40-12-3);(45-10-3)"}
	return f
}

func (f *programFixture) service(opts ScheduleOptions) ExecutionService {
	return NewExecutionService(f.db.repos(), nil, opts, discardLogger())
}

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func scheduledDates(execs []domain.ExerciseExecution) []string {
	out := make([]string, len(execs))
	for i, e := range execs {
		if e.ScheduledDate != nil {
			out[i] = e.ScheduledDate.Format(domain.DateLayout)
		}
	}
	return out
}

func TestMaterialize_Activity78(t *testing.T) {
	start := date("2025-01-06")
	f := newActivity78(3, &start)
	svc := f.service(ScheduleOptions{})

	summary, err := svc.Materialize(context.Background(), f.client, f.enrollment)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	wantSummary := &MaterializeSummary{Total: 12, Inserted: 12, Failed: []FailedUnit{}}
	if diff := cmp.Diff(wantSummary, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	wantDates := []string{
		"2025-01-06", "2025-01-06", "2025-01-08", "2025-01-09",
		"2025-01-13", "2025-01-13", "2025-01-15", "2025-01-16",
		"2025-01-20", "2025-01-20", "2025-01-22", "2025-01-23",
	}
	if diff := cmp.Diff(wantDates, scheduledDates(f.db.executions)); diff != "" {
		t.Errorf("scheduled dates mismatch (-want +got):\n%s", diff)
	}

	var order []string
	for _, e := range f.db.executions {
		order = append(order, fmt.Sprintf("p%d/%s/%s", e.Period, e.Weekday, e.ExerciseID.Hex()))
	}
	wantFirst := []string{
		fmt.Sprintf("p1/monday/%s", f.exA.Hex()),
		fmt.Sprintf("p1/monday/%s", f.exB.Hex()),
		fmt.Sprintf("p1/wednesday/%s", f.exC.Hex()),
		fmt.Sprintf("p1/thursday/%s", f.exC.Hex()),
		fmt.Sprintf("p2/monday/%s", f.exA.Hex()),
	}
	if diff := cmp.Diff(wantFirst, order[:5]); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
	if got := f.db.executions[2].DetailOfSetsSnapshot; got != "(40-12-3);(45-10-3)" {
		t.Errorf("snapshot = %q", got)
	}
}

func TestMaterialize_PeriodLengthOverride(t *testing.T) {
	start := date("2025-01-06")
	f := newActivity78(2, &start)
	svc := f.service(ScheduleOptions{PeriodLengthDays: 14})

	if _, err := svc.Materialize(context.Background(), f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	got := scheduledDates(f.db.executions)
	if got[4] != "2025-01-20" {
		t.Errorf("period 2 Monday = %s, want 2025-01-20", got[4])
	}
}

func TestMaterialize_IdempotentAndKeepsProgress(t *testing.T) {
	f := newActivity78(3, nil)
	svc := f.service(ScheduleOptions{})
	ctx := context.Background()

	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("first Materialize: %v", err)
	}
	f.db.executions[0].Completed = true
	f.db.executions[0].ClientNote = "hecho"

	summary, err := svc.Materialize(ctx, f.coach, f.enrollment)
	if err != nil {
		t.Fatalf("second Materialize: %v", err)
	}
	if summary.Inserted != 0 || summary.Skipped != 12 {
		t.Errorf("second run inserted=%d skipped=%d, want 0/12", summary.Inserted, summary.Skipped)
	}
	if len(f.db.executions) != 12 {
		t.Errorf("row count = %d, want 12", len(f.db.executions))
	}
	if !f.db.executions[0].Completed || f.db.executions[0].ClientNote != "hecho" {
		t.Error("client progress was overwritten")
	}
	if f.db.executions[0].ScheduledDate != nil {
		t.Error("scheduledDate should stay unset without a start date")
	}
}

func TestMaterialize_SnapshotIsolation(t *testing.T) {
	f := newActivity78(1, nil)
	svc := f.service(ScheduleOptions{})
	ctx := context.Background()

	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	def := f.db.exercises[f.exA]
	def.DetailOfSets = "(100-5-5)"
	f.db.exercises[f.exA] = def

	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("re-Materialize: %v", err)
	}
	for _, e := range f.db.executions {
		if e.ExerciseID == f.exA && e.DetailOfSetsSnapshot != "(80-8-4)" {
			t.Errorf("snapshot changed to %q", e.DetailOfSetsSnapshot)
		}
	}
}

func TestMaterialize_CanonicalSetSnapshot(t *testing.T) {
	f := newActivity78(1, nil)
	def := f.db.exercises[f.exA]
	def.DetailOfSets = " (80-8-4); (82.50-6-3) "
	f.db.exercises[f.exA] = def
	def = f.db.exercises[f.exB]
	def.DetailOfSets = "a criterio"
	f.db.exercises[f.exB] = def
	svc := f.service(ScheduleOptions{})

	if _, err := svc.Materialize(context.Background(), f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	got := map[primitive.ObjectID]string{}
	for _, e := range f.db.executions {
		got[e.ExerciseID] = e.DetailOfSetsSnapshot
	}
	if got[f.exA] != "(80-8-4);(82.5-6-3)" {
		t.Errorf("well-formed snapshot = %q, want canonical spelling", got[f.exA])
	}
	if got[f.exB] != "a criterio" {
		t.Errorf("malformed snapshot = %q, want kept verbatim", got[f.exB])
	}
}

func TestMaterialize_Errors(t *testing.T) {
	ctx := context.Background()

	f := newActivity78(1, nil)
	svc := f.service(ScheduleOptions{})
	if _, err := svc.Materialize(ctx, primitive.NewObjectID(), f.enrollment); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Materialize(ctx, f.client, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown enrollment: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Materialize(ctx, f.client, primitive.NilObjectID); !errors.Is(err, ErrValidation) {
		t.Errorf("nil enrollment: err = %v, want ErrValidation", err)
	}

	delete(f.db.periodConfigs, f.activity)
	if _, err := svc.Materialize(ctx, f.client, f.enrollment); !errors.Is(err, ErrValidation) {
		t.Errorf("missing period config: err = %v, want ErrValidation", err)
	}
}

func TestMaterialize_CorruptDayAndMissingDefinition(t *testing.T) {
	f := newActivity78(1, nil)
	ghost := primitive.NewObjectID()
	week := f.db.plans[f.activity][1]
	// Friday is corrupt and gets skipped; Saturday points at a missing definition.
	week.Friday = `{"1":[{"exerciseId":`
	week.Saturday = dayJSON(ghost)
	f.db.plans[f.activity][1] = week
	svc := f.service(ScheduleOptions{})

	summary, err := svc.Materialize(context.Background(), f.client, f.enrollment)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	want := &MaterializeSummary{
		Total:    5,
		Inserted: 4,
		Failed:   []FailedUnit{{Unit: 5, ExerciseID: ghost.Hex(), Reason: reasonMissingExercise}},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func tenUnits(ex primitive.ObjectID) []schedule.ReplicatedUnit {
	units := make([]schedule.ReplicatedUnit, 10)
	for i := range units {
		units[i] = schedule.ReplicatedUnit{
			ScheduleUnit: schedule.ScheduleUnit{Week: 1, Weekday: domain.Monday, Block: 1, OrderInBlock: i + 1, ExerciseID: ex},
			Period:       1,
		}
	}
	return units
}

func TestMaterializeUnits_PartialFailure(t *testing.T) {
	f := newActivity78(1, nil)
	f.db.failInsert = func(e *domain.ExerciseExecution) error {
		if e.OrderInBlock == 5 {
			return errors.New("constraint violation")
		}
		return nil
	}
	svc := f.service(ScheduleOptions{})

	summary, err := svc.MaterializeUnits(context.Background(), MaterializeRequest{
		Units:          tenUnits(f.exA),
		ClientID:       f.client,
		ActivityID:     f.activity,
		EnrollmentID:   f.enrollment,
		PeriodConfigID: f.db.periodConfigs[f.activity].ID,
	})
	if err != nil {
		t.Fatalf("MaterializeUnits: %v", err)
	}
	want := &MaterializeSummary{
		Total:    10,
		Inserted: 9,
		Failed:   []FailedUnit{{Unit: 5, ExerciseID: f.exA.Hex(), Reason: reasonInsertFailed}},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	var orders []int
	for _, e := range f.db.executions {
		orders = append(orders, e.OrderInBlock)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 6, 7, 8, 9, 10}, orders); diff != "" {
		t.Errorf("inserted rows mismatch (-want +got):\n%s", diff)
	}
}

func TestMaterializeUnits_BatchDeadline(t *testing.T) {
	f := newActivity78(1, nil)
	calls := 0
	f.db.onInsert = func() {
		calls++
		if calls == 2 {
			time.Sleep(50 * time.Millisecond)
		}
	}
	svc := f.service(ScheduleOptions{BatchTimeout: 20 * time.Millisecond})

	summary, err := svc.MaterializeUnits(context.Background(), MaterializeRequest{
		Units:          tenUnits(f.exA),
		ClientID:       f.client,
		ActivityID:     f.activity,
		EnrollmentID:   f.enrollment,
		PeriodConfigID: f.db.periodConfigs[f.activity].ID,
	})
	if err != nil {
		t.Fatalf("MaterializeUnits: %v", err)
	}
	if !summary.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if summary.Inserted != 1 || len(summary.Failed) != 9 {
		t.Fatalf("inserted=%d failed=%d, want 1/9", summary.Inserted, len(summary.Failed))
	}
	for _, fu := range summary.Failed {
		if fu.Reason != reasonDeadline {
			t.Errorf("unit %d reason = %q", fu.Unit, fu.Reason)
		}
	}
}

func TestRegenerateDates(t *testing.T) {
	f := newActivity78(2, nil)
	svc := f.service(ScheduleOptions{})
	ctx := context.Background()

	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	// A legacy row with a Spanish weekday, one that cannot be placed, and a row of
	// another activity that must not move.
	legacy := domain.ExerciseExecution{ID: primitive.NewObjectID(), ClientID: f.client, ActivityID: f.activity, ExerciseID: f.exB, Period: 1, Week: 1, Weekday: "Miércoles"}
	broken := domain.ExerciseExecution{ID: primitive.NewObjectID(), ClientID: f.client, ActivityID: f.activity, ExerciseID: f.exB, Period: 1, Week: 1, Weekday: "funday"}
	otherDate := date("2024-01-01")
	other := domain.ExerciseExecution{ID: primitive.NewObjectID(), ClientID: f.client, ActivityID: primitive.NewObjectID(), ExerciseID: f.exB, Period: 1, Week: 1, Weekday: domain.Monday, ScheduledDate: &otherDate}
	f.db.executions = append(f.db.executions, legacy, broken, other)

	summary, err := svc.RegenerateDates(ctx, f.coach, f.enrollment, time.Date(2025, 1, 6, 15, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RegenerateDates: %v", err)
	}
	if summary.Total != 10 || summary.Updated != 9 {
		t.Errorf("total=%d updated=%d, want 10/9", summary.Total, summary.Updated)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0].ExecutionID != broken.ID.Hex() {
		t.Errorf("skipped = %+v", summary.Skipped)
	}
	if len(summary.Failed) != 0 {
		t.Errorf("failed = %+v", summary.Failed)
	}

	want := []string{
		"2025-01-06", "2025-01-06", "2025-01-08", "2025-01-09",
		"2025-01-13", "2025-01-13", "2025-01-15", "2025-01-16",
		"2025-01-08", "", "2024-01-01",
	}
	if diff := cmp.Diff(want, scheduledDates(f.db.executions)); diff != "" {
		t.Errorf("scheduled dates mismatch (-want +got):\n%s", diff)
	}

	stored := f.db.enrollments[f.enrollment].StartDate
	if stored == nil || !stored.Equal(date("2025-01-06")) {
		t.Errorf("enrollment start date = %v", stored)
	}
}

func TestRegenerateDates_WestOfUTCKeepsCalendarDay(t *testing.T) {
	art := time.FixedZone("ART", -3*60*60)
	f := newActivity78(1, nil)
	svc := f.service(ScheduleOptions{Location: art})
	ctx := context.Background()
	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	start, err := schedule.ParseStartDate("2025-01-06", art)
	if err != nil {
		t.Fatalf("ParseStartDate: %v", err)
	}
	summary, err := svc.RegenerateDates(ctx, f.client, f.enrollment, start)
	if err != nil {
		t.Fatalf("RegenerateDates: %v", err)
	}
	if summary.Updated != 4 {
		t.Fatalf("updated = %d, want 4", summary.Updated)
	}

	var got []string
	for _, e := range f.db.executions {
		got = append(got, e.ScheduledDate.In(art).Format(domain.DateLayout))
	}
	if diff := cmp.Diff([]string{"2025-01-06", "2025-01-06", "2025-01-08", "2025-01-09"}, got); diff != "" {
		t.Errorf("scheduled dates mismatch (-want +got):\n%s", diff)
	}
	if wd := f.db.executions[0].ScheduledDate.In(art).Weekday(); wd != time.Monday {
		t.Errorf("first session on %s, want Monday", wd)
	}
	stored := f.db.enrollments[f.enrollment].StartDate
	if stored == nil || stored.In(art).Format(domain.DateLayout) != "2025-01-06" {
		t.Errorf("enrollment start date = %v", stored)
	}
}

func TestRegenerateDates_RowFailureDoesNotStopBatch(t *testing.T) {
	f := newActivity78(1, nil)
	svc := f.service(ScheduleOptions{})
	ctx := context.Background()
	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	bad := f.db.executions[1].ID
	f.db.failSetDate = func(id primitive.ObjectID) error {
		if id == bad {
			return errors.New("write conflict")
		}
		return nil
	}

	summary, err := svc.RegenerateDates(ctx, f.client, f.enrollment, date("2025-03-03"))
	if err != nil {
		t.Fatalf("RegenerateDates: %v", err)
	}
	if summary.Updated != 3 {
		t.Errorf("updated = %d, want 3", summary.Updated)
	}
	wantFailed := []RowIssue{{ExecutionID: bad.Hex(), Reason: reasonUpdateFailed}}
	if diff := cmp.Diff(wantFailed, summary.Failed); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
}

func TestRegenerateDates_Validation(t *testing.T) {
	f := newActivity78(1, nil)
	svc := f.service(ScheduleOptions{})
	if _, err := svc.RegenerateDates(context.Background(), f.client, f.enrollment, time.Time{}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if _, err := svc.RegenerateDates(context.Background(), primitive.NewObjectID(), f.enrollment, date("2025-01-06")); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

type fakeFiles struct{ calls int }

func (f *fakeFiles) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.calls++
	return "https://media.example/" + key, nil
}

func TestCalendar(t *testing.T) {
	start := date("2025-01-06")
	f := newActivity78(2, &start)
	files := &fakeFiles{}
	svc := NewExecutionService(f.db.repos(), files, ScheduleOptions{}, discardLogger())
	ctx := context.Background()

	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	// Reverse storage order; the calendar must still come back canonical.
	for i, j := 0, len(f.db.executions)-1; i < j; i, j = i+1, j-1 {
		f.db.executions[i], f.db.executions[j] = f.db.executions[j], f.db.executions[i]
	}

	entries, err := svc.Calendar(ctx, f.client, f.enrollment)
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("len(entries) = %d, want 8", len(entries))
	}
	var names []string
	for _, e := range entries[:4] {
		names = append(names, e.ExerciseName)
	}
	if diff := cmp.Diff([]string{"Sentadilla", "Press banca", "Remo", "Remo"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if entries[0].MediaURL != "https://media.example/squat.mp4" || entries[1].MediaURL != "" {
		t.Errorf("media urls = %q, %q", entries[0].MediaURL, entries[1].MediaURL)
	}
	if files.calls != 1 {
		t.Errorf("presign calls = %d, want 1 (cached per exercise)", files.calls)
	}
	if entries[4].Period != 2 {
		t.Errorf("entry 5 period = %d, want 2", entries[4].Period)
	}
	wantSets := []domain.SetDetail{{Weight: 40, Reps: 12, SetCount: 3}, {Weight: 45, Reps: 10, SetCount: 3}}
	if diff := cmp.Diff(wantSets, entries[2].Sets); diff != "" {
		t.Errorf("parsed sets mismatch (-want +got):\n%s", diff)
	}
}

func TestCalendar_MalformedSetsKeepRawSnapshot(t *testing.T) {
	f := newActivity78(1, nil)
	def := f.db.exercises[f.exA]
	def.DetailOfSets = "pesado"
	f.db.exercises[f.exA] = def
	svc := f.service(ScheduleOptions{})
	ctx := context.Background()

	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	entries, err := svc.Calendar(ctx, f.client, f.enrollment)
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if entries[0].Sets != nil || entries[0].DetailOfSetsSnapshot != "pesado" {
		t.Errorf("entry 1 sets = %v, snapshot = %q; want nil and raw value", entries[0].Sets, entries[0].DetailOfSetsSnapshot)
	}
	if len(entries[1].Sets) != 1 || entries[1].Sets[0].Reps != 10 {
		t.Errorf("entry 2 sets = %v, want one group of 10 reps", entries[1].Sets)
	}
}

func TestUpdateProgress(t *testing.T) {
	f := newActivity78(1, nil)
	svc := f.service(ScheduleOptions{})
	ctx := context.Background()
	if _, err := svc.Materialize(ctx, f.client, f.enrollment); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	id := f.db.executions[0].ID
	done, note := true, "me costó"

	got, err := svc.UpdateProgress(ctx, f.client, id, &done, &note)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if !got.Completed || got.ClientNote != note || !f.db.executions[0].Completed {
		t.Errorf("execution not updated: %+v", got)
	}

	if _, err := svc.UpdateProgress(ctx, f.coach, id, &done, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("coach: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.UpdateProgress(ctx, f.client, id, nil, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("empty update: err = %v, want ErrValidation", err)
	}
	if _, err := svc.UpdateProgress(ctx, f.client, primitive.NewObjectID(), &done, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown execution: err = %v, want ErrNotFound", err)
	}
}
