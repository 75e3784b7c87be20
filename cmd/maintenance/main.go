// Command maintenance runs one-off repair tasks against the scheduler database.
//
//	maintenance recover-topics   -activity <id> [-dry-run=false]
//	maintenance regenerate-dates -enrollment <id> -start 2025-03-03 [-dry-run=false]
//	maintenance refresh-topics   [-dry-run=false]
//
// Every command previews by default and only writes with -dry-run=false.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/app"
	"alcyxob/coach-scheduler/internal/config"
	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/schedule"
	"alcyxob/coach-scheduler/internal/service"
)

// command is a parsed subcommand invocation.
type command struct {
	name         string
	configPath   string
	dryRun       bool
	activityID   primitive.ObjectID
	enrollmentID primitive.ObjectID
	startDate    string // YYYY-MM-DD, read in the schedule location
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: maintenance <recover-topics|regenerate-dates|refresh-topics> [flags]")
}

// parseCommand validates the subcommand and its flags without touching the database.
func parseCommand(args []string, stderr io.Writer) (*command, error) {
	if len(args) == 0 {
		usage(stderr)
		return nil, errors.New("missing command")
	}
	cmd := &command{name: args[0]}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cmd.configPath, "config", ".", "directory holding config.yaml and .env")
	fs.BoolVar(&cmd.dryRun, "dry-run", true, "preview changes without writing")
	activity := fs.String("activity", "", "activity ID (recover-topics)")
	enrollment := fs.String("enrollment", "", "enrollment ID (regenerate-dates)")
	start := fs.String("start", "", "new start date YYYY-MM-DD (regenerate-dates)")

	switch cmd.name {
	case "recover-topics", "regenerate-dates", "refresh-topics":
	default:
		usage(stderr)
		return nil, fmt.Errorf("unknown command %q", cmd.name)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	var err error
	switch cmd.name {
	case "recover-topics":
		if cmd.activityID, err = primitive.ObjectIDFromHex(*activity); err != nil {
			return nil, fmt.Errorf("-activity must be a valid ID: %w", err)
		}
	case "regenerate-dates":
		if cmd.enrollmentID, err = primitive.ObjectIDFromHex(*enrollment); err != nil {
			return nil, fmt.Errorf("-enrollment must be a valid ID: %w", err)
		}
		if _, err = time.Parse(domain.DateLayout, *start); err != nil {
			return nil, fmt.Errorf("-start must be YYYY-MM-DD: %w", err)
		}
		cmd.startDate = *start
	}
	return cmd, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code. Deferred cleanup runs
// before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	cmd, err := parseCommand(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.LoadConfig(cmd.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "could not load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not initialize application", "error", err)
		return 1
	}
	defer application.Close()

	fmt.Fprintf(stdout, "=== %s ===\n", cmd.name)
	fmt.Fprintf(stdout, "Database: %s\n", cfg.Database.Name)
	fmt.Fprintf(stdout, "Dry Run: %v\n\n", cmd.dryRun)

	r := &runner{app: application, out: stdout, logger: logger}
	if err := r.run(ctx, cmd); err != nil {
		logger.Error("command failed", "command", cmd.name, "error", err)
		return 1
	}

	if cmd.dryRun {
		fmt.Fprintln(stdout, "\nThis was a DRY RUN. No data was modified.")
		fmt.Fprintln(stdout, "Run with -dry-run=false to apply changes.")
	}
	return 0
}

type runner struct {
	app    *app.App
	out    io.Writer
	logger *slog.Logger
}

func (r *runner) run(ctx context.Context, cmd *command) error {
	switch cmd.name {
	case "recover-topics":
		return r.recoverTopics(ctx, cmd)
	case "regenerate-dates":
		return r.regenerateDates(ctx, cmd)
	default:
		return r.refreshTopics(ctx, cmd)
	}
}

// recoverTopics acts as the activity's coach.
func (r *runner) recoverTopics(ctx context.Context, cmd *command) error {
	activity, err := r.app.Repos.Activities.GetByID(ctx, cmd.activityID)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	mode := service.ModeRestore
	if cmd.dryRun {
		mode = service.ModePreview
	}
	result, err := r.app.Topics.Recover(ctx, activity.CoachID, activity.ID, mode)
	if err != nil {
		return err
	}

	for _, t := range result.Topics {
		fmt.Fprintf(r.out, "  %-30s slots=%-3d active=%v\n", truncate(t.Name, 30), len(t.PrimarySchedule), t.Active)
	}
	fmt.Fprintf(r.out, "\nTopics: %d found, %d inserted, %d updated, %d failed\n",
		len(result.Topics), result.InsertedCount, result.UpdatedCount, len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(r.out, "  FAILED %s: %s\n", f.Name, f.Reason)
	}
	return nil
}

// regenerateDates acts as the enrollment's client.
func (r *runner) regenerateDates(ctx context.Context, cmd *command) error {
	enrollment, err := r.app.Repos.Enrollments.GetByID(ctx, cmd.enrollmentID)
	if err != nil {
		return fmt.Errorf("load enrollment: %w", err)
	}
	start, err := schedule.ParseStartDate(cmd.startDate, r.app.Location)
	if err != nil {
		return err
	}
	if cmd.dryRun {
		current := "unset"
		if enrollment.StartDate != nil {
			current = enrollment.StartDate.In(r.app.Location).Format(domain.DateLayout)
		}
		fmt.Fprintf(r.out, "  Enrollment %s: start %s -> %s\n",
			enrollment.ID.Hex(), current, start.Format(domain.DateLayout))
		return nil
	}

	summary, err := r.app.Executions.RegenerateDates(ctx, enrollment.ClientID, enrollment.ID, start)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Executions: %d total, %d updated, %d skipped, %d failed\n",
		summary.Total, summary.Updated, len(summary.Skipped), len(summary.Failed))
	if summary.TimedOut {
		fmt.Fprintln(r.out, "  batch deadline exceeded, re-run to finish the remaining rows")
	}
	return nil
}

func (r *runner) refreshTopics(ctx context.Context, cmd *command) error {
	if !cmd.dryRun {
		summary, err := r.app.Topics.RefreshActive(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Topics: %d checked, %d changed, %d failed\n", summary.Checked, summary.Changed, summary.Failed)
		return nil
	}

	changes, checked, err := r.app.Topics.ActiveChanges(ctx)
	if err != nil {
		return err
	}
	for _, c := range changes {
		fmt.Fprintf(r.out, "  Topic %s (%s) -> active=%v\n", c.TopicID.Hex(), truncate(c.Name, 40), c.Active)
	}
	fmt.Fprintf(r.out, "\nTopics: %d checked, %d would change\n", checked, len(changes))
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return s
}
