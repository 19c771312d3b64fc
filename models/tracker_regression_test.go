package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/models"
	"github.com/pqpsoft/tracker_backend/utils"
	"github.com/pqpsoft/tracker_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Regression tests against a real MySQL + Redis. They pin the ledger
// semantics end to end:
//   - the scope ledger is append-only (task edits add deltas, never rewrite)
//   - logged hours upsert per (task, date) and recompute the task total
//   - headcount sampling overwrites the same (site, date) row on re-run
//   - daily snapshot generation carries the previous day's forecast forward
func setupTrackerTestEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "tracker_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test Supervisor")
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleSupervisor))
	return ctx
}

func TestScopeLedgerAndLoggedHours(t *testing.T) {
	ctx := setupTrackerTestEnv(t)

	project, err := models.CreateProject(ctx, &models.NewProject{Name: "Plant Overhaul", Key: "PO"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	task, err := models.CreateTask(ctx, &models.NewTask{
		ProjectId:      project.ID,
		TaskKey:        "PO-1",
		Title:          "Replace gearbox",
		Status:         models.TaskStatusInProgress,
		EstimatedHours: decimal.NewFromInt(8),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// creation writes the estimate as the opening scope delta
	scope, err := models.SumScopeForTask(ctx, task.ID, time.Now().UTC().AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("SumScopeForTask: %v", err)
	}
	if !scope.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected opening scope 8, got %s", scope)
	}

	// raising the estimate appends the difference, it never rewrites
	newEstimate := decimal.NewFromInt(12)
	if _, err := models.UpdateTask(ctx, task.ID, &models.UpdateTaskInput{EstimatedHours: &newEstimate}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	scope, err = models.SumScopeForTask(ctx, task.ID, time.Now().UTC().AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("SumScopeForTask after update: %v", err)
	}
	if !scope.Equal(newEstimate) {
		t.Fatalf("expected scope 12 after estimate change, got %s", scope)
	}

	// an unset estimate still counts as one unit of scope
	unitTask, err := models.CreateTask(ctx, &models.NewTask{
		ProjectId: project.ID,
		TaskKey:   "PO-2",
		Title:     "Untriaged inspection",
	})
	if err != nil {
		t.Fatalf("CreateTask (no estimate): %v", err)
	}
	scope, err = models.SumScopeForTask(ctx, unitTask.ID, time.Now().UTC().AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("SumScopeForTask (no estimate): %v", err)
	}
	if !scope.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected default scope 1, got %s", scope)
	}

	// logging hours twice on the same day overwrites, never accumulates
	day := utils.DateKey(time.Now().UTC())
	if _, err := models.LogTaskHours(ctx, task.ID, day, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("LogTaskHours: %v", err)
	}
	updated, err := models.LogTaskHours(ctx, task.ID, day, decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("LogTaskHours (re-log): %v", err)
	}
	if !updated.ActualHours.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected actual hours 3 after re-log, got %s", updated.ActualHours)
	}
	hours, err := models.GetTaskHours(ctx, task.ID, day)
	if err != nil {
		t.Fatalf("GetTaskHours: %v", err)
	}
	if !hours.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected stored hours 3, got %s", hours)
	}

	// a second day accumulates into the task total via recompute
	nextDay := utils.DateKey(time.Now().UTC().AddDate(0, 0, 1))
	updated, err = models.LogTaskHours(ctx, task.ID, nextDay, decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("LogTaskHours (next day): %v", err)
	}
	if !updated.ActualHours.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected actual hours 7 across two days, got %s", updated.ActualHours)
	}

	if _, err := models.LogTaskHours(ctx, task.ID, day, decimal.NewFromInt(-1)); err != models.ErrorNegativeHours {
		t.Fatalf("expected ErrorNegativeHours, got %v", err)
	}
}

func TestHeadcountSamplerOverwritesSameDay(t *testing.T) {
	ctx := setupTrackerTestEnv(t)

	for i := 0; i < 3; i++ {
		_, err := models.CreateUser(ctx, &models.NewUser{
			Username:   fmt.Sprintf("eng%d", i),
			Name:       fmt.Sprintf("Engineer %d", i),
			Role:       models.UserRoleEngineer,
			DutyStatus: models.DutyStatusOnDuty,
			Site:       models.SitePqpHt,
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	offDuty, err := models.CreateUser(ctx, &models.NewUser{
		Username:   "eng-off",
		Name:       "Engineer Off",
		Role:       models.UserRoleEngineer,
		DutyStatus: models.DutyStatusOffDuty,
		Site:       models.SitePqpHt,
	})
	if err != nil {
		t.Fatalf("CreateUser (off duty): %v", err)
	}

	sampler := workflow.NewHeadcountSampler(config.GetDB(), logrus.New())
	fireTime := time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC)
	sampler.SampleOnce(ctx, fireTime)

	start := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	byDay, err := models.GetHeadcountByDay(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("GetHeadcountByDay: %v", err)
	}
	if got := byDay[models.SitePqpHt]["2026-08-31"]; got != 3 {
		t.Fatalf("expected 3 on duty at PQP_HT, got %d", got)
	}
	if got := byDay[models.SiteMt1]["2026-08-31"]; got != 0 {
		t.Fatalf("expected 0 on duty at MT1, got %d", got)
	}

	// roster changes, same-day re-sample overwrites the row
	onDuty := models.DutyStatusOnDuty
	if _, err := models.UpdateUser(ctx, offDuty.ID, &models.UpdateUserInput{DutyStatus: &onDuty}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	sampler.SampleOnce(ctx, fireTime)

	byDay, err = models.GetHeadcountByDay(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("GetHeadcountByDay after re-sample: %v", err)
	}
	if got := byDay[models.SitePqpHt]["2026-08-31"]; got != 4 {
		t.Fatalf("expected overwritten count 4, got %d", got)
	}
}

func TestDailySnapshotCarryForward(t *testing.T) {
	ctx := setupTrackerTestEnv(t)

	project, err := models.CreateProject(ctx, &models.NewProject{Name: "Daily Ops", Key: "OPS"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	task, err := models.CreateTask(ctx, &models.NewTask{
		ProjectId: project.ID,
		TaskKey:   "OPS-1",
		Title:     "Grease bearings",
		Status:    models.TaskStatusInProgress,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// a date nobody generated renders as an empty shell, not an error
	shell, err := models.GetDailySnapshot(ctx, "2026-01-01")
	if err != nil {
		t.Fatalf("GetDailySnapshot (absent): %v", err)
	}
	if shell.Date != "2026-01-01" || len(shell.ReportTasks) != 0 || len(shell.NextdayTasks) != 0 {
		t.Fatalf("expected empty shell, got %+v", shell)
	}
	if shell.GeneratedById != nil || shell.GeneratedAt != nil {
		t.Fatalf("empty shell must not claim a generator, got %+v", shell)
	}

	day1, err := models.GenerateDailySnapshot(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("GenerateDailySnapshot day 1: %v", err)
	}
	if len(day1.ReportTasks) != 1 || day1.ReportTasks[0].ID != task.ID {
		t.Fatalf("expected active task on day-1 report, got %+v", day1.ReportTasks)
	}
	if day1.GeneratedById == nil || *day1.GeneratedById != 1 || day1.GeneratedAt == nil {
		t.Fatalf("expected generator metadata on the response, got %+v", day1)
	}
	if len(day1.NextdayTasks) != 1 || day1.NextdayTasks[0].CompletionPercent != nil {
		t.Fatalf("expected forecast with completion nulled, got %+v", day1.NextdayTasks)
	}

	// progress recorded on day 1 does not leak into the day-2 carry-forward:
	// the carried entry keeps the completion captured at generation time (nil
	// from the forecast, rendered as stored)
	completion := 60
	if _, err := models.UpdateTask(ctx, task.ID, &models.UpdateTaskInput{CompletionPercent: &completion}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	day2, err := models.GenerateDailySnapshot(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("GenerateDailySnapshot day 2: %v", err)
	}
	if len(day2.ReportTasks) != 1 || day2.ReportTasks[0].ID != task.ID {
		t.Fatalf("expected carried task on day-2 report, got %+v", day2.ReportTasks)
	}
	// the carried entry came from day 1's forecast, so its completion is
	// still the forecast's null, not today's 60
	if day2.ReportTasks[0].CompletionPercent != nil {
		t.Fatalf("expected carried completion kept from forecast, got %d", *day2.ReportTasks[0].CompletionPercent)
	}

	// re-generating replaces the row instead of erroring on the unique date
	again, err := models.GenerateDailySnapshot(ctx, "2026-08-31")
	if err != nil {
		t.Fatalf("GenerateDailySnapshot (regenerate): %v", err)
	}
	if len(again.ReportTasks) != 1 {
		t.Fatalf("expected regenerated snapshot with 1 task, got %+v", again.ReportTasks)
	}

	// ad hoc entries resolve by key, or degrade to description-only
	withEntry, err := models.AddSnapshotTask(ctx, "2026-08-31", "OPS-1", "also checked couplings")
	if err != nil {
		t.Fatalf("AddSnapshotTask (duplicate key): %v", err)
	}
	if len(withEntry.ReportTasks) != 1 {
		t.Fatalf("expected duplicate add to be a no-op, got %d tasks", len(withEntry.ReportTasks))
	}
	withAdHoc, err := models.AddSnapshotTask(ctx, "2026-08-31", "UNTRACKED", "swept the floor")
	if err != nil {
		t.Fatalf("AddSnapshotTask (ad hoc): %v", err)
	}
	if len(withAdHoc.ReportTasks) != 2 || withAdHoc.ReportTasks[1].Description != "swept the floor" {
		t.Fatalf("expected ad hoc entry appended, got %+v", withAdHoc.ReportTasks)
	}

	// ad hoc entries carry id 0 and must still be removable
	afterRemove, err := models.RemoveSnapshotTask(ctx, "2026-08-31", 0)
	if err != nil {
		t.Fatalf("RemoveSnapshotTask (ad hoc): %v", err)
	}
	if len(afterRemove.ReportTasks) != 1 || afterRemove.ReportTasks[0].ID != task.ID {
		t.Fatalf("expected only the tracked task left, got %+v", afterRemove.ReportTasks)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tracker-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tracker-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=tracker_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
