package models

import (
	"testing"

	"github.com/pqpsoft/tracker_backend/utils"
)

// NOTE: These tests are intentionally DB-free. BuildDailySnapshot is the pure
// carry-forward core; the date wiring and row upsert in GenerateDailySnapshot
// are covered by the gated integration tests.

func activeTask(id int, title string, completion *int, resourceIds ...int) *Task {
	return &Task{
		ID:                  id,
		Title:               title,
		Status:              TaskStatusInProgress,
		Priority:            TaskPriorityHigh,
		CompletionPercent:   completion,
		AssignedResourceIds: IntList(resourceIds),
	}
}

func TestBuildDailySnapshot_CarriedEntriesWinOverActiveDuplicates(t *testing.T) {
	carried := TaskSummaryList{
		{ID: 1, Title: "Fix conveyor jam", CompletionPercent: utils.NewInt(40), Priority: TaskPriorityHigh},
		{ID: 2, Title: "Rewire panel B", CompletionPercent: utils.NewInt(80), Priority: TaskPriorityMedium},
	}
	active := []*Task{
		activeTask(1, "Fix conveyor jam", utils.NewInt(75)), // duplicate of carried #1
		activeTask(3, "Inspect crane", nil, 4, 5),
	}

	reportTasks, nextdayTasks := BuildDailySnapshot(carried, active)

	if len(reportTasks) != 3 {
		t.Fatalf("expected 3 report tasks, got %d", len(reportTasks))
	}
	// carried entries keep their position and their captured completion
	if reportTasks[0].ID != 1 || *reportTasks[0].CompletionPercent != 40 {
		t.Fatalf("carried entry overwritten: %+v", reportTasks[0])
	}
	if reportTasks[1].ID != 2 || *reportTasks[1].CompletionPercent != 80 {
		t.Fatalf("carried entry out of order: %+v", reportTasks[1])
	}
	// the non-duplicate active task is appended after the carried block
	if reportTasks[2].ID != 3 {
		t.Fatalf("expected active task 3 appended, got %+v", reportTasks[2])
	}

	if len(nextdayTasks) != 2 {
		t.Fatalf("expected 2 nextday tasks, got %d", len(nextdayTasks))
	}
	for _, forecast := range nextdayTasks {
		if forecast.CompletionPercent != nil {
			t.Fatalf("nextday entry %d must have completion nulled, got %d", forecast.ID, *forecast.CompletionPercent)
		}
	}
	if nextdayTasks[0].ID != 1 || nextdayTasks[1].ID != 3 {
		t.Fatalf("nextday tasks must mirror active tasks: %+v", nextdayTasks)
	}
}

func TestBuildDailySnapshot_EmptyCarryForward(t *testing.T) {
	active := []*Task{activeTask(7, "Calibrate sensors", nil)}

	reportTasks, nextdayTasks := BuildDailySnapshot(nil, active)

	if len(reportTasks) != 1 || reportTasks[0].ID != 7 {
		t.Fatalf("expected active task on report, got %+v", reportTasks)
	}
	// SummarizeTask defaults a nil completion to 0 on the report side
	if reportTasks[0].CompletionPercent == nil || *reportTasks[0].CompletionPercent != 0 {
		t.Fatalf("expected completion defaulted to 0, got %+v", reportTasks[0].CompletionPercent)
	}
	if len(nextdayTasks) != 1 || nextdayTasks[0].CompletionPercent != nil {
		t.Fatalf("unexpected nextday tasks: %+v", nextdayTasks)
	}
}

func TestBuildDailySnapshot_NoActiveTasks(t *testing.T) {
	carried := TaskSummaryList{{ID: 9, Title: "Leftover", CompletionPercent: utils.NewInt(10)}}

	reportTasks, nextdayTasks := BuildDailySnapshot(carried, nil)

	if len(reportTasks) != 1 || reportTasks[0].ID != 9 {
		t.Fatalf("expected carried entry kept, got %+v", reportTasks)
	}
	if len(nextdayTasks) != 0 {
		t.Fatalf("expected empty nextday forecast, got %+v", nextdayTasks)
	}
}

func TestSummarizeTask_Defaults(t *testing.T) {
	summary := SummarizeTask(&Task{ID: 11, Title: "Untriaged"})

	if summary.CompletionPercent == nil || *summary.CompletionPercent != 0 {
		t.Fatalf("expected completion defaulted to 0, got %+v", summary.CompletionPercent)
	}
	if summary.Priority != TaskPriorityMedium {
		t.Fatalf("expected priority defaulted to MEDIUM, got %s", summary.Priority)
	}
	if summary.AssignedResourceIds == nil || len(summary.AssignedResourceIds) != 0 {
		t.Fatalf("expected empty (non-nil) resource list, got %+v", summary.AssignedResourceIds)
	}
}
