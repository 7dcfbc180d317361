package service

import (
	"testing"
	"time"

	"github.com/studylog/internal/db"
)

func completionPhase(durationDays int) db.StudyPhase {
	return db.StudyPhase{
		DurationDays: durationDays,
		Status:       db.PhaseStatusInProgress,
		TaskTemplate: []db.TemplateItem{{Content: "任务"}},
	}
}

func completedTask(date time.Time) db.DailyTask {
	return db.DailyTask{TaskDate: normalizeDate(date), Completed: true}
}

func TestPhaseCompletionReason(t *testing.T) {
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)
	endYesterday := today.AddDate(0, 0, -1)
	endTomorrow := today.AddDate(0, 0, 1)

	t.Run("by status", func(t *testing.T) {
		phase := completionPhase(3)
		phase.Status = db.PhaseStatusCompleted
		if got := PhaseCompletionReason(phase, nil, today); got != CompletionByStatus {
			t.Fatalf("expected status reason, got %s", got)
		}
	})

	t.Run("by progress", func(t *testing.T) {
		phase := completionPhase(3)
		phase.Progress = 100
		if got := PhaseCompletionReason(phase, nil, today); got != CompletionByProgress {
			t.Fatalf("expected progress reason, got %s", got)
		}
	})

	t.Run("by counted days", func(t *testing.T) {
		phase := completionPhase(3)
		phase.CompletedDays = 3
		if got := PhaseCompletionReason(phase, nil, today); got != CompletionByCountedDays {
			t.Fatalf("expected counted_days reason, got %s", got)
		}
	})

	t.Run("by calendar", func(t *testing.T) {
		phase := completionPhase(3)
		phase.EndDate = &endYesterday
		if got := PhaseCompletionReason(phase, nil, today); got != CompletionByCalendar {
			t.Fatalf("expected calendar reason, got %s", got)
		}
	})

	t.Run("calendar not yet overrun", func(t *testing.T) {
		phase := completionPhase(3)
		phase.EndDate = &endTomorrow
		if got := PhaseCompletionReason(phase, nil, today); got != CompletionNone {
			t.Fatalf("expected none, got %s", got)
		}
	})

	t.Run("by tasks when dates cover the phase", func(t *testing.T) {
		phase := completionPhase(2)
		tasks := []db.DailyTask{
			completedTask(today.AddDate(0, 0, -1)),
			completedTask(today),
		}
		if got := PhaseCompletionReason(phase, tasks, today); got != CompletionByTasks {
			t.Fatalf("expected tasks reason, got %s", got)
		}
	})

	t.Run("all generated tasks done but days uncovered", func(t *testing.T) {
		// 任务按天惰性生成：第一天全勾不代表三天的阶段完成
		phase := completionPhase(3)
		tasks := []db.DailyTask{completedTask(today)}
		if got := PhaseCompletionReason(phase, tasks, today); got != CompletionNone {
			t.Fatalf("expected none, got %s", got)
		}
	})

	t.Run("incomplete task blocks tasks signal", func(t *testing.T) {
		phase := completionPhase(1)
		tasks := []db.DailyTask{completedTask(today), {TaskDate: normalizeDate(today)}}
		if got := PhaseCompletionReason(phase, tasks, today); got != CompletionNone {
			t.Fatalf("expected none, got %s", got)
		}
	})

	t.Run("no signals", func(t *testing.T) {
		phase := completionPhase(3)
		if got := PhaseCompletionReason(phase, nil, today); got != CompletionNone {
			t.Fatalf("expected none, got %s", got)
		}
	})
}

func TestCompletionReasonString(t *testing.T) {
	cases := map[CompletionReason]string{
		CompletionNone:          "none",
		CompletionByStatus:      "status",
		CompletionByProgress:    "progress",
		CompletionByCountedDays: "counted_days",
		CompletionByCalendar:    "calendar",
		CompletionByTasks:       "tasks",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
