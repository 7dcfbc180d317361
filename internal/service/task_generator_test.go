package service

import (
	"testing"
	"time"

	"github.com/studylog/internal/db"
)

func TestGenerateTasksFromTemplate(t *testing.T) {
	plan := db.StudyPlan{Status: db.PlanStatusInProgress}
	plan.ID = 7
	phase := db.StudyPhase{
		PlanID: 7,
		TaskTemplate: []db.TemplateItem{
			{Content: "背单词", EstimatedMinutes: 15, ActionType: "word_study", CompletionType: db.CompletionTypeCount, CompletionTarget: 20},
			{Content: "精读课文", EstimatedMinutes: 25, ActionType: "reading"},
		},
	}
	phase.ID = 3

	date := time.Date(2024, 1, 10, 14, 30, 0, 0, time.Local)
	tasks := GenerateTasks(plan, phase, date)

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	first := tasks[0]
	if first.PlanID != 7 || first.PhaseID != 3 {
		t.Fatalf("unexpected ownership: plan=%d phase=%d", first.PlanID, first.PhaseID)
	}
	// 时间部分被截断到当天零点
	if !first.TaskDate.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)) {
		t.Fatalf("expected normalized date, got %v", first.TaskDate)
	}
	if first.CompletionType != db.CompletionTypeCount || first.CompletionTarget != 20 {
		t.Fatalf("count template not inherited: %s/%d", first.CompletionType, first.CompletionTarget)
	}
	if first.CurrentProgress != 0 || first.Completed {
		t.Fatal("new tasks must start incomplete")
	}

	// 缺省完成方式回填 simple/1
	second := tasks[1]
	if second.CompletionType != db.CompletionTypeSimple || second.CompletionTarget != 1 {
		t.Fatalf("expected simple/1 defaults, got %s/%d", second.CompletionType, second.CompletionTarget)
	}
	if second.TaskOrder != 1 {
		t.Fatalf("expected task order to follow template index, got %d", second.TaskOrder)
	}
}

func TestGenerateTasksEmptyTemplate(t *testing.T) {
	plan := db.StudyPlan{Status: db.PlanStatusInProgress}
	phase := db.StudyPhase{}

	if tasks := GenerateTasks(plan, phase, time.Now()); len(tasks) != 0 {
		t.Fatalf("expected no tasks for empty template, got %d", len(tasks))
	}
}

func TestShouldGenerate(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{db.PlanStatusNotStarted, true},
		{db.PlanStatusInProgress, true},
		{db.PlanStatusPaused, false},
		{db.PlanStatusCompleted, false},
	}

	for _, tc := range cases {
		plan := db.StudyPlan{Status: tc.status}
		if got := ShouldGenerate(plan); got != tc.want {
			t.Fatalf("ShouldGenerate(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
