package service

import (
	"time"

	"github.com/studylog/internal/db"
)

const dateFormat = "2006-01-02"

// normalizeDate 将时间截断到当天零点，任务与阶段日期统一以此存储
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ShouldGenerate 判断计划当前是否允许生成新任务。
// 已暂停或已完成的计划即使被查询也不再产生任务。
func ShouldGenerate(plan db.StudyPlan) bool {
	return plan.Status != db.PlanStatusPaused && plan.Status != db.PlanStatusCompleted
}

// GenerateTasks 将阶段的任务模板展开为指定日期的具体任务。
// 纯函数，不做任何 I/O；模板为空时返回空列表（阶段允许休息日）。
// 模板缺省的完成方式回填为 simple/1，TaskOrder 取模板下标保证稳定排序。
func GenerateTasks(plan db.StudyPlan, phase db.StudyPhase, date time.Time) []db.DailyTask {
	if len(phase.TaskTemplate) == 0 {
		return nil
	}

	day := normalizeDate(date)
	tasks := make([]db.DailyTask, 0, len(phase.TaskTemplate))

	for i, item := range phase.TaskTemplate {
		completionType := item.CompletionType
		if completionType == "" {
			completionType = db.CompletionTypeSimple
		}
		completionTarget := item.CompletionTarget
		if completionTarget < 1 {
			completionTarget = 1
		}

		tasks = append(tasks, db.DailyTask{
			PlanID:           plan.ID,
			PhaseID:          phase.ID,
			TaskDate:         day,
			TaskContent:      item.Content,
			EstimatedMinutes: item.EstimatedMinutes,
			TaskOrder:        i,
			ActionType:       item.ActionType,
			CompletionType:   completionType,
			CompletionTarget: completionTarget,
			CurrentProgress:  0,
			Completed:        false,
		})
	}

	return tasks
}
