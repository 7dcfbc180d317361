package service

import (
	"time"

	"github.com/studylog/internal/db"
)

// CompletionReason 标记阶段被判定为完成的依据。
// 判定信号有意冗余：显式状态、累计进度、完成天数、日历超期、
// 任务全勾任一成立即完成，单个信号失真不会卡住推进。
type CompletionReason int

const (
	// CompletionNone 表示阶段尚未完成
	CompletionNone CompletionReason = iota
	// CompletionByStatus 阶段状态已被标记为 completed
	CompletionByStatus
	// CompletionByProgress 阶段进度达到 100
	CompletionByProgress
	// CompletionByCountedDays 完成天数达到阶段时长
	CompletionByCountedDays
	// CompletionByCalendar 今天已越过阶段结束日期
	CompletionByCalendar
	// CompletionByTasks 阶段名下所有任务均已完成
	CompletionByTasks
)

func (r CompletionReason) String() string {
	switch r {
	case CompletionByStatus:
		return "status"
	case CompletionByProgress:
		return "progress"
	case CompletionByCountedDays:
		return "counted_days"
	case CompletionByCalendar:
		return "calendar"
	case CompletionByTasks:
		return "tasks"
	default:
		return "none"
	}
}

// PhaseCompletionReason 按固定优先级逐一检查完成信号。
// tasks 为该阶段名下的全部任务快照。任务按天惰性生成，
// 因此 tasks 信号要求任务日期已覆盖阶段全部天数，
// 否则第一天全勾就会提前吞掉整个阶段。
func PhaseCompletionReason(phase db.StudyPhase, tasks []db.DailyTask, today time.Time) CompletionReason {
	if phase.Status == db.PhaseStatusCompleted {
		return CompletionByStatus
	}
	if phase.Progress >= 100 {
		return CompletionByProgress
	}
	if phase.DurationDays > 0 && phase.CompletedDays >= phase.DurationDays {
		return CompletionByCountedDays
	}
	if phase.EndDate != nil && normalizeDate(today).After(normalizeDate(*phase.EndDate)) {
		return CompletionByCalendar
	}
	if len(tasks) > 0 && distinctTaskDates(tasks) >= phase.DurationDays {
		allDone := true
		for _, task := range tasks {
			if !task.IsComplete() {
				allDone = false
				break
			}
		}
		if allDone {
			return CompletionByTasks
		}
	}
	return CompletionNone
}

func distinctTaskDates(tasks []db.DailyTask) int {
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		seen[task.TaskDate.Format(dateFormat)] = struct{}{}
	}
	return len(seen)
}
