package db

import (
	"time"

	"gorm.io/gorm"
)

// 任务完成方式
const (
	CompletionTypeSimple = "simple"
	CompletionTypeCount  = "count"
)

// DailyTask 记录某个日历日的一条具体任务
// PlanID + TaskDate + TaskOrder 采用唯一索引：同一 (计划, 日期) 的任务
// 至多生成一次，并发重复生成时冲突行被忽略
// ActionType 为不透明标签，标识任务映射到哪个外部功能
type DailyTask struct {
	gorm.Model
	PlanID           uint       `gorm:"index;index:idx_task_date_unique,unique"`
	Plan             StudyPlan  `gorm:"constraint:OnDelete:CASCADE"`
	PhaseID          uint       `gorm:"index"`
	Phase            StudyPhase `gorm:"constraint:OnDelete:CASCADE"`
	TaskDate         time.Time  `gorm:"index;index:idx_task_date_unique,unique"`
	TaskContent      string
	EstimatedMinutes int
	ActualMinutes    int
	Completed        bool
	CompletedAt      *time.Time
	TaskOrder        int `gorm:"index:idx_task_date_unique,unique"`
	ActionType       string
	CompletionType   string `gorm:"default:simple"`
	CompletionTarget int    `gorm:"default:1"`
	CurrentProgress  int
}

// TableName 重写确保唯一索引作用到 plan_id + task_date + task_order
func (DailyTask) TableName() string {
	return "daily_tasks"
}

// IsComplete 统一两种完成方式的判定：count 型看累计进度，simple 型看布尔位
func (t DailyTask) IsComplete() bool {
	if t.CompletionType == CompletionTypeCount {
		return t.CurrentProgress >= t.CompletionTarget
	}
	return t.Completed
}
