package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	PhaseStatusNotStarted = "not_started"
	PhaseStatusInProgress = "in_progress"
	PhaseStatusCompleted  = "completed"
)

// TemplateItem 描述阶段任务模板中的一条
// CompletionType 支持 simple（勾选即完成）与 count（累计到目标值完成）
// 省略时由任务生成器回填默认值 simple/1
type TemplateItem struct {
	Content          string `json:"content"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	ActionType       string `json:"action_type"`
	CompletionType   string `json:"completion_type"`
	CompletionTarget int    `json:"completion_target"`
}

// StudyPhase 定义了学习计划中的阶段模型
// PhaseOrder 从 1 开始，计划内唯一，决定阶段的时间先后
// StartDate/EndDate 闭区间，仅在阶段首次激活时由日期分配器写入
// TaskTemplate 以 JSON 存储，生成每日任务时展开
type StudyPhase struct {
	gorm.Model
	PlanID        uint      `gorm:"index;index:idx_phase_order_unique,unique"`
	Plan          StudyPlan `gorm:"constraint:OnDelete:CASCADE"`
	PhaseOrder    int       `gorm:"index:idx_phase_order_unique,unique"`
	PhaseName     string
	Goal          string
	DurationDays  int
	TaskTemplate  []TemplateItem `gorm:"serializer:json"`
	CompletedDays int
	Progress      int
	Status        string `gorm:"default:not_started;index"`
	StartDate     *time.Time
	EndDate       *time.Time
}

// TableName 重写确保唯一索引作用到 plan_id + phase_order
func (StudyPhase) TableName() string {
	return "study_phases"
}
