package db

import (
	"gorm.io/gorm"
)

// 计划与阶段的状态常量，持久化为小写字符串
const (
	PlanStatusNotStarted = "not_started"
	PlanStatusInProgress = "in_progress"
	PlanStatusCompleted  = "completed"
	PlanStatusPaused     = "paused"
)

// StudyPlan 定义了学习计划模型
// Progress 为 0-100 的整数百分比，由进度同步服务重算
// StreakDays/TotalStudyTimeMillis 为聚合统计字段，同样由服务维护
// ShareToken 为只读分享链接的随机令牌，创建时生成
type StudyPlan struct {
	gorm.Model
	Title                string `gorm:"not null"`
	TotalDays            int
	DailyMinutes         int
	Status               string `gorm:"default:not_started;index"`
	Progress             int
	CompletedDays        int
	StreakDays           int
	TotalStudyTimeMillis int64
	ShareToken           string `gorm:"uniqueIndex"`

	Phases []StudyPhase `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
}
