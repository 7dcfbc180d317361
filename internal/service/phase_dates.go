package service

import (
	"fmt"
	"time"

	"github.com/studylog/internal/db"
	"gorm.io/gorm"
)

// PhaseDateAllocator 负责计算并持久化阶段的日期窗口。
// 每当某个阶段被激活（首次启动或推进）时调用，锚点之后的所有
// 阶段窗口随之顺延，用户晚开始几天时后续阶段整体滑动。
type PhaseDateAllocator struct {
	db *gorm.DB
}

// NewPhaseDateAllocator 构造 PhaseDateAllocator
func NewPhaseDateAllocator(gdb *gorm.DB) *PhaseDateAllocator {
	return &PhaseDateAllocator{db: gdb}
}

// AllocateFrom 以 anchor 为起点重算 fromPhase 及其后所有阶段的起止日期。
// 起止均为闭区间：start = anchor，end = anchor + (durationDays - 1)。
// 所有改动在一个事务内落库；入参 fromPhase 的窗口字段同步更新。
func (a *PhaseDateAllocator) AllocateFrom(planID uint, fromPhase *db.StudyPhase, anchor time.Time) error {
	if fromPhase == nil {
		return fmt.Errorf("allocate phase dates: phase is nil")
	}

	start := normalizeDate(anchor)

	err := a.db.Transaction(func(tx *gorm.DB) error {
		end := phaseWindowEnd(start, fromPhase.DurationDays)
		fromPhase.StartDate = &start
		fromPhase.EndDate = &end

		if err := tx.Model(&db.StudyPhase{}).Where("id = ?", fromPhase.ID).
			Updates(map[string]any{"start_date": start, "end_date": end}).Error; err != nil {
			return err
		}

		var followers []db.StudyPhase
		if err := tx.Where("plan_id = ? AND phase_order > ?", planID, fromPhase.PhaseOrder).
			Order("phase_order ASC").
			Find(&followers).Error; err != nil {
			return err
		}

		prevEnd := end
		for i := range followers {
			nextStart := prevEnd.AddDate(0, 0, 1)
			nextEnd := phaseWindowEnd(nextStart, followers[i].DurationDays)

			if err := tx.Model(&db.StudyPhase{}).Where("id = ?", followers[i].ID).
				Updates(map[string]any{"start_date": nextStart, "end_date": nextEnd}).Error; err != nil {
				return err
			}

			prevEnd = nextEnd
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("allocate phase dates: %w", err)
	}

	return nil
}

func phaseWindowEnd(start time.Time, durationDays int) time.Time {
	if durationDays < 1 {
		durationDays = 1
	}
	return start.AddDate(0, 0, durationDays-1)
}
