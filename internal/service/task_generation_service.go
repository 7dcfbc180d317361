package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/studylog/internal/db"
	"github.com/studylog/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPlanNotFound 在指定计划不存在时返回
	ErrPlanNotFound = errors.New("plan not found")
	// ErrPhaseNotFound 在引用的阶段已不存在时返回
	ErrPhaseNotFound = errors.New("phase not found")
)

const (
	// 批量插入按块提交，整块失败时降级为逐行插入
	insertChunkSize = 100
	// 推进路径下任务生成的重试上限与固定间隔
	maxGenerateAttempts  = 3
	generateRetryBackoff = 200 * time.Millisecond
)

// TaskGenerationService 负责幂等的任务生成与阶段推进。
// 判断"任务是否已生成"的哨兵是 (计划, 日期) 下任意任务行的存在；
// 命中时原样返回，不产生任何副作用。
type TaskGenerationService struct {
	db        *gorm.DB
	locks     *PlanLockRegistry
	allocator *PhaseDateAllocator
	// 重试间隔与时钟可在测试中替换
	retryBackoff time.Duration
	now          func() time.Time
}

// EnsureResult 是 EnsureTasksExist 的返回值
type EnsureResult struct {
	Tasks          []db.DailyTask
	NewlyGenerated bool
}

// AdvanceResult 是 AdvancePhase 的返回值。
// 推进成功但首日任务生成重试耗尽时，Advanced 仍为 true、
// GeneratedTasks 为空：阶段切换本身已持久，任务留待下次补生成。
type AdvanceResult struct {
	Advanced       bool
	NewPhase       *db.StudyPhase
	GeneratedTasks []db.DailyTask
}

// NewTaskGenerationService 构造 TaskGenerationService
func NewTaskGenerationService(gdb *gorm.DB, locks *PlanLockRegistry) *TaskGenerationService {
	return &TaskGenerationService{
		db:           gdb,
		locks:        locks,
		allocator:    NewPhaseDateAllocator(gdb),
		retryBackoff: generateRetryBackoff,
		now:          time.Now,
	}
}

// EnsureTasksExist 确保 (计划, 日期) 的任务存在，可安全重复调用。
// 已暂停/已完成计划返回空结果；没有进行中阶段时尝试启动第一阶段。
func (s *TaskGenerationService) EnsureTasksExist(planID uint, date time.Time) (*EnsureResult, error) {
	unlock := s.locks.Acquire(planID)
	defer unlock()

	return s.ensureTasksExistLocked(planID, date)
}

func (s *TaskGenerationService) ensureTasksExistLocked(planID uint, date time.Time) (*EnsureResult, error) {
	day := normalizeDate(date)

	existing, err := s.tasksForDate(planID, day)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &EnsureResult{Tasks: existing, NewlyGenerated: false}, nil
	}

	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, err
	}
	if !ShouldGenerate(*plan) {
		return &EnsureResult{}, nil
	}

	phase, err := s.inProgressPhase(planID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		phase, err = s.startFirstPhase(plan, day)
		if err != nil {
			return nil, err
		}
		if phase == nil {
			return &EnsureResult{}, nil
		}
	}

	tasks := GenerateTasks(*plan, *phase, day)
	if len(tasks) == 0 {
		return &EnsureResult{}, nil
	}

	inserted, err := s.insertTasks(tasks)
	if err != nil {
		return nil, err
	}

	logger.Event("tasks_generated", map[string]any{
		"plan_id":  planID,
		"phase_id": phase.ID,
		"date":     day.Format(dateFormat),
		"count":    len(inserted),
	})

	return &EnsureResult{Tasks: inserted, NewlyGenerated: true}, nil
}

// AdvancePhase 检测当前阶段是否完成并推进到下一阶段。
// 当前阶段未完成时返回 Advanced=false，这不是错误；
// 越过最后一个阶段时计划收尾为 completed，同样返回 Advanced=false。
func (s *TaskGenerationService) AdvancePhase(planID uint) (*AdvanceResult, error) {
	unlock := s.locks.Acquire(planID)
	defer unlock()

	return s.advancePhaseLocked(planID, s.now())
}

func (s *TaskGenerationService) advancePhaseLocked(planID uint, now time.Time) (*AdvanceResult, error) {
	today := normalizeDate(now)

	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, err
	}
	if !ShouldGenerate(*plan) {
		return &AdvanceResult{}, nil
	}

	current, err := s.inProgressPhase(planID)
	if err != nil {
		return nil, err
	}

	if current == nil {
		first, err := s.startFirstPhase(plan, today)
		if err != nil {
			return nil, err
		}
		if first == nil {
			return &AdvanceResult{}, nil
		}

		tasks := s.generateWithRetry(*plan, first, today)
		return &AdvanceResult{Advanced: true, NewPhase: first, GeneratedTasks: tasks}, nil
	}

	phaseTasks, err := s.tasksForPhase(current.ID)
	if err != nil {
		return nil, err
	}

	reason := PhaseCompletionReason(*current, phaseTasks, today)
	if reason == CompletionNone {
		return &AdvanceResult{}, nil
	}

	current.Status = db.PhaseStatusCompleted
	current.Progress = 100
	if err := s.db.Model(&db.StudyPhase{}).Where("id = ?", current.ID).
		Updates(map[string]any{"status": db.PhaseStatusCompleted, "progress": 100}).Error; err != nil {
		return nil, fmt.Errorf("complete phase: %w", err)
	}

	logger.Event("phase_completed", map[string]any{
		"plan_id":  planID,
		"phase_id": current.ID,
		"order":    current.PhaseOrder,
		"reason":   reason.String(),
	})

	next, err := s.nextPhase(planID, current.PhaseOrder)
	if err != nil {
		return nil, err
	}

	if next == nil {
		if err := s.db.Model(&db.StudyPlan{}).Where("id = ?", planID).
			Updates(map[string]any{"status": db.PlanStatusCompleted, "progress": 100}).Error; err != nil {
			return nil, fmt.Errorf("complete plan: %w", err)
		}
		logger.Event("plan_completed", map[string]any{"plan_id": planID})
		return &AdvanceResult{}, nil
	}

	next.Status = db.PhaseStatusInProgress
	if err := s.db.Model(&db.StudyPhase{}).Where("id = ?", next.ID).
		Update("status", db.PhaseStatusInProgress).Error; err != nil {
		return nil, fmt.Errorf("activate phase: %w", err)
	}

	// 锚点取 today 与上一阶段结束次日的较晚者：当天提前完成时
	// 下一阶段从次日开始（窗口保持首尾相接），拖延多日则整体顺延
	anchor := today
	if current.EndDate != nil {
		if dayAfter := normalizeDate(*current.EndDate).AddDate(0, 0, 1); anchor.Before(dayAfter) {
			anchor = dayAfter
		}
	}

	if err := s.allocator.AllocateFrom(planID, next, anchor); err != nil {
		return nil, err
	}

	logger.Event("phase_advanced", map[string]any{
		"plan_id":  planID,
		"phase_id": next.ID,
		"order":    next.PhaseOrder,
		"anchor":   anchor.Format(dateFormat),
	})

	tasks := s.generateWithRetry(*plan, next, anchor)
	return &AdvanceResult{Advanced: true, NewPhase: next, GeneratedTasks: tasks}, nil
}

// generateWithRetry 为新激活的阶段生成当日任务，失败时重试。
// 重试耗尽不回滚阶段切换：记录日志后返回空集，
// 任务留待后续 EnsureTasksExist 调用补齐。
func (s *TaskGenerationService) generateWithRetry(plan db.StudyPlan, phase *db.StudyPhase, day time.Time) []db.DailyTask {
	tasks := GenerateTasks(plan, *phase, day)
	if len(tasks) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		inserted, err := s.insertTasks(tasks)
		if err == nil {
			return inserted
		}

		lastErr = err
		logger.Event("generate_retry", map[string]any{
			"plan_id":  plan.ID,
			"phase_id": phase.ID,
			"attempt":  attempt,
			"error":    err.Error(),
		})

		if attempt < maxGenerateAttempts {
			time.Sleep(s.retryBackoff)
		}
	}

	logger.Event("generate_retry_exhausted", map[string]any{
		"plan_id":  plan.ID,
		"phase_id": phase.ID,
		"error":    lastErr.Error(),
	})
	return nil
}

// insertTasks 分块批量插入；整批失败时降级为逐行插入，
// 尽量保留部分成功而不是整体丢弃。唯一索引冲突行被忽略。
func (s *TaskGenerationService) insertTasks(tasks []db.DailyTask) ([]db.DailyTask, error) {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_id"}, {Name: "task_date"}, {Name: "task_order"}},
		DoNothing: true,
	}

	batch := make([]db.DailyTask, len(tasks))
	copy(batch, tasks)

	if err := s.db.Clauses(onConflict).CreateInBatches(&batch, insertChunkSize).Error; err == nil {
		return batch, nil
	}

	inserted := make([]db.DailyTask, 0, len(tasks))
	var lastErr error
	for _, task := range tasks {
		row := task
		if err := s.db.Clauses(onConflict).Create(&row).Error; err != nil {
			lastErr = err
			continue
		}
		inserted = append(inserted, row)
	}

	if len(inserted) == 0 && lastErr != nil {
		return nil, fmt.Errorf("insert tasks: %w", lastErr)
	}
	return inserted, nil
}

// startFirstPhase 激活 1 号阶段：状态置为进行中并以 anchor 锚定日期窗口。
// 计划没有 1 号阶段时返回 (nil, nil)，由调用方视为空结果。
func (s *TaskGenerationService) startFirstPhase(plan *db.StudyPlan, anchor time.Time) (*db.StudyPhase, error) {
	var first db.StudyPhase
	if err := s.db.Where("plan_id = ? AND phase_order = 1", plan.ID).First(&first).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load first phase: %w", err)
	}

	if first.Status == db.PhaseStatusCompleted {
		return nil, nil
	}

	first.Status = db.PhaseStatusInProgress
	if err := s.db.Model(&db.StudyPhase{}).Where("id = ?", first.ID).
		Update("status", db.PhaseStatusInProgress).Error; err != nil {
		return nil, fmt.Errorf("start first phase: %w", err)
	}

	if err := s.allocator.AllocateFrom(plan.ID, &first, anchor); err != nil {
		return nil, err
	}

	if plan.Status == db.PlanStatusNotStarted {
		plan.Status = db.PlanStatusInProgress
		if err := s.db.Model(&db.StudyPlan{}).Where("id = ?", plan.ID).
			Update("status", db.PlanStatusInProgress).Error; err != nil {
			return nil, fmt.Errorf("start plan: %w", err)
		}
	}

	logger.Event("phase_started", map[string]any{
		"plan_id":  plan.ID,
		"phase_id": first.ID,
		"anchor":   normalizeDate(anchor).Format(dateFormat),
	})

	return &first, nil
}

func (s *TaskGenerationService) loadPlan(planID uint) (*db.StudyPlan, error) {
	var plan db.StudyPlan
	if err := s.db.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return &plan, nil
}

func (s *TaskGenerationService) inProgressPhase(planID uint) (*db.StudyPhase, error) {
	var phase db.StudyPhase
	if err := s.db.Where("plan_id = ? AND status = ?", planID, db.PhaseStatusInProgress).
		Order("phase_order ASC").First(&phase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load in-progress phase: %w", err)
	}
	return &phase, nil
}

func (s *TaskGenerationService) nextPhase(planID uint, afterOrder int) (*db.StudyPhase, error) {
	var phase db.StudyPhase
	if err := s.db.Where("plan_id = ? AND phase_order > ?", planID, afterOrder).
		Order("phase_order ASC").First(&phase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load next phase: %w", err)
	}
	return &phase, nil
}

func (s *TaskGenerationService) tasksForDate(planID uint, day time.Time) ([]db.DailyTask, error) {
	var tasks []db.DailyTask
	if err := s.db.Where("plan_id = ? AND task_date = ?", planID, day).
		Order("task_order ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks for date: %w", err)
	}
	return tasks, nil
}

func (s *TaskGenerationService) tasksForPhase(phaseID uint) ([]db.DailyTask, error) {
	var tasks []db.DailyTask
	if err := s.db.Where("phase_id = ?", phaseID).
		Order("task_date ASC, task_order ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks for phase: %w", err)
	}
	return tasks, nil
}
