package service

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/studylog/internal/db"
	"gorm.io/gorm"
)

// ErrTaskNotFound 在指定任务不存在时返回
var ErrTaskNotFound = errors.New("task not found")

// SyncResult 描述一次进度同步后的计划/阶段进度
type SyncResult struct {
	PhaseProgress int
	PlanProgress  int
	PhaseAdvanced bool
}

// ProgressSyncService 在任务完成状态变化后重算阶段/计划进度，
// 并在阶段完成时触发推进。进度值始终从库内任务快照重算得出；
// 引用的阶段被并发删除等异常会原样上抛给调用方。
type ProgressSyncService struct {
	db         *gorm.DB
	locks      *PlanLockRegistry
	generation *TaskGenerationService
	// 时钟可在测试中替换
	now func() time.Time
}

// NewProgressSyncService 构造 ProgressSyncService
func NewProgressSyncService(gdb *gorm.DB, locks *PlanLockRegistry, generation *TaskGenerationService) *ProgressSyncService {
	return &ProgressSyncService{db: gdb, locks: locks, generation: generation, now: time.Now}
}

// SyncAfterTaskCompletion 在单个任务勾选变化后同步进度并检查推进
func (s *ProgressSyncService) SyncAfterTaskCompletion(taskID uint) (*SyncResult, error) {
	var task db.DailyTask
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}

	unlock := s.locks.Acquire(task.PlanID)
	defer unlock()

	return s.syncLocked(task.PlanID, []uint{task.PhaseID}, true)
}

// SyncAfterBatchCompletion 对一批任务只做一次共享阶段/计划的重算。
// 批量勾选（如"完成今天全部任务"）走这里，避免逐任务重复聚合。
func (s *ProgressSyncService) SyncAfterBatchCompletion(taskIDs []uint) (*SyncResult, error) {
	if len(taskIDs) == 0 {
		return nil, ErrTaskNotFound
	}

	var tasks []db.DailyTask
	if err := s.db.Where("id IN ?", taskIDs).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, ErrTaskNotFound
	}

	planID := tasks[0].PlanID
	phaseIDs := make([]uint, 0, 1)
	for _, task := range tasks {
		if !slices.Contains(phaseIDs, task.PhaseID) {
			phaseIDs = append(phaseIDs, task.PhaseID)
		}
	}

	unlock := s.locks.Acquire(planID)
	defer unlock()

	return s.syncLocked(planID, phaseIDs, true)
}

// ManualSync 仅重算计划下全部阶段与计划自身的进度，从不触发推进
func (s *ProgressSyncService) ManualSync(planID uint) (*SyncResult, error) {
	unlock := s.locks.Acquire(planID)
	defer unlock()

	var phases []db.StudyPhase
	if err := s.db.Where("plan_id = ?", planID).Order("phase_order ASC").Find(&phases).Error; err != nil {
		return nil, fmt.Errorf("load phases: %w", err)
	}

	phaseIDs := make([]uint, 0, len(phases))
	for _, phase := range phases {
		phaseIDs = append(phaseIDs, phase.ID)
	}

	return s.syncLocked(planID, phaseIDs, false)
}

func (s *ProgressSyncService) syncLocked(planID uint, phaseIDs []uint, allowAdvance bool) (*SyncResult, error) {
	phaseProgress := 0
	for i, phaseID := range phaseIDs {
		progress, err := s.recomputePhase(phaseID)
		if err != nil {
			return nil, err
		}
		// 单任务同步时 phaseIDs 只有一个元素，批量时取首个共享阶段
		if i == 0 {
			phaseProgress = progress
		}
	}

	planProgress, err := s.recomputePlan(planID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{PhaseProgress: phaseProgress, PlanProgress: planProgress}
	if !allowAdvance {
		return result, nil
	}

	advance, err := s.generation.advancePhaseLocked(planID, s.now())
	if err != nil {
		return nil, err
	}
	result.PhaseAdvanced = advance.Advanced

	// 推进会改写阶段/计划状态，刷新计划进度再返回
	if advance.Advanced || planProgress == 100 {
		if refreshed, err := s.recomputePlan(planID); err == nil {
			result.PlanProgress = refreshed
		}
	}

	return result, nil
}

// recomputePhase 根据任务快照重算阶段进度与完成天数。
// 已完成阶段永不回退（完成闭包）；尚无任务的阶段退化为按天数计算。
func (s *ProgressSyncService) recomputePhase(phaseID uint) (int, error) {
	var phase db.StudyPhase
	if err := s.db.First(&phase, phaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrPhaseNotFound
		}
		return 0, fmt.Errorf("load phase: %w", err)
	}

	if phase.Status == db.PhaseStatusCompleted {
		return 100, nil
	}

	var tasks []db.DailyTask
	if err := s.db.Where("phase_id = ?", phaseID).Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("list phase tasks: %w", err)
	}

	completedDays := countCompletedDays(tasks)
	progress := phaseProgressValue(phase, tasks, completedDays)

	if err := s.db.Model(&db.StudyPhase{}).Where("id = ?", phaseID).
		Updates(map[string]any{"progress": progress, "completed_days": completedDays}).Error; err != nil {
		return 0, fmt.Errorf("update phase progress: %w", err)
	}

	return progress, nil
}

// recomputePlan 重算计划进度（阶段进度按时长加权平均）及聚合统计
func (s *ProgressSyncService) recomputePlan(planID uint) (int, error) {
	var plan db.StudyPlan
	if err := s.db.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrPlanNotFound
		}
		return 0, fmt.Errorf("load plan: %w", err)
	}

	var phases []db.StudyPhase
	if err := s.db.Where("plan_id = ?", planID).Order("phase_order ASC").Find(&phases).Error; err != nil {
		return 0, fmt.Errorf("list plan phases: %w", err)
	}

	progress := planProgressValue(phases)

	completedDays := 0
	for _, phase := range phases {
		completedDays += phase.CompletedDays
	}

	var tasks []db.DailyTask
	if err := s.db.Where("plan_id = ?", planID).Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("list plan tasks: %w", err)
	}

	updates := map[string]any{
		"progress":                progress,
		"completed_days":          completedDays,
		"streak_days":             streakDays(tasks),
		"total_study_time_millis": totalStudyTimeMillis(tasks),
	}
	if err := s.db.Model(&db.StudyPlan{}).Where("id = ?", planID).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("update plan progress: %w", err)
	}

	return progress, nil
}

// phaseProgressValue 以整个阶段的预期任务量为分母计算进度：
// 预期任务数 = 阶段天数 × 模板条数。只用已生成任务作分母会让
// 第一天全勾直接到 100%，提前吞掉后面的天数。
func phaseProgressValue(phase db.StudyPhase, tasks []db.DailyTask, completedDays int) int {
	templateSize := len(phase.TaskTemplate)
	if len(tasks) > 0 && templateSize > 0 && phase.DurationDays > 0 {
		expected := phase.DurationDays * templateSize
		completed := 0
		for _, task := range tasks {
			if task.IsComplete() {
				completed++
			}
		}
		if completed > expected {
			completed = expected
		}
		return roundPercent(completed, expected)
	}

	if phase.DurationDays > 0 {
		return roundPercent(completedDays, phase.DurationDays)
	}
	return 0
}

// planProgressValue 计算阶段进度按 durationDays 加权的平均值
func planProgressValue(phases []db.StudyPhase) int {
	totalDays := 0
	weighted := 0
	for _, phase := range phases {
		totalDays += phase.DurationDays
		weighted += phase.Progress * phase.DurationDays
	}
	if totalDays == 0 {
		return 0
	}
	return int(math.Round(float64(weighted) / float64(totalDays)))
}

// countCompletedDays 统计所有任务都已完成的日历日数量
func countCompletedDays(tasks []db.DailyTask) int {
	type dayState struct {
		total int
		done  int
	}
	days := make(map[string]*dayState)
	for _, task := range tasks {
		key := task.TaskDate.Format(dateFormat)
		state, ok := days[key]
		if !ok {
			state = &dayState{}
			days[key] = state
		}
		state.total++
		if task.IsComplete() {
			state.done++
		}
	}

	completed := 0
	for _, state := range days {
		if state.total > 0 && state.done == state.total {
			completed++
		}
	}
	return completed
}

// streakDays 计算以最近一个全完成日为终点的连续完成天数
func streakDays(tasks []db.DailyTask) int {
	type dayState struct {
		total int
		done  int
	}
	days := make(map[time.Time]*dayState)
	for _, task := range tasks {
		key := normalizeDate(task.TaskDate)
		state, ok := days[key]
		if !ok {
			state = &dayState{}
			days[key] = state
		}
		state.total++
		if task.IsComplete() {
			state.done++
		}
	}

	var completedDates []time.Time
	for day, state := range days {
		if state.done == state.total {
			completedDates = append(completedDates, day)
		}
	}
	if len(completedDates) == 0 {
		return 0
	}

	slices.SortFunc(completedDates, func(a, b time.Time) int {
		return a.Compare(b)
	})

	streak := 1
	for i := len(completedDates) - 1; i > 0; i-- {
		delta := int(completedDates[i].Sub(completedDates[i-1]).Hours() / 24)
		if delta != 1 {
			break
		}
		streak++
	}
	return streak
}

// totalStudyTimeMillis 累计已完成任务的学习时长，
// 未记录实际用时的任务按预估时长计入
func totalStudyTimeMillis(tasks []db.DailyTask) int64 {
	var total int64
	for _, task := range tasks {
		if !task.IsComplete() {
			continue
		}
		minutes := task.ActualMinutes
		if minutes <= 0 {
			minutes = task.EstimatedMinutes
		}
		total += int64(minutes) * 60_000
	}
	return total
}

func roundPercent(numerator, denominator int) int {
	if denominator <= 0 {
		return 0
	}
	value := int(math.Round(float64(numerator) * 100 / float64(denominator)))
	if value > 100 {
		value = 100
	}
	return value
}
