package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/studylog/internal/db"
	"gorm.io/gorm"
)

// ErrNotCountTask 在对 simple 任务调用计数接口时返回
var ErrNotCountTask = errors.New("task is not count based")

// TaskService 负责单条任务的查询与完成状态变更。
// 进度聚合不在这里发生：handler 在变更后调用 ProgressSyncService。
type TaskService struct {
	db *gorm.DB
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb}
}

// ListForDate 返回 (计划, 日期) 下的任务，按 TaskOrder 排序
func (s *TaskService) ListForDate(planID uint, date time.Time) ([]db.DailyTask, error) {
	var tasks []db.DailyTask
	day := normalizeDate(date)
	if err := s.db.Where("plan_id = ? AND task_date = ?", planID, day).
		Order("task_order ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Get 根据 ID 获取任务
func (s *TaskService) Get(id uint) (*db.DailyTask, error) {
	var task db.DailyTask
	if err := s.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// Toggle 翻转任务完成状态。
// count 型任务作为快捷方式整体置满/清零计数。
func (s *TaskService) Toggle(id uint) (*db.DailyTask, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if task.IsComplete() {
		task.Completed = false
		task.CompletedAt = nil
		task.CurrentProgress = 0
	} else {
		now := time.Now()
		task.Completed = true
		task.CompletedAt = &now
		if task.CompletionType == db.CompletionTypeCount {
			task.CurrentProgress = task.CompletionTarget
		}
	}

	if err := s.save(task); err != nil {
		return nil, err
	}
	return task, nil
}

// AddProgress 为 count 型任务累加进度，达到目标即完成。
// delta 可为负，进度被限制在 [0, completionTarget] 内。
func (s *TaskService) AddProgress(id uint, delta int) (*db.DailyTask, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if task.CompletionType != db.CompletionTypeCount {
		return nil, ErrNotCountTask
	}

	progress := task.CurrentProgress + delta
	if progress < 0 {
		progress = 0
	}
	if progress > task.CompletionTarget {
		progress = task.CompletionTarget
	}
	task.CurrentProgress = progress

	if progress >= task.CompletionTarget {
		if !task.Completed {
			now := time.Now()
			task.Completed = true
			task.CompletedAt = &now
		}
	} else {
		task.Completed = false
		task.CompletedAt = nil
	}

	if err := s.save(task); err != nil {
		return nil, err
	}
	return task, nil
}

// RecordActualMinutes 记录任务的实际学习时长
func (s *TaskService) RecordActualMinutes(id uint, minutes int) (*db.DailyTask, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if minutes < 0 {
		minutes = 0
	}
	task.ActualMinutes = minutes

	if err := s.save(task); err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteAllForDate 将 (计划, 日期) 下所有未完成任务置为完成，
// 返回发生变更的任务 ID 供批量进度同步使用
func (s *TaskService) CompleteAllForDate(planID uint, date time.Time) ([]uint, error) {
	tasks, err := s.ListForDate(planID, date)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	changed := make([]uint, 0, len(tasks))
	for i := range tasks {
		if tasks[i].IsComplete() {
			continue
		}

		tasks[i].Completed = true
		tasks[i].CompletedAt = &now
		if tasks[i].CompletionType == db.CompletionTypeCount {
			tasks[i].CurrentProgress = tasks[i].CompletionTarget
		}

		if err := s.save(&tasks[i]); err != nil {
			return nil, err
		}
		changed = append(changed, tasks[i].ID)
	}

	return changed, nil
}

func (s *TaskService) save(task *db.DailyTask) error {
	if err := s.db.Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}
