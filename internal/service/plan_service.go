package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/studylog/internal/db"
	"gorm.io/gorm"
)

// ErrInvalidPlanInput 在计划/阶段输入不合法时返回
var ErrInvalidPlanInput = errors.New("invalid plan input")

// PlanService 负责学习计划与阶段的增删改查。
// 推进与进度归引擎（TaskGenerationService/ProgressSyncService）管，
// 这里只做 CRUD 与暂停/恢复的状态切换。
type PlanService struct {
	db *gorm.DB
}

// PlanFilter 描述计划列表过滤条件
type PlanFilter struct {
	Status string
	Search string
}

// PhaseInput 定义创建计划时单个阶段的可配置字段
type PhaseInput struct {
	PhaseName    string
	Goal         string
	DurationDays int
	TaskTemplate []db.TemplateItem
}

// PlanInput 定义创建/更新计划时可配置字段
type PlanInput struct {
	Title        string
	DailyMinutes int
}

// NewPlanService 构造 PlanService
func NewPlanService(gdb *gorm.DB) *PlanService {
	return &PlanService{db: gdb}
}

// Create 新建计划及其全部阶段。
// 阶段顺序按入参下标从 1 起编号；TotalDays 为各阶段时长之和。
func (s *PlanService) Create(input PlanInput, phases []PhaseInput) (*db.StudyPlan, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidPlanInput)
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("%w: at least one phase is required", ErrInvalidPlanInput)
	}

	totalDays := 0
	for i, phase := range phases {
		if phase.DurationDays < 1 {
			return nil, fmt.Errorf("%w: phase %d duration must be positive", ErrInvalidPlanInput, i+1)
		}
		totalDays += phase.DurationDays
	}

	plan := db.StudyPlan{
		Title:        strings.TrimSpace(input.Title),
		TotalDays:    totalDays,
		DailyMinutes: input.DailyMinutes,
		Status:       db.PlanStatusNotStarted,
		ShareToken:   uuid.NewString(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}

		for i, input := range phases {
			phase := db.StudyPhase{
				PlanID:       plan.ID,
				PhaseOrder:   i + 1,
				PhaseName:    strings.TrimSpace(input.PhaseName),
				Goal:         input.Goal,
				DurationDays: input.DurationDays,
				TaskTemplate: input.TaskTemplate,
				Status:       db.PhaseStatusNotStarted,
			}
			if err := tx.Create(&phase).Error; err != nil {
				return err
			}
			plan.Phases = append(plan.Phases, phase)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	return &plan, nil
}

// Get 根据 ID 获取计划及其有序阶段
func (s *PlanService) Get(id uint) (*db.StudyPlan, error) {
	var plan db.StudyPlan
	err := s.db.Preload("Phases", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("phase_order ASC")
	}).First(&plan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

// GetByShareToken 根据分享令牌获取计划，用于只读分享页
func (s *PlanService) GetByShareToken(token string) (*db.StudyPlan, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrPlanNotFound
	}

	var plan db.StudyPlan
	err := s.db.Preload("Phases", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("phase_order ASC")
	}).Where("share_token = ?", token).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan by token: %w", err)
	}
	return &plan, nil
}

// List 返回计划集合，支持状态过滤与标题搜索
func (s *PlanService) List(filter PlanFilter) ([]db.StudyPlan, error) {
	var plans []db.StudyPlan

	query := s.db.Model(&db.StudyPlan{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ?", like)
	}

	if err := query.Order("created_at DESC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// Update 更新计划的标题与每日学习时长
func (s *PlanService) Update(id uint, input PlanInput) (*db.StudyPlan, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidPlanInput)
	}

	plan, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	plan.Title = strings.TrimSpace(input.Title)
	plan.DailyMinutes = input.DailyMinutes

	if err := s.db.Save(plan).Error; err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return plan, nil
}

// Pause 暂停计划。已完成的计划不可暂停，原样返回（无操作）。
func (s *PlanService) Pause(id uint) (*db.StudyPlan, error) {
	plan, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if plan.Status == db.PlanStatusCompleted || plan.Status == db.PlanStatusPaused {
		return plan, nil
	}

	plan.Status = db.PlanStatusPaused
	if err := s.db.Model(&db.StudyPlan{}).Where("id = ?", id).
		Update("status", db.PlanStatusPaused).Error; err != nil {
		return nil, fmt.Errorf("pause plan: %w", err)
	}
	return plan, nil
}

// Resume 恢复已暂停的计划：有进行中阶段则回到 in_progress，
// 否则视为尚未开始，等下一次任务生成时激活第一阶段。
func (s *PlanService) Resume(id uint) (*db.StudyPlan, error) {
	plan, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if plan.Status != db.PlanStatusPaused {
		return plan, nil
	}

	status := db.PlanStatusNotStarted
	for _, phase := range plan.Phases {
		if phase.Status != db.PhaseStatusNotStarted {
			status = db.PlanStatusInProgress
			break
		}
	}

	plan.Status = status
	if err := s.db.Model(&db.StudyPlan{}).Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("resume plan: %w", err)
	}
	return plan, nil
}

// Delete 物理删除计划，阶段与任务经外键级联一并删除。
// 软删除不会触发级联，会留下孤儿任务，这里直接硬删。
func (s *PlanService) Delete(id uint) error {
	if err := s.db.Unscoped().Delete(&db.StudyPlan{}, id).Error; err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
