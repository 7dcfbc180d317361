package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studylog/internal/db"
	"github.com/studylog/internal/service"
)

type templateItemPayload struct {
	Content          string `json:"content"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	ActionType       string `json:"action_type"`
	CompletionType   string `json:"completion_type"`
	CompletionTarget int    `json:"completion_target"`
}

type phasePayload struct {
	PhaseName    string                `json:"phase_name"`
	Goal         string                `json:"goal"`
	DurationDays int                   `json:"duration_days"`
	TaskTemplate []templateItemPayload `json:"task_template"`
}

type planPayload struct {
	Title        string         `json:"title"`
	DailyMinutes int            `json:"daily_minutes"`
	Phases       []phasePayload `json:"phases"`
}

// CreatePlan 创建计划及其阶段
func (a *API) CreatePlan(c *gin.Context) {
	var payload planPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	phases := make([]service.PhaseInput, 0, len(payload.Phases))
	for _, phase := range payload.Phases {
		template := make([]db.TemplateItem, 0, len(phase.TaskTemplate))
		for _, item := range phase.TaskTemplate {
			template = append(template, db.TemplateItem{
				Content:          item.Content,
				EstimatedMinutes: item.EstimatedMinutes,
				ActionType:       item.ActionType,
				CompletionType:   item.CompletionType,
				CompletionTarget: item.CompletionTarget,
			})
		}
		phases = append(phases, service.PhaseInput{
			PhaseName:    phase.PhaseName,
			Goal:         phase.Goal,
			DurationDays: phase.DurationDays,
			TaskTemplate: template,
		})
	}

	plan, err := a.plans.Create(service.PlanInput{
		Title:        payload.Title,
		DailyMinutes: payload.DailyMinutes,
	}, phases)
	if err != nil {
		handlePlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": planToPayload(*plan, true)})
}

// ListPlans 返回计划列表
func (a *API) ListPlans(c *gin.Context) {
	plans, err := a.plans.List(service.PlanFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取计划列表失败")
		return
	}

	items := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		items = append(items, planToPayload(plan, false))
	}
	c.JSON(http.StatusOK, gin.H{"plans": items})
}

// GetPlan 返回计划详情及其有序阶段
func (a *API) GetPlan(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	plan, err := a.plans.Get(id)
	if err != nil {
		handlePlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": planToPayload(*plan, true)})
}

// UpdatePlan 更新计划标题与每日学习时长
func (a *API) UpdatePlan(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	var payload planPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	plan, err := a.plans.Update(id, service.PlanInput{
		Title:        payload.Title,
		DailyMinutes: payload.DailyMinutes,
	})
	if err != nil {
		handlePlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": planToPayload(*plan, false)})
}

// DeletePlan 删除计划，阶段与任务级联删除
func (a *API) DeletePlan(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	if err := a.plans.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除计划失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// PausePlan 暂停计划，暂停后不再生成新任务
func (a *API) PausePlan(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	plan, err := a.plans.Pause(id)
	if err != nil {
		handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": planToPayload(*plan, false)})
}

// ResumePlan 恢复已暂停的计划
func (a *API) ResumePlan(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	plan, err := a.plans.Resume(id)
	if err != nil {
		handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": planToPayload(*plan, false)})
}

// GetSharedPlan 通过分享令牌返回只读的计划进度摘要
func (a *API) GetSharedPlan(c *gin.Context) {
	plan, err := a.plans.GetByShareToken(c.Param("token"))
	if err != nil {
		handlePlanError(c, err)
		return
	}

	phases := make([]gin.H, 0, len(plan.Phases))
	for _, phase := range plan.Phases {
		phases = append(phases, gin.H{
			"phase_name": phase.PhaseName,
			"progress":   phase.Progress,
			"status":     phase.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"title":          plan.Title,
		"status":         plan.Status,
		"progress":       plan.Progress,
		"completed_days": plan.CompletedDays,
		"streak_days":    plan.StreakDays,
		"phases":         phases,
	})
}

func planToPayload(plan db.StudyPlan, withPhases bool) gin.H {
	item := gin.H{
		"id":                      plan.ID,
		"title":                   plan.Title,
		"total_days":              plan.TotalDays,
		"daily_minutes":           plan.DailyMinutes,
		"status":                  plan.Status,
		"progress":                plan.Progress,
		"completed_days":          plan.CompletedDays,
		"streak_days":             plan.StreakDays,
		"total_study_time_millis": plan.TotalStudyTimeMillis,
		"share_token":             plan.ShareToken,
		"created_at":              plan.CreatedAt,
	}

	if withPhases {
		phases := make([]gin.H, 0, len(plan.Phases))
		for _, phase := range plan.Phases {
			phases = append(phases, phaseToPayload(phase))
		}
		item["phases"] = phases
	}

	return item
}

func phaseToPayload(phase db.StudyPhase) gin.H {
	item := gin.H{
		"id":             phase.ID,
		"plan_id":        phase.PlanID,
		"phase_order":    phase.PhaseOrder,
		"phase_name":     phase.PhaseName,
		"goal":           phase.Goal,
		"goal_html":      service.RenderGoalHTML(phase.Goal),
		"duration_days":  phase.DurationDays,
		"completed_days": phase.CompletedDays,
		"progress":       phase.Progress,
		"status":         phase.Status,
	}

	if phase.StartDate != nil {
		item["start_date"] = phase.StartDate.Format(dateFormat)
	}
	if phase.EndDate != nil {
		item["end_date"] = phase.EndDate.Format(dateFormat)
	}

	return item
}

func handlePlanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		respondError(c, http.StatusNotFound, "计划不存在")
	case errors.Is(err, service.ErrInvalidPlanInput):
		respondError(c, http.StatusBadRequest, "计划配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
