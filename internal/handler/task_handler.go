package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studylog/internal/db"
	"github.com/studylog/internal/service"
)

// GetDailyTasks 返回 (计划, 日期) 的任务，首次访问时惰性生成。
// 幂等：已生成过的日期原样返回既有任务，newly_generated 为 false。
func (a *API) GetDailyTasks(c *gin.Context) {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	date, ok := parseDateQuery(c, "date")
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}

	result, err := a.generation.EnsureTasksExist(planID, date)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":            date.Format(dateFormat),
		"tasks":           serializeTasks(result.Tasks),
		"newly_generated": result.NewlyGenerated,
	})
}

// AdvancePlanPhase 检查当前阶段并尝试推进到下一阶段
func (a *API) AdvancePlanPhase(c *gin.Context) {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	result, err := a.generation.AdvancePhase(planID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	payload := gin.H{
		"advanced":        result.Advanced,
		"generated_tasks": serializeTasks(result.GeneratedTasks),
	}
	if result.NewPhase != nil {
		payload["new_phase"] = phaseToPayload(*result.NewPhase)
	}
	c.JSON(http.StatusOK, payload)
}

// SyncPlanProgress 手动重算计划进度，不触发阶段推进
func (a *API) SyncPlanProgress(c *gin.Context) {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	result, err := a.progress.ManualSync(planID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResultPayload(result))
}

// ToggleTask 翻转任务完成状态并同步进度
func (a *API) ToggleTask(c *gin.Context) {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	task, err := a.tasks.Toggle(taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	result, err := a.progress.SyncAfterTaskCompletion(taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	payload := syncResultPayload(result)
	payload["task"] = serializeTask(*task)
	c.JSON(http.StatusOK, payload)
}

// AddTaskProgress 为 count 型任务累加进度并同步
func (a *API) AddTaskProgress(c *gin.Context) {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	var payload struct {
		Delta int `json:"delta"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if payload.Delta == 0 {
		payload.Delta = 1
	}

	task, err := a.tasks.AddProgress(taskID, payload.Delta)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	result, err := a.progress.SyncAfterTaskCompletion(taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	body := syncResultPayload(result)
	body["task"] = serializeTask(*task)
	c.JSON(http.StatusOK, body)
}

// RecordTaskTime 记录任务实际学习时长并刷新聚合统计
func (a *API) RecordTaskTime(c *gin.Context) {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	var payload struct {
		ActualMinutes int `json:"actual_minutes"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	task, err := a.tasks.RecordActualMinutes(taskID, payload.ActualMinutes)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	result, err := a.progress.ManualSync(task.PlanID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	body := syncResultPayload(result)
	body["task"] = serializeTask(*task)
	c.JSON(http.StatusOK, body)
}

// CompleteAllTasks 一键完成 (计划, 日期) 下全部任务并批量同步
func (a *API) CompleteAllTasks(c *gin.Context) {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	date, ok := parseDateQuery(c, "date")
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}

	changed, err := a.tasks.CompleteAllForDate(planID, date)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	if len(changed) == 0 {
		c.JSON(http.StatusOK, gin.H{"completed": 0})
		return
	}

	result, err := a.progress.SyncAfterBatchCompletion(changed)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	payload := syncResultPayload(result)
	payload["completed"] = len(changed)
	c.JSON(http.StatusOK, payload)
}

func syncResultPayload(result *service.SyncResult) gin.H {
	return gin.H{
		"phase_progress": result.PhaseProgress,
		"plan_progress":  result.PlanProgress,
		"phase_advanced": result.PhaseAdvanced,
	}
}

func serializeTasks(tasks []db.DailyTask) []gin.H {
	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, serializeTask(task))
	}
	return items
}

func serializeTask(task db.DailyTask) gin.H {
	item := gin.H{
		"id":                task.ID,
		"plan_id":           task.PlanID,
		"phase_id":          task.PhaseID,
		"date":              task.TaskDate.Format(dateFormat),
		"content":           task.TaskContent,
		"estimated_minutes": task.EstimatedMinutes,
		"actual_minutes":    task.ActualMinutes,
		"completed":         task.IsComplete(),
		"task_order":        task.TaskOrder,
		"action_type":       task.ActionType,
		"completion_type":   task.CompletionType,
		"completion_target": task.CompletionTarget,
		"current_progress":  task.CurrentProgress,
	}
	if task.CompletedAt != nil {
		item["completed_at"] = task.CompletedAt.Format(time.RFC3339)
	}
	return item
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		respondError(c, http.StatusNotFound, "计划不存在")
	case errors.Is(err, service.ErrPhaseNotFound):
		respondError(c, http.StatusNotFound, "阶段不存在")
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrNotCountTask):
		respondError(c, http.StatusBadRequest, "该任务不支持计数打卡")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
