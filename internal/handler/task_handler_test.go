package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studylog/internal/db"
)

func taskRouter(api *API) *gin.Engine {
	router := gin.New()
	router.POST("/api/plans", api.CreatePlan)
	router.GET("/api/plans/:id/tasks", api.GetDailyTasks)
	router.POST("/api/plans/:id/tasks/complete-all", api.CompleteAllTasks)
	router.POST("/api/plans/:id/advance", api.AdvancePlanPhase)
	router.POST("/api/plans/:id/sync", api.SyncPlanProgress)
	router.POST("/api/tasks/:id/toggle", api.ToggleTask)
	router.POST("/api/tasks/:id/progress", api.AddTaskProgress)
	router.POST("/api/tasks/:id/time", api.RecordTaskTime)
	return router
}

func createPlanViaAPI(t *testing.T, router *gin.Engine, payload gin.H) int {
	t.Helper()
	recorder := performJSON(t, router, http.MethodPost, "/api/plans", payload)
	if recorder.Code != http.StatusOK {
		t.Fatalf("failed to create plan: %d %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	return int(body["plan"].(map[string]any)["id"].(float64))
}

func todayParam() string {
	return time.Now().Format("2006-01-02")
}

func TestGetDailyTasksEndpointIsIdempotent(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())
	path := fmt.Sprintf("/api/plans/%d/tasks?date=%s", planID, todayParam())

	first := performJSON(t, router, http.MethodGet, path, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	firstBody := decodeBody(t, first)
	if firstBody["newly_generated"] != true {
		t.Fatal("expected first request to generate tasks")
	}
	firstTasks := firstBody["tasks"].([]any)
	if len(firstTasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(firstTasks))
	}

	second := performJSON(t, router, http.MethodGet, path, nil)
	secondBody := decodeBody(t, second)
	if secondBody["newly_generated"] != false {
		t.Fatal("expected second request to be a no-op")
	}
	secondTasks := secondBody["tasks"].([]any)
	if len(secondTasks) != len(firstTasks) {
		t.Fatalf("task count changed between requests: %d vs %d", len(secondTasks), len(firstTasks))
	}
	for i := range firstTasks {
		firstID := firstTasks[i].(map[string]any)["id"]
		secondID := secondTasks[i].(map[string]any)["id"]
		if firstID != secondID {
			t.Fatalf("task %d changed identity: %v vs %v", i, firstID, secondID)
		}
	}
}

func TestGetDailyTasksEndpointRejectsBadDate(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())

	recorder := performJSON(t, router, http.MethodGet, fmt.Sprintf("/api/plans/%d/tasks?date=not-a-date", planID), nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", recorder.Code)
	}

	recorder = performJSON(t, router, http.MethodGet, fmt.Sprintf("/api/plans/%d/tasks?date=%s", 9999, todayParam()), nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing plan, got %d", recorder.Code)
	}
}

func TestToggleTaskEndpointSyncsProgress(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())
	tasksBody := decodeBody(t, performJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/plans/%d/tasks?date=%s", planID, todayParam()), nil))
	taskID := int(tasksBody["tasks"].([]any)[0].(map[string]any)["id"].(float64))

	recorder := performJSON(t, router, http.MethodPost, fmt.Sprintf("/api/tasks/%d/toggle", taskID), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body := decodeBody(t, recorder)
	task := body["task"].(map[string]any)
	if task["completed"] != true {
		t.Fatalf("expected task completed, got %v", task)
	}
	// 第一阶段预期任务量 = 3 天 × 2 条，完成 1 条 → 17%
	if body["phase_progress"] != float64(17) {
		t.Fatalf("expected phase progress 17, got %v", body["phase_progress"])
	}
	if body["phase_advanced"] != false {
		t.Fatal("expected no phase advancement")
	}

	if recorder := performJSON(t, router, http.MethodPost, "/api/tasks/9999/toggle", nil); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", recorder.Code)
	}
}

func TestCompleteAllEndpoint(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())
	if recorder := performJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/plans/%d/tasks?date=%s", planID, todayParam()), nil); recorder.Code != http.StatusOK {
		t.Fatalf("failed to generate tasks: %d", recorder.Code)
	}

	recorder := performJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/plans/%d/tasks/complete-all?date=%s", planID, todayParam()), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body := decodeBody(t, recorder)
	if body["completed"] != float64(2) {
		t.Fatalf("expected 2 completed tasks, got %v", body["completed"])
	}
	// 3 天 × 2 条模板，完成今天 2 条 → 33%
	if body["phase_progress"] != float64(33) {
		t.Fatalf("expected phase progress 33, got %v", body["phase_progress"])
	}

	// 全部已完成时再次请求是无操作
	again := decodeBody(t, performJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/plans/%d/tasks/complete-all?date=%s", planID, todayParam()), nil))
	if again["completed"] != float64(0) {
		t.Fatalf("expected no-op second call, got %v", again["completed"])
	}
}

func TestAdvanceEndpointStartsFirstPhase(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())

	recorder := performJSON(t, router, http.MethodPost, fmt.Sprintf("/api/plans/%d/advance", planID), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body := decodeBody(t, recorder)
	if body["advanced"] != true {
		t.Fatalf("expected advancement, got %v", body)
	}
	newPhase, ok := body["new_phase"].(map[string]any)
	if !ok || newPhase["phase_order"] != float64(1) {
		t.Fatalf("expected first phase activated, got %v", body["new_phase"])
	}
	if newPhase["status"] != db.PhaseStatusInProgress {
		t.Fatalf("expected in_progress phase, got %v", newPhase["status"])
	}
	if generated := body["generated_tasks"].([]any); len(generated) != 2 {
		t.Fatalf("expected 2 generated tasks, got %d", len(generated))
	}
}

func TestSyncEndpointNeverAdvances(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())
	if recorder := performJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/plans/%d/tasks?date=%s", planID, todayParam()), nil); recorder.Code != http.StatusOK {
		t.Fatalf("failed to generate tasks: %d", recorder.Code)
	}

	recorder := performJSON(t, router, http.MethodPost, fmt.Sprintf("/api/plans/%d/sync", planID), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["phase_advanced"] != false {
		t.Fatal("manual sync must not advance phases")
	}
}

func TestAddTaskProgressEndpoint(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, gin.H{
		"title":         "打卡计划",
		"daily_minutes": 20,
		"phases": []gin.H{
			{
				"phase_name":    "打卡",
				"duration_days": 2,
				"task_template": []gin.H{
					{"content": "背 3 组单词", "estimated_minutes": 15, "action_type": "word_study",
						"completion_type": db.CompletionTypeCount, "completion_target": 3},
				},
			},
		},
	})

	tasksBody := decodeBody(t, performJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/plans/%d/tasks?date=%s", planID, todayParam()), nil))
	taskID := int(tasksBody["tasks"].([]any)[0].(map[string]any)["id"].(float64))

	// delta 缺省为 1
	body := decodeBody(t, performJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/tasks/%d/progress", taskID), gin.H{}))
	task := body["task"].(map[string]any)
	if task["current_progress"] != float64(1) || task["completed"] != false {
		t.Fatalf("expected progress 1/3 incomplete, got %v", task)
	}

	body = decodeBody(t, performJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/tasks/%d/progress", taskID), gin.H{"delta": 2}))
	task = body["task"].(map[string]any)
	if task["current_progress"] != float64(3) || task["completed"] != true {
		t.Fatalf("expected progress 3/3 complete, got %v", task)
	}
}

func TestRecordTaskTimeEndpoint(t *testing.T) {
	api, cleanup := setupHandlerTest(t)
	defer cleanup()
	router := taskRouter(api)

	planID := createPlanViaAPI(t, router, samplePlanPayload())
	tasksBody := decodeBody(t, performJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/plans/%d/tasks?date=%s", planID, todayParam()), nil))
	taskID := int(tasksBody["tasks"].([]any)[0].(map[string]any)["id"].(float64))

	body := decodeBody(t, performJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/tasks/%d/time", taskID), gin.H{"actual_minutes": 42}))
	task := body["task"].(map[string]any)
	if task["actual_minutes"] != float64(42) {
		t.Fatalf("expected actual minutes 42, got %v", task["actual_minutes"])
	}
}
