package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/studylog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("studylog_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/login", handler.Login)
		auth.POST("/logout", handler.Logout)
	}

	// 只读分享页，无需登录
	r.GET("/s/:token", api.GetSharedPlan)

	// 需要认证的 API 路由
	apiGroup := r.Group("/api")
	apiGroup.Use(handler.AuthRequired())
	{
		apiGroup.POST("/plans", api.CreatePlan)
		apiGroup.GET("/plans", api.ListPlans)
		apiGroup.GET("/plans/:id", api.GetPlan)
		apiGroup.PUT("/plans/:id", api.UpdatePlan)
		apiGroup.DELETE("/plans/:id", api.DeletePlan)
		apiGroup.POST("/plans/:id/pause", api.PausePlan)
		apiGroup.POST("/plans/:id/resume", api.ResumePlan)

		apiGroup.GET("/plans/:id/tasks", api.GetDailyTasks)
		apiGroup.POST("/plans/:id/tasks/complete-all", api.CompleteAllTasks)
		apiGroup.POST("/plans/:id/advance", api.AdvancePlanPhase)
		apiGroup.POST("/plans/:id/sync", api.SyncPlanProgress)

		apiGroup.POST("/tasks/:id/toggle", api.ToggleTask)
		apiGroup.POST("/tasks/:id/progress", api.AddTaskProgress)
		apiGroup.POST("/tasks/:id/time", api.RecordTaskTime)
	}

	return r
}
