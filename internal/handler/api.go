package handler

import (
	"github.com/studylog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	plans      *service.PlanService
	tasks      *service.TaskService
	generation *service.TaskGenerationService
	progress   *service.ProgressSyncService
}

// NewAPI constructs a handler set with shared services.
// 生成与同步服务共享同一把计划锁注册表，保证同计划写操作串行。
func NewAPI(gdb *gorm.DB) *API {
	locks := service.NewPlanLockRegistry()
	generation := service.NewTaskGenerationService(gdb, locks)

	return &API{
		db:         gdb,
		plans:      service.NewPlanService(gdb),
		tasks:      service.NewTaskService(gdb),
		generation: generation,
		progress:   service.NewProgressSyncService(gdb, locks, generation),
	}
}
