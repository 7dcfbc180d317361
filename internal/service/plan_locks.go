package service

import "sync"

// PlanLockRegistry 维护按计划 ID 划分的互斥锁。
// 任务生成与进度同步两个服务共享同一个注册表，对同一计划的
// 阶段/任务写操作由此串行化，避免重复生成竞态。
type PlanLockRegistry struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewPlanLockRegistry 构造空的锁注册表
func NewPlanLockRegistry() *PlanLockRegistry {
	return &PlanLockRegistry{locks: make(map[uint]*sync.Mutex)}
}

// Acquire 取得指定计划的锁并加锁，返回解锁函数。
// 锁按需创建且从不回收；单用户场景下计划数量有限。
func (r *PlanLockRegistry) Acquire(planID uint) func() {
	r.mu.Lock()
	lock, ok := r.locks[planID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[planID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
