package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/studylog/internal/config"
	"github.com/studylog/internal/db"
	"github.com/studylog/internal/service"
)

// 演示数据生成器：创建默认用户和一个三阶段的示例学习计划
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	if err := db.EnsureUser("admin", "admin123"); err != nil {
		log.Fatal("创建默认用户失败:", err)
	}

	plans := service.NewPlanService(db.DB)

	existing, err := plans.List(service.PlanFilter{Search: "新概念英语"})
	if err != nil {
		log.Fatal("查询计划失败:", err)
	}
	if len(existing) > 0 {
		fmt.Println("示例计划已存在，无需初始化")
		return
	}

	plan, err := plans.Create(service.PlanInput{
		Title:        "新概念英语 30 天进阶",
		DailyMinutes: 45,
	}, []service.PhaseInput{
		{
			PhaseName:    "基础巩固",
			Goal:         "掌握 **核心词汇** 与基础句型",
			DurationDays: 10,
			TaskTemplate: []db.TemplateItem{
				{Content: "背诵今日单词列表", EstimatedMinutes: 15, ActionType: "word_study", CompletionType: db.CompletionTypeCount, CompletionTarget: 20},
				{Content: "精读一篇课文", EstimatedMinutes: 20, ActionType: "reading"},
				{Content: "跟读音频练习发音", EstimatedMinutes: 10, ActionType: "listening"},
			},
		},
		{
			PhaseName:    "强化训练",
			Goal:         "熟练运用常见语法结构",
			DurationDays: 12,
			TaskTemplate: []db.TemplateItem{
				{Content: "完成语法练习题", EstimatedMinutes: 25, ActionType: "exercise"},
				{Content: "写一段英文日记", EstimatedMinutes: 20, ActionType: "writing"},
			},
		},
		{
			PhaseName:    "综合冲刺",
			Goal:         "模拟测试查漏补缺",
			DurationDays: 8,
			TaskTemplate: []db.TemplateItem{
				{Content: "完成一套模拟测试", EstimatedMinutes: 40, ActionType: "exam"},
			},
		},
	})
	if err != nil {
		log.Fatal("创建示例计划失败:", err)
	}

	fmt.Printf("示例计划创建成功：id=%d 分享令牌=%s\n", plan.ID, plan.ShareToken)
}
