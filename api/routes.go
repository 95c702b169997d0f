/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/supplier_import_req.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"supplier-analysis-service/api/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController()
	r.Get("/sse/{user_name}", eventController.HandleSSE)

	// 事件管理
	r.Route("/events", func(r chi.Router) {
		r.Post("/send", eventController.SendEvent)
		r.Get("/connections", eventController.GetSSEConnectionList)
		r.Get("/history", eventController.GetEventHistoryList)
	})

	// 导入会话管理
	r.Route("/import-sessions", func(r chi.Router) {
		sessionController := controllers.NewImportSessionController()

		r.Get("/", sessionController.ListSessions)
		r.Post("/", sessionController.OpenSession)
		r.Get("/{id}", sessionController.GetSession)
		r.Delete("/{id}", sessionController.CancelSession)

		// 映射编辑
		r.Put("/{id}/mappings/{column}", sessionController.SetRole)
		r.Put("/{id}/case", sessionController.SetCase)

		// 派生不良率配置
		r.Put("/{id}/derived/defective-column", sessionController.SetDefectiveColumn)
		r.Put("/{id}/derived/denominator-column", sessionController.SetDenominatorColumn)
		r.Put("/{id}/derived/denominator-type", sessionController.SetDenominatorType)

		// 提交与复核
		r.Post("/{id}/apply", sessionController.Apply)
		r.Post("/{id}/review", sessionController.RequestReview)
	})

	// 元数据目录
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController()
		r.Get("/roles", metaController.GetRoles)
		r.Get("/analysis-cases", metaController.GetAnalysisCases)
		r.Get("/denominator-types", metaController.GetDenominatorTypes)
	})

	// 系统配置
	r.Route("/config", func(r chi.Router) {
		configController := controllers.NewConfigController()
		r.Get("/", configController.GetAllConfigs)
		r.Get("/{key}", configController.GetConfig)
		r.Put("/{key}", configController.UpdateConfig)
	})

	// Dashboard统计
	r.Route("/dashboard", func(r chi.Router) {
		dashboardController := controllers.NewDashboardController()
		r.Get("/overview", dashboardController.GetOverview)
		r.Get("/sessions/{id}/logs", dashboardController.GetSessionLogs)
	})
}
