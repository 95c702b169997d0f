/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、配置加载等初始化工作
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"fmt"
	"log"
	"os"
	"supplier-analysis-service/client"
	"supplier-analysis-service/service/cleanup"
	"supplier-analysis-service/service/config"
	"supplier-analysis-service/service/database"
	"supplier-analysis-service/service/distributed_lock"
	"supplier-analysis-service/service/event"
	"supplier-analysis-service/service/mapping"
	"supplier-analysis-service/service/oracle"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                    *gorm.DB
	GlobalEventService    *event.EventService
	GlobalConfigService   *config.ConfigService
	GlobalSessionService  *mapping.ImportSessionService
	GlobalCleanupService  *cleanup.SessionCleanupService
	GlobalResultListener  *oracle.ResultListener
	GlobalIngestionClient *client.IngestionClient
	GlobalOracleClient    *client.ProfilingOracleClient
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	GlobalConfigService = config.NewConfigService(DB)
	// 事件服务负责会话变更触发器与SSE推送
	GlobalEventService = event.NewEventService(DB)

	GlobalIngestionClient = client.NewIngestionClient()
	GlobalOracleClient = client.NewProfilingOracleClient()

	// 提交互斥锁：Redis不可用时退化为单实例模式（无跨实例互斥）
	var applyLock mapping.ApplyLock
	if redisLock, err := distributed_lock.NewRedisLock(); err != nil {
		log.Printf("Redis分布式锁初始化失败，退化为单实例模式: %v", err)
	} else {
		applyLock = redisLock
	}

	GlobalSessionService = mapping.NewImportSessionService(DB, GlobalIngestionClient, GlobalOracleClient, applyLock)

	// 恢复重启前处于applying状态的会话
	if err := GlobalSessionService.RestoreSessions(); err != nil {
		log.Printf("恢复会话状态失败: %v", err)
	}

	// 启动画像结果监听器
	GlobalResultListener = oracle.NewResultListener(GlobalSessionService, GlobalConfigService)
	GlobalResultListener.Start()

	// 启动会话清理定时任务
	GlobalCleanupService = cleanup.NewSessionCleanupService(DB, GlobalConfigService)
	if err := GlobalCleanupService.StartScheduledCleanup(); err != nil {
		log.Printf("启动会话清理任务失败: %v", err)
	}

	log.Println("服务初始化完成")
}
