package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/handler"
	"billexpress/internal/infrastructure/cache"
	"billexpress/internal/infrastructure/database"
	"billexpress/internal/infrastructure/logger"
	"billexpress/internal/infrastructure/mq"
	"billexpress/internal/job"
	"billexpress/internal/service"
	"billexpress/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "snowflake worker id")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}
	log := logger.New(&cfg.Log)

	if err := idgen.Init(*workerID); err != nil {
		log.WithError(err).Warn("worker id 无效，使用默认值")
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("初始化数据库失败")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.InitRedis(&cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("初始化 Redis 失败")
		}
		defer redisClient.Close()
	}

	mirror, err := cache.NewMirror(&cfg.Mirror, redisClient)
	if err != nil {
		log.WithError(err).Fatal("初始化账户镜像失败")
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		producer, err := mq.NewSyncProducer(&cfg.Kafka)
		if err != nil {
			log.WithError(err).Fatal("初始化 Kafka 失败")
		}
		publisher := mq.NewPublisher(producer)
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, publisher, cfg, log)
		go outboxSender.Start(ctx)
	} else {
		log.Warn("Kafka 未启用，账本事件保留在 outbox 表中")
	}

	if cfg.Business.SweepEnabled {
		reconciler := service.NewReconcileService(db, mirror, cfg, log)
		reconcileJob := job.NewReconcileJob(db, reconciler, redisClient, cfg, log)
		if err := reconcileJob.Start(ctx); err != nil {
			log.WithError(err).Fatal("启动对账任务失败")
		}
	}

	router := handler.SetupRouter(handler.NewHandler(db, mirror, cfg, log), log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("服务启动失败")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("服务关闭异常")
	}

	log.Info("服务已关闭")
}
