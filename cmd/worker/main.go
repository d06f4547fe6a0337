package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/service/scan"
	"github.com/docuvault/docscan/pkg/logger"
	"github.com/docuvault/docscan/pkg/queue"
	"github.com/docuvault/docscan/pkg/worker"
)

func main() {
	cfgPath := os.Getenv("DOCSCAN_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Logging.Level),
		logger.WithEncoding(cfg.Logging.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.Queue.Enabled {
		log.Error("Queue is disabled in config; worker has nothing to consume")
		os.Exit(1)
	}

	// 创建扫描服务
	scanService, err := scan.GetService(log)
	if err != nil {
		log.Error("Failed to create scan service", logger.Error(err))
		os.Exit(1)
	}
	defer scanService.Close()

	// 任务状态写回 redis
	q, err := queue.NewAsynqQueue(&queue.Config{
		RedisAddr: cfg.Queue.RedisAddr,
		RedisDB:   cfg.Queue.RedisDB,
	})
	if err != nil {
		log.Error("Failed to connect to queue", logger.Error(err))
		os.Exit(1)
	}
	defer q.Close()

	// 创建 worker 配置
	workerCfg := &worker.Config{
		RedisAddr:   cfg.Queue.RedisAddr,
		RedisDB:     cfg.Queue.RedisDB,
		Concurrency: cfg.Queue.Concurrency,
		Queues: map[string]int{
			queue.QueueName: 1,
		},
	}

	// 创建 worker
	scanWorker, err := worker.NewScanWorker(workerCfg, scanService, q, log)
	if err != nil {
		log.Error("Failed to create scan worker", logger.Error(err))
		os.Exit(1)
	}

	// 创建上下文和取消函数
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 worker
	if err := scanWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	scanWorker.Stop()
	log.Info("Worker stopped")
}
