package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jarcode/internal/common/cache"
	"jarcode/internal/common/db"
	"jarcode/internal/common/mq"
	"jarcode/internal/enrich"
	"jarcode/internal/judge"
	"jarcode/internal/judge/sandbox"
	"jarcode/internal/notify"
	problemrepo "jarcode/internal/problem/repository"
	submissionrepo "jarcode/internal/submission/repository"
	submissionservice "jarcode/internal/submission/service"
	"jarcode/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_worker.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	backend, err := sandbox.NewDockerBackend()
	if err != nil {
		logger.Error(context.Background(), "init docker backend failed", zap.Error(err))
		return
	}

	registry, err := judge.NewRegistry(backend, appCfg.Judge.Timeouts)
	if err != nil {
		logger.Error(context.Background(), "build judge registry failed", zap.Error(err))
		return
	}

	var evaluator enrich.Evaluator
	if appCfg.Enrich.Enabled {
		if appCfg.Enrich.APIKey == "" {
			logger.Error(context.Background(), "enrichment enabled but no api key configured")
			return
		}
		geminiEvaluator, err := enrich.NewGeminiEvaluator(context.Background(), appCfg.Enrich.APIKey)
		if err != nil {
			logger.Error(context.Background(), "init gemini evaluator failed", zap.Error(err))
			return
		}
		evaluator = geminiEvaluator
	}

	notifier, err := notify.NewRedisPublisher(redisCache.Client())
	if err != nil {
		logger.Error(context.Background(), "init notification publisher failed", zap.Error(err))
		return
	}

	problemRepo := problemrepo.NewProblemRepository(mysqlDB, redisCache)
	submissionRepo := submissionrepo.NewSubmissionRepository(mysqlDB)
	statusRepo, err := submissionrepo.NewStatusRepositoryWithTTL(redisCache, appCfg.StatusTTL)
	if err != nil {
		logger.Error(context.Background(), "init status repository failed", zap.Error(err))
		return
	}

	evaluationService, err := submissionservice.NewEvaluationService(
		mysqlDB, submissionRepo, problemRepo, notifier, evaluator, statusRepo,
		submissionservice.EvaluationServiceConfig{
			Registry:      registry,
			EnrichTimeout: appCfg.Enrich.Timeout,
		})
	if err != nil {
		logger.Error(context.Background(), "init evaluation service failed", zap.Error(err))
		return
	}

	consumer, err := submissionservice.NewEvaluateConsumer(submissionRepo, evaluationService)
	if err != nil {
		logger.Error(context.Background(), "init evaluate consumer failed", zap.Error(err))
		return
	}

	subscribeOpts := &mq.SubscribeOptions{
		ConsumerGroup:   appCfg.Worker.ConsumerGroup,
		Concurrency:     appCfg.Worker.Concurrency,
		MaxRetries:      appCfg.Worker.MaxRetries,
		RetryDelay:      appCfg.Worker.RetryDelay,
		DeadLetterTopic: appCfg.Worker.DeadLetterTopic,
	}
	if err := mqClient.SubscribeWithOptions(context.Background(), appCfg.Worker.Topic, consumer.HandleMessage, subscribeOpts); err != nil {
		logger.Error(context.Background(), "subscribe evaluate topic failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	logger.Info(context.Background(), "judge worker started",
		zap.String("topic", appCfg.Worker.Topic),
		zap.Int("concurrency", appCfg.Worker.Concurrency),
		zap.Strings("languages", registry.Languages()))

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	logger.Info(context.Background(), "shutdown signal received")
	_ = mqClient.Stop()
}
