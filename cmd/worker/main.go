package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"oj/internal/catalog"
	"oj/internal/config"
	"oj/internal/heartbeat"
	"oj/internal/logging"
	"oj/internal/queue"
	"oj/internal/sandbox"
	"oj/internal/store"
	"oj/internal/worker"
)

func main() {
	flags, err := config.ParseFlags(flag.NewFlagSet("worker", flag.ExitOnError), os.Args[1:])
	if err != nil {
		log.Fatalf("flag parse: %v", err)
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCloser, err := logging.Setup(cfg.LogDir, "worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()
	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	redisClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()
	bus := queue.NewRedisBus(redisClient, cfg.QueueNamespace, queue.DefaultVisibilityTimeout)

	jobs := store.NewJobStore(db)
	problems := store.NewProblemStore(db)
	cat, err := catalog.Load(ctx, cfg, problems)
	if err != nil {
		log.Fatalf("failed to load problem catalog: %v", err)
	}
	runner := sandbox.NewRunner(cfg.SandboxWorkRoot)
	pipeline := worker.NewPipeline(jobs, cfg, cat, runner)

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	workerID := heartbeat.NewWorkerID()
	hostname, _ := os.Hostname()
	hb := heartbeat.NewState(workerID, hostname, concurrency)
	go hb.Start(ctx, redisClient)

	log.Printf("worker started id=%s concurrency=%d queue=%s", workerID, concurrency, queue.JobQueueName)

	consumer := worker.NewConsumer(bus, pipeline, concurrency, hb)
	consumer.Run(ctx)
}
