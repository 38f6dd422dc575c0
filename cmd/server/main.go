package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"oj/internal/api"
	"oj/internal/catalog"
	"oj/internal/config"
	"oj/internal/contest"
	"oj/internal/intake"
	"oj/internal/logging"
	"oj/internal/queue"
	"oj/internal/store"
)

func main() {
	flags, err := config.ParseFlags(flag.NewFlagSet("server", flag.ExitOnError), os.Args[1:])
	if err != nil {
		log.Fatalf("flag parse: %v", err)
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCloser, err := logging.Setup(cfg.LogDir, "server.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if flags.FlushData {
		if _, err := db.Exec(ctx, `TRUNCATE jobs, contests, users RESTART IDENTITY`); err != nil {
			log.Fatalf("failed to flush data: %v", err)
		}
		log.Printf("flushed persisted state")
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	redisClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()
	bus := queue.NewRedisBus(redisClient, cfg.QueueNamespace, queue.DefaultVisibilityTimeout)

	users := store.NewUserStore(db)
	contests := store.NewContestStore(db)
	jobs := store.NewJobStore(db)
	problems := store.NewProblemStore(db)

	if err := api.BootstrapAdmin(ctx, users, cfg.InitialAdminPwPath); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	cat, err := catalog.Load(ctx, cfg, problems)
	if err != nil {
		log.Fatalf("failed to load problem catalog: %v", err)
	}

	intakeSvc := intake.NewService(cat, jobs, users, contests, bus)
	ranking := contest.NewEngine(jobs, users)

	srv := api.NewServer(api.ServerConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		CookieSecure:      cfg.CookieSecure,
		AuthorizationMode: cfg.AuthorizationMode,
		SessionKey:        cfg.SessionKey,
		SandboxWorkRoot:   cfg.SandboxWorkRoot,
	}, users, contests, jobs, cat, intakeSvc, ranking, redisClient)
	router := api.NewRouter(srv)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.BindPort)
	log.Printf("starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
