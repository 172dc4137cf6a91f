package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/clipforge/clipforge-backend/internal/data/db"
	"github.com/clipforge/clipforge-backend/internal/data/repos"
	"github.com/clipforge/clipforge-backend/internal/handlers"
	"github.com/clipforge/clipforge-backend/internal/jobs/pipeline/clip_render"
	"github.com/clipforge/clipforge-backend/internal/jobs/pipeline/content_process"
	jobrt "github.com/clipforge/clipforge-backend/internal/jobs/runtime"
	jobworker "github.com/clipforge/clipforge-backend/internal/jobs/worker"
	"github.com/clipforge/clipforge-backend/internal/middleware"
	"github.com/clipforge/clipforge-backend/internal/pkg/envutil"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/platform/gcpspeech"
	"github.com/clipforge/clipforge-backend/internal/platform/gcs"
	"github.com/clipforge/clipforge-backend/internal/platform/openai"
	"github.com/clipforge/clipforge-backend/internal/platform/redisbus"
	"github.com/clipforge/clipforge-backend/internal/platform/replicate"
	"github.com/clipforge/clipforge-backend/internal/platform/social"
	"github.com/clipforge/clipforge-backend/internal/server"
	"github.com/clipforge/clipforge-backend/internal/services"
	"github.com/clipforge/clipforge-backend/internal/temporalx"
	"github.com/clipforge/clipforge-backend/internal/temporalx/temporalworker"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecret := envutil.Str("JWT_SECRET", "defaultsecret")
	cronSecret := envutil.Str("CRON_SECRET", "")

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	contentRepo := repos.NewContentRepo(thePG, log)
	clipRepo := repos.NewClipRepo(thePG, log)
	genRepo := repos.NewGeneratedContentRepo(thePG, log)
	postRepo := repos.NewScheduledPostRepo(thePG, log)
	socialRepo := repos.NewSocialAccountRepo(thePG, log)
	jobRepo := repos.NewJobRunRepo(thePG, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	bucketService, err := gcs.NewBucketService(log)
	if err != nil {
		log.Warn("Could not init BucketService", "error", err)
	}
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	speechProvider, err := gcpspeech.NewProvider(log)
	if err != nil {
		log.Warn("Could not init GCP Speech provider", "error", err)
	}
	replicateClient, err := replicate.NewClient(log)
	if err != nil {
		log.Error("Could not init Replicate client", "error", err)
		os.Exit(1)
	}
	eventBus, err := redisbus.NewBus(log)
	if err != nil {
		log.Warn("Could not init Redis event bus", "error", err)
	}
	socialRegistry := social.NewRegistry(log)

	// Temporal (optional; the DB-polling worker covers local runs)
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Warn("Could not init Temporal client", "error", err)
	}
	temporalCfg := temporalx.LoadConfig()

	// Services
	log.Info("Setting up Services from main...")
	plans, err := services.LoadPlanConfig()
	if err != nil {
		log.Warn("Could not load plan config, using defaults", "error", err)
	}
	notifier := services.NewJobNotifier(log, eventBus)
	jobService := services.NewJobService(thePG, log, jobRepo, notifier, temporalClient, temporalCfg.TaskQueue)
	quotaService := services.NewQuotaService(thePG, log, userRepo, contentRepo, plans)
	contentService := services.NewContentService(thePG, log, contentRepo, clipRepo, quotaService, jobService, bucketService)
	clipService := services.NewClipService(thePG, log, clipRepo, contentRepo, jobService)
	quoteCards, err := services.NewQuoteCardService(log)
	if err != nil {
		log.Warn("Could not init QuoteCardService", "error", err)
	}
	generatorService := services.NewGeneratorService(thePG, log, openaiClient, contentRepo, genRepo, quoteCards, bucketService)
	scheduleService := services.NewScheduleService(thePG, log, postRepo, genRepo)
	publishService := services.NewPublishService(thePG, log, postRepo, genRepo, socialRepo, socialRegistry)
	transcriber, err := services.NewTranscriber(log, openaiClient, speechProvider)
	if err != nil {
		log.Error("Could not init Transcriber", "error", err)
		os.Exit(1)
	}
	analyzer := services.NewAnalyzerService(log, openaiClient)

	// Job pipelines
	log.Info("Setting up job pipelines from main...")
	registry := jobrt.NewRegistry()
	mustRegister(log, registry, content_process.New(thePG, log, contentRepo, clipRepo, transcriber, analyzer))
	mustRegister(log, registry, clip_render.New(thePG, log, clipRepo, contentRepo, replicateClient))

	ctx := context.Background()
	if temporalClient != nil {
		runner, err := temporalworker.NewRunner(log, temporalClient, thePG, jobRepo, registry, notifier)
		if err != nil {
			log.Error("Could not init Temporal worker", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := runner.Start(ctx); err != nil {
				log.Error("Temporal worker stopped", "error", err)
			}
		}()
	} else {
		log.Info("Temporal not configured, starting DB-polling worker")
		jobworker.NewWorker(thePG, log, jobRepo, registry, notifier).Start(ctx)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	contentHandler := handlers.NewContentHandler(contentService)
	clipHandler := handlers.NewClipHandler(clipService)
	generateHandler := handlers.NewGenerateHandler(generatorService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)
	cronHandler := handlers.NewCronHandler(publishService, quotaService)
	usageHandler := handlers.NewUsageHandler(quotaService)
	jobHandler := handlers.NewJobHandler(jobService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecret)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:  authMiddleware,
		CronSecret:      cronSecret,
		ContentHandler:  contentHandler,
		ClipHandler:     clipHandler,
		GenerateHandler: generateHandler,
		ScheduleHandler: scheduleHandler,
		CronHandler:     cronHandler,
		UsageHandler:    usageHandler,
		JobHandler:      jobHandler,
	})

	port := envutil.Str("PORT", "8080")
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}

func mustRegister(log *logger.Logger, registry *jobrt.Registry, h jobrt.Handler) {
	if err := registry.Register(h); err != nil {
		log.Error("Could not register job handler", "type", h.Type(), "error", err)
		os.Exit(1)
	}
}
