package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/voiceflow/voiceflow/config"
	"github.com/voiceflow/voiceflow/internal/api/handlers"
	"github.com/voiceflow/voiceflow/internal/api/middleware"
	"github.com/voiceflow/voiceflow/internal/api/routes"
	"github.com/voiceflow/voiceflow/internal/cache"
	"github.com/voiceflow/voiceflow/internal/logger"
	"github.com/voiceflow/voiceflow/internal/media"
	"github.com/voiceflow/voiceflow/internal/models"
	"github.com/voiceflow/voiceflow/internal/pipeline"
	"github.com/voiceflow/voiceflow/internal/providers/asr"
	"github.com/voiceflow/voiceflow/internal/providers/diarize"
	"github.com/voiceflow/voiceflow/internal/providers/llm"
	"github.com/voiceflow/voiceflow/internal/queue"
	pgrepo "github.com/voiceflow/voiceflow/internal/repositories/postgres"
	"github.com/voiceflow/voiceflow/internal/services"
	"github.com/voiceflow/voiceflow/internal/storage"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	app, err := config.LoadApp()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL (optional; transcripts are not persisted without it)
	var transcripts pgrepo.TranscriptRepo
	if os.Getenv("POSTGRES_URI") != "" {
		if err := config.InitPostgres(); err != nil {
			log.WithError(err).Fatal("PostgreSQL init error")
		}
		if err := config.PostgresDB.AutoMigrate(&models.TranscriptRecord{}); err != nil {
			log.WithError(err).Fatal("PostgreSQL migrate error")
		}
		transcripts = pgrepo.NewTranscriptRepo(config.PostgresDB)
		log.Info("PostgreSQL connected")
	}

	// Init Redis (optional; disables the result cache and live job updates)
	var results cache.Cache
	if os.Getenv("REDIS_ADDR") != "" || os.Getenv("REDIS_URI") != "" || os.Getenv("REDIS_URL") != "" {
		if err := config.InitRedis(); err != nil {
			log.WithError(err).Fatal("Redis init error")
		}
		results = cache.NewRedisCache(config.RedisClient)
		log.Info("Redis connected")
	}

	// Media + providers
	normalizer := media.NewNormalizer(app.FFmpegBin, app.TmpDir)

	var recognizer asr.Provider
	switch app.ASRProvider {
	case "google":
		recognizer, err = asr.NewGoogleSpeech(ctx)
	default:
		recognizer, err = asr.NewWhisperCLI(app.WhisperBin, app.WhisperModel, app.TmpDir)
	}
	if err != nil {
		log.WithError(err).Fatal("ASR provider init error")
	}
	defer recognizer.Close()

	diarizer, err := diarize.NewPyannote(app.DiarizePython, app.DiarizeScript)
	if err != nil {
		log.WithError(err).Fatal("diarization provider init error")
	}
	defer diarizer.Close()

	var summaries services.SummaryService
	if app.GCPProject != "" {
		model, err := llm.NewVertexGemini(ctx, app.GCPProject, app.GCPLocation, app.GeminiModel)
		if err != nil {
			log.WithError(err).Fatal("Vertex AI init error")
		}
		defer model.Close()
		summaries = services.NewSummaryService(model)
	}

	var archive storage.Uploader
	var archiveSigner storage.Signer
	switch app.ArchiveBackend {
	case "gcs":
		gcs, gerr := storage.NewGCSUploader(ctx, app.ArchiveBucket)
		if gerr != nil {
			log.WithError(gerr).Fatal("archive init error")
		}
		archive, archiveSigner = gcs, gcs
	case "local":
		archive, err = storage.NewLocalUploader(app.ArchiveDir)
		if err != nil {
			log.WithError(err).Fatal("archive init error")
		}
	}

	// Pipeline + admission queue
	orch := pipeline.New(normalizer, recognizer, diarizer, log, app.StageTimeout)
	q := queue.New(app.MaxConcurrentJobs, log)
	svc := services.NewTranscriptionService(q, orch, summaries, transcripts, results, archive, config.RedisClient, log)
	q.Start(ctx)

	// HTTP server
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	deps := routes.Deps{
		Transcribe: handlers.NewTranscribeHandler(svc),
		Job:        handlers.NewJobHandler(svc),
		Queue:      q,
	}
	if transcripts != nil {
		deps.Transcript = handlers.NewTranscriptHandler(transcripts, archiveSigner)
	}
	if config.RedisClient != nil {
		deps.WS = handlers.NewWSHandler(svc, config.RedisClient)
	}
	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:    ":" + app.Port,
		Handler: r,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
	q.Shutdown()
}
