package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"legaldocs-backend/internal/admin"
	"legaldocs-backend/internal/auth"
	"legaldocs-backend/internal/clauses"
	"legaldocs-backend/internal/deletion"
	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/feedback"
	"legaldocs-backend/internal/health"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/queries"
	"legaldocs-backend/internal/queue"
	"legaldocs-backend/internal/search"
	sharedauth "legaldocs-backend/internal/shared/auth"
	"legaldocs-backend/internal/shared/config"
	"legaldocs-backend/internal/shared/server"
	"legaldocs-backend/internal/shared/server/middleware"
	"legaldocs-backend/internal/shared/storage/cache"
	"legaldocs-backend/internal/shared/storage/db"
	"legaldocs-backend/internal/shared/storage/object"
	localstore "legaldocs-backend/internal/shared/storage/object/local"
	miniostore "legaldocs-backend/internal/shared/storage/object/minio"
	s3store "legaldocs-backend/internal/shared/storage/object/s3"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/users"
)

// App holds the shared dependencies of the API and worker binaries.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB         *sql.DB
	Redis      *redis.Client
	Store      object.ObjectStore
	Search     *search.Meili
	AI         llm.Client
	Dispatcher documents.Dispatcher
	Processor  *documents.Processor

	Users     *users.Service
	Sessions  *auth.Sessions
	Documents *documents.Service
	Deletion  *deletion.Service
	Queries   *queries.Service
	Clauses   *clauses.Service
	Feedback  *feedback.Service
	Admin     *admin.Service
	Health    *health.Service

	closers []func()
}

// Option adjusts how Build assembles the App.
type Option func(*buildOptions)

type buildOptions struct {
	dbOptions db.Options
	ai        llm.Client
	inline    bool
}

// WithDBOptions overrides the connection pool settings.
func WithDBOptions(o db.Options) Option {
	return func(b *buildOptions) { b.dbOptions = o }
}

// WithAI replaces the Gemini client, typically with llm.Scripted in tests.
func WithAI(c llm.Client) Option {
	return func(b *buildOptions) { b.ai = c }
}

// WithInlineProcessing processes uploads inside the process even when a
// queue is configured.
func WithInlineProcessing() Option {
	return func(b *buildOptions) { b.inline = true }
}

// Build connects infrastructure, assembles services and registers routes.
// Missing optional infrastructure degrades to in-process implementations;
// in production a configured database or store that cannot be reached is fatal.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	bo := buildOptions{dbOptions: db.OptionsFromEnv(db.DefaultServerOptions())}
	for _, o := range opts {
		o(&bo)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	app := &App{Config: cfg}
	var err error
	if app.DB, err = buildDB(ctx, cfg, bo.dbOptions); err != nil {
		return nil, err
	}
	if app.DB != nil {
		app.onClose(func() { _ = app.DB.Close() })
	}
	if app.Redis, err = buildRedis(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Redis != nil {
		app.onClose(func() { _ = app.Redis.Close() })
	}
	if app.Store, err = buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		app.Search = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		app.onClose(app.Search.Close)
	}
	if app.AI, err = buildAI(ctx, cfg, bo.ai); err != nil {
		app.Close()
		return nil, err
	}

	if err := app.buildServices(ctx, bo); err != nil {
		app.Close()
		return nil, err
	}
	app.Router = app.buildRouter()

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"database":     app.DB != nil,
		"redis":        app.Redis != nil,
		"object_store": cfg.ObjectStoreType,
		"search":       app.Search != nil,
		"ai":           llm.Configured(app.AI),
		"queue":        strings.TrimSpace(cfg.SQSQueueURL) != "" && !bo.inline,
	})
	return app, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	if a == nil {
		return
	}
	if d, ok := a.Dispatcher.(*documents.InlineDispatcher); ok {
		d.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client, err := cache.Open(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildAI(ctx context.Context, cfg config.Config, override llm.Client) (llm.Client, error) {
	if override != nil {
		return override, nil
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		telemetry.Warn("bootstrap.ai_unconfigured", map[string]any{"reason": "GEMINI_API_KEY empty"})
		return llm.WithRetry(llm.Unconfigured{}), nil
	}
	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout)
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(gemini), nil
}

func (a *App) buildServices(ctx context.Context, bo buildOptions) error {
	var (
		docRepo      documents.Repo
		queryRepo    queries.Repo
		clauseRepo   clauses.Repo
		feedbackRepo feedback.Repo
		userRepo     users.Repo
		logRepo      admin.LogRepo
		cascade      deletion.Cascade
	)
	if a.DB != nil {
		docRepo = &documents.PGRepo{DB: a.DB}
		queryRepo = &queries.PGRepo{DB: a.DB}
		clauseRepo = &clauses.PGRepo{DB: a.DB}
		feedbackRepo = &feedback.PGRepo{DB: a.DB}
		userRepo = &users.PGRepo{DB: a.DB}
		logRepo = &admin.PGLogRepo{DB: a.DB}
		cascade = &deletion.PGCascade{DB: a.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		queryRepo = queries.NewMemoryRepo()
		clauseRepo = clauses.NewMemoryRepo()
		feedbackRepo = feedback.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		logRepo = admin.NewMemoryLogRepo()
		cascade = &deletion.MemoryCascade{Docs: docRepo, Queries: queryRepo, Clauses: clauseRepo, Feedback: feedbackRepo}
	}

	var index documents.SearchIndex
	if a.Search != nil {
		index = a.Search
	}

	a.Processor = documents.NewProcessor(docRepo, a.Store)
	if url := strings.TrimSpace(a.Config.SQSQueueURL); url != "" && !bo.inline {
		client, err := queue.NewSQSClient(ctx, url, a.Config.AWSRegion)
		if err != nil {
			return fmt.Errorf("sqs: %w", err)
		}
		a.Dispatcher = queue.NewDispatcher(client)
	} else {
		a.Dispatcher = &documents.InlineDispatcher{Processor: a.Processor, Timeout: 2 * time.Minute}
	}

	var sessionStore sharedauth.SessionStore = sharedauth.NewMemorySessionStore()
	if a.Redis != nil {
		sessionStore = sharedauth.NewRedisSessionStore(a.Redis)
	}
	issuer, err := sharedauth.NewIssuer(a.Config.JWTSecret, a.Config.JWTExpiresIn, a.Config.Env)
	if err != nil {
		return err
	}
	a.Sessions = &auth.Sessions{Issuer: issuer, Store: sessionStore, RefreshTTL: a.Config.RefreshTokenTTL}

	a.Users = users.NewService(userRepo, a.Config.BcryptCost, a.Config.AdminEmails)
	a.Documents = documents.NewService(docRepo, a.Store, a.Dispatcher, index, a.Config.MaxUploadBytes)
	a.Deletion = deletion.NewService(docRepo, cascade, a.Store, index)
	a.Queries = queries.NewService(queryRepo, docRepo, a.AI)
	a.Clauses = clauses.NewService(clauseRepo, docRepo, a.AI)
	a.Feedback = feedback.NewService(feedbackRepo, queryRepo, clauseRepo, docRepo, a.AI)
	a.Health = a.buildHealth(docRepo, queryRepo, clauseRepo, feedbackRepo)
	a.Admin = admin.NewService(admin.Deps{
		Users:    a.Users,
		Docs:     docRepo,
		Queries:  queryRepo,
		Clauses:  clauseRepo,
		Feedback: feedbackRepo,
		Logs:     logRepo,
		Deleter:  a.Deletion,
		Sessions: a.Sessions,
		Store:    a.Store,
		Probe:    a.Health,
		AI:       a.AI,
	})
	return nil
}

func (a *App) buildHealth(docs documents.Repo, qs queries.Repo, cs clauses.Repo, fb feedback.Repo) *health.Service {
	h := health.NewService(a.Config.Version, a.Config.Env)
	if a.DB != nil {
		h.Database = health.PingFunc(a.DB.PingContext)
	}
	h.Storage = a.Store
	if a.Search != nil {
		h.Search = a.Search
	}
	if a.Redis != nil {
		h.Redis = cache.Pinger{Client: a.Redis}
	}
	h.AI = a.AI
	h.AIModel = a.Config.GeminiModel
	if a.Config.ObjectStoreType == "local" {
		h.UploadDir = a.Config.LocalStoreDir
	}
	_, queued := a.Dispatcher.(*queue.Dispatcher)
	h.Features = map[string]bool{
		"memory_store":  a.DB == nil,
		"redis":         a.Redis != nil,
		"search":        a.Search != nil,
		"queue":         queued,
		"google_oauth":  a.Config.GoogleClientID != "",
		"ai_configured": llm.Configured(a.AI),
	}
	h.Counts = map[string]health.CountFunc{
		"documents": func(ctx context.Context, userID string) (int, error) {
			_, n, err := docs.List(ctx, documents.ListFilter{UserID: userID, Limit: 1})
			return n, err
		},
		"queries": func(ctx context.Context, userID string) (int, error) {
			_, n, err := qs.List(ctx, queries.ListFilter{UserID: userID, Limit: 1})
			return n, err
		},
		"clauses": func(ctx context.Context, userID string) (int, error) {
			_, n, err := cs.List(ctx, clauses.ListFilter{UserID: userID, Limit: 1})
			return n, err
		},
		"feedback": func(ctx context.Context, userID string) (int, error) {
			rows, err := fb.List(ctx, feedback.ListFilter{UserID: userID})
			return len(rows), err
		},
	}
	return h
}

func (a *App) buildRouter() *gin.Engine {
	var limiter middleware.Limiter = middleware.NewRateLimiter(nil)
	if a.Redis != nil {
		limiter = middleware.NewRedisRateLimiter(a.Redis, nil)
	}
	var google *auth.GoogleService
	if a.Config.GoogleClientID != "" {
		google = auth.NewGoogleService(a.Config.GoogleClientID, a.Config.GoogleClientSecret, a.Config.GoogleRedirectURL, a.Config.ClientURL, a.Users, a.Sessions)
	}
	return server.NewRouter(server.RouterDeps{
		Config:        a.Config,
		Authenticator: &sharedauth.Authenticator{Issuer: a.Sessions.Issuer, Sessions: a.Sessions.Store},
		Limiter:       limiter,
		Auth:          auth.NewHandler(a.Users, a.Sessions, google),
		Documents:     documents.NewHandler(a.Documents, a.Deletion),
		Deletion:      deletion.NewHandler(a.Deletion),
		Queries:       queries.NewHandler(a.Queries),
		Clauses:       clauses.NewHandler(a.Clauses),
		Feedback:      feedback.NewHandler(a.Feedback),
		Health:        health.NewHandler(a.Health),
		Admin:         admin.NewHandler(a.Admin),
		AdminGuards: admin.Guards{
			Accounts: a.Users,
			Limiter:  limiter,
			Audit:    a.Admin.Logs,
		},
	})
}
