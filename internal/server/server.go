package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/time/rate"

	"github.com/wellnest/survey-api/internal/config"
	"github.com/wellnest/survey-api/internal/infrastructure/messenger"
	mongodoc "github.com/wellnest/survey-api/internal/infrastructure/mongo"
	rediscache "github.com/wellnest/survey-api/internal/infrastructure/redis"
	s3media "github.com/wellnest/survey-api/internal/infrastructure/s3"
	adminhttp "github.com/wellnest/survey-api/internal/interfaces/http/admin"
	commonhttp "github.com/wellnest/survey-api/internal/interfaces/http/common"
	publichttp "github.com/wellnest/survey-api/internal/interfaces/http/public"
	"github.com/wellnest/survey-api/internal/metrics"
	"github.com/wellnest/survey-api/internal/survey/application"
)

// Server は HTTP サーバーのライフサイクルを管理し、各ハンドラへ依存注入するコンポジションルート。
type Server struct {
	logger         *log.Logger
	client         *mongo.Client
	database       *mongo.Database
	redis          *goredis.Client
	collections    mongodoc.Collections
	authenticator  *commonhttp.Authenticator
	authoring      application.AuthoringService
	moderation     application.ModerationService
	queries        application.QueryService
	writeLimit     func(http.Handler) http.Handler
	addr           string
	allowedOrigins []string
}

// New は Config と Mongo クライアントを受け取り、リポジトリ・外部アダプタ・アプリケーションサービスを組み立てる。
func New(cfg config.Config, client *mongo.Client) *Server {
	logger := cfg.ServerLog
	db := client.Database(cfg.MongoDatabase)
	names := mongodoc.Collections{
		Surveys:             cfg.Collections.Surveys,
		Questions:           cfg.Collections.Questions,
		Approvals:           cfg.Collections.Approvals,
		Users:               cfg.Collections.Users,
		Categories:          cfg.Collections.Categories,
		FailedNotifications: cfg.Collections.FailedNotifications,
	}

	surveys := mongodoc.NewSurveyRepository(db, names.Surveys)
	questions := mongodoc.NewQuestionRepository(db, names.Questions)
	approvals := mongodoc.NewApprovalRepository(db, names.Approvals)
	directory := mongodoc.NewDirectoryRepository(db, names.Users, names.Categories)
	failures := mongodoc.NewFailedNotificationRepository(db, names.FailedNotifications)

	notifier := messenger.NewNotifier(messenger.Config{
		Endpoint:             cfg.Messenger.Endpoint,
		ModeratorDestination: cfg.Messenger.ModeratorDestination,
		AuthorDestination:    cfg.Messenger.AuthorDestination,
		AudienceDestination:  cfg.Messenger.AudienceDestination,
		ModeratorUserID:      cfg.Messenger.ModeratorUserID,
		AdminBaseURL:         cfg.Messenger.AdminBaseURL,
		Timeout:              cfg.Messenger.Timeout,
		Attempts:             cfg.Messenger.Attempts,
		RetryDelay:           cfg.Messenger.RetryDelay,
	}, nil, failures, logger)

	media := newMediaStorage(cfg.Storage, logger)
	redisClient, cache := newDetailCache(cfg.Cache, logger)

	reconciler := application.NewQuestionReconciler(surveys, questions, logger)
	workflow := application.NewApprovalWorkflow(surveys, approvals, notifier, logger, cfg.BrandName)

	authConfigs := make([]commonhttp.JWTConfig, 0, len(cfg.JWTConfigs))
	for _, c := range cfg.JWTConfigs {
		authConfigs = append(authConfigs, commonhttp.JWTConfig{Secret: c.Secret, Issuer: c.Issuer})
	}

	return &Server{
		logger:         logger,
		client:         client,
		database:       db,
		redis:          redisClient,
		collections:    names,
		authenticator:  commonhttp.NewAuthenticator(authConfigs, cfg.JWTAudience, logger),
		authoring:      application.NewAuthoringService(surveys, questions, reconciler, workflow, media, cache, logger),
		moderation:     application.NewModerationService(workflow, cache),
		queries:        application.NewQueryService(surveys, questions, approvals, directory, cache, logger),
		writeLimit:     commonhttp.RateLimit(rate.Limit(cfg.WriteRateLimit), cfg.WriteBurst, logger),
		addr:           cfg.Addr,
		allowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
	}
}

// newMediaStorage はバケット未設定なら無効化ストレージを返す。
func newMediaStorage(cfg config.StorageConfig, logger *log.Logger) application.MediaStorage {
	if cfg.Bucket == "" {
		logger.Printf("S3_BUCKET が未設定のためメディアアップロードは無効です")
		return s3media.Disabled{}
	}
	storage, err := s3media.NewMediaStorage(s3media.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Bucket:          cfg.Bucket,
		BasePath:        cfg.BasePath,
		ForcePathStyle:  cfg.ForcePathStyle,
		PresignExpiry:   cfg.PresignExpiry,
	})
	if err != nil {
		logger.Printf("S3 ストレージの初期化に失敗しました。メディアアップロードは無効です: %v", err)
		return s3media.Disabled{}
	}
	return storage
}

// newDetailCache は Redis に接続できなければキャッシュ無しで動かす。
func newDetailCache(cfg config.CacheConfig, logger *log.Logger) (*goredis.Client, application.DetailCache) {
	if cfg.Addr == "" {
		return nil, application.NopCache{}
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("Redis への接続に失敗しました。キャッシュ無しで起動します: %v", err)
		_ = client.Close()
		return nil, application.NopCache{}
	}
	return client, rediscache.NewDetailCache(client, cfg.TTL, logger)
}

// Run はインデックスを用意してから HTTP サーバーを起動する。
func (s *Server) Run() error {
	indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := mongodoc.EnsureIndexes(indexCtx, s.database, s.collections); err != nil {
		s.logger.Printf("インデックスの作成に失敗しました: %v", err)
	}
	cancel()

	metrics.Register()

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Printf("HTTP サーバー起動: http://%s", s.addr)
		errChan <- httpServer.ListenAndServe()
	}()

	waitForShutdown(httpServer, errChan, s)
	return nil
}

// Routes はミドルウェアとルーティングを組み立てる。
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(withMetrics)
	router.Use(withCORS(s.allowedOrigins))

	router.Get("/healthz", s.healthHandler())
	router.Handle("/metrics", promhttp.Handler())

	publicHandler := publichttp.NewHandler(publichttp.Config{
		Logger:  s.logger,
		Queries: s.queries,
	})
	publicHandler.Register(router, s.authenticator.Optional, s.authenticator.Required)

	adminHandler := adminhttp.NewHandler(adminhttp.Config{
		Logger:     s.logger,
		Authoring:  s.authoring,
		Moderation: s.moderation,
		Queries:    s.queries,
		WriteLimit: s.writeLimit,
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(s.authenticator.Required)
		adminHandler.Register(r)
	})

	return router
}

// healthHandler は MongoDB への疎通確認を行う。
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("JSON エンコードに失敗: %v", err)
	}
}

// shutdown は MongoDB と Redis の接続を閉じる。
func (s *Server) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(shutdownCtx); err != nil {
		s.logger.Printf("MongoDB 切断時にエラー: %v", err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Printf("Redis 切断時にエラー: %v", err)
		}
	}
}

// waitForShutdown は ListenAndServe の終了と OS シグナルを監視し、graceful shutdown を行う。
func waitForShutdown(httpServer *http.Server, errChan <-chan error, srv *Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Fatalf("サーバーが異常終了: %v", err)
		}
	case sig := <-sigChan:
		srv.logger.Printf("シグナル %s を受信。サーバー停止処理を開始します。", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			srv.logger.Printf("サーバー停止時にエラー: %v", err)
		}
	}

	srv.shutdown(context.Background())
}
