package container

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/viberoll/viberoll/app/db"
	"github.com/viberoll/viberoll/app/kv"
	"github.com/viberoll/viberoll/app/objstore"
	"github.com/viberoll/viberoll/config"
	"github.com/viberoll/viberoll/internal/api/admin"
	"github.com/viberoll/viberoll/internal/api/ai"
	"github.com/viberoll/viberoll/internal/api/auth"
	"github.com/viberoll/viberoll/internal/api/comment"
	"github.com/viberoll/viberoll/internal/api/user"
	"github.com/viberoll/viberoll/internal/api/video"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client

	TokenIssuer *auth.TokenIssuer
	Revoker     auth.RevocationStore

	AuthHandler    *auth.HandlerImpl
	UserHandler    *user.HandlerImpl
	AdminHandler   *admin.HandlerImpl
	VideoHandler   *video.HandlerImpl
	CommentHandler *comment.HandlerImpl
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	redisClient, err := kv.Init(cfg.Repositories.Redis.URL, logger)
	if err != nil {
		logger.Error("Failed to initialize redis client", slog.Any("error", err))
		pool.Close()
		return nil, err
	}

	uploads, err := objstore.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize object store", slog.Any("error", err))
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	tagger := ai.Disabled()
	if cfg.AI.Enabled {
		gemini, err := ai.NewGeminiTagger(ctx, cfg.AI.Model, logger)
		if err != nil {
			logger.Error("Failed to initialize tagger", slog.Any("error", err))
			pool.Close()
			_ = redisClient.Close()
			return nil, err
		}
		tagger = gemini
	}

	tokenIssuer := auth.NewTokenIssuer(cfg.JWT)
	revoker := auth.NewRedisRevocationStore(redisClient)

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, tokenIssuer, revoker, cfg.Auth.BcryptCost, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	userRepo := user.NewPostgresUserRepo(pool, logger)
	userService := user.NewUserService(userRepo, cfg.Auth.BcryptCost, logger)
	userHandler := user.NewHandlerImpl(userService, logger)

	adminRepo := admin.NewPostgresAdminRepo(pool, logger)
	adminService := admin.NewAdminService(adminRepo, authRepo, cfg.Auth.BcryptCost, logger)
	adminHandler := admin.NewHandlerImpl(adminService, logger)

	videoRepo := video.NewPostgresVideoRepo(pool, logger)
	videoCache := video.NewListingCache(redisClient, logger)
	videoService := video.NewVideoService(videoRepo, videoCache, uploads, tagger, logger)
	videoHandler := video.NewHandlerImpl(videoService, logger)

	commentRepo := comment.NewPostgresCommentRepo(pool, logger)
	commentService := comment.NewCommentService(commentRepo, logger)
	commentHandler := comment.NewHandlerImpl(commentService, logger)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Pool:           pool,
		Redis:          redisClient,
		TokenIssuer:    tokenIssuer,
		Revoker:        revoker,
		AuthHandler:    authHandler,
		UserHandler:    userHandler,
		AdminHandler:   adminHandler,
		VideoHandler:   videoHandler,
		CommentHandler: commentHandler,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	c.Logger.Info("Container resources released")
}
