package app

import (
	"context"
	"fmt"
	"log/slog"

	"go-fileops/internal/config"
	"go-fileops/internal/database"
	"go-fileops/internal/event"
	"go-fileops/internal/metrics"
	"go-fileops/internal/model"
	"go-fileops/internal/repository"
	"go-fileops/internal/service"
	"go-fileops/internal/storage"
)

// Core is the engine and everything it needs, shared by the HTTP server and
// the CLI.
type Core struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Bus     event.Bus
	Engine  *service.Engine
	Tokens  *service.TokenService
	DB      *database.DB
	History *repository.OperationRepository
}

func NewCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	fsys := storage.OS{}

	validator, err := storage.NewPathValidator(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path validator: %w", err)
	}

	m := metrics.New()
	bus := event.NewBus()

	trash, err := service.NewTrashService(fsys, cfg.TrashRoot, cfg.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trash: %w", err)
	}

	oplog, err := service.NewOperationLog(service.OperationLogConfig{
		Dir:      cfg.LogDir,
		MaxBytes: cfg.LogMaxBytes,
		MaxFiles: cfg.LogMaxFiles,
		MaxAge:   cfg.LogMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize operation log: %w", err)
	}

	scanner := service.NewScanner(fsys, cfg.FollowSymlinks)
	planner := service.NewPlanner(fsys, scanner, validator)
	executor := service.NewExecutor(fsys, trash, m, service.ExecutorConfig{
		ChunkSize:        cfg.ChunkSize,
		ProgressInterval: cfg.ProgressInterval,
		VerifyCopies:     cfg.VerifyCopies,
	})

	core := &Core{Config: cfg, Metrics: m, Bus: bus}

	if cfg.APITokenSecret != "" {
		core.Tokens, err = service.NewTokenService(cfg.APITokenSecret, cfg.APITokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
	}

	var store service.OperationStore
	if cfg.DatabaseURL != "" {
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		core.DB = db
		core.History = repository.NewOperationRepository(db.Pool)
		store = core.History
	}

	core.Engine = service.NewEngine(service.EngineDeps{
		Planner:  planner,
		Executor: executor,
		Trash:    trash,
		Log:      oplog,
		Bus:      bus,
		Metrics:  m,
		Store:    store,
	}, service.EngineConfig{
		MaxConcurrent:    cfg.MaxConcurrentOperations,
		History:          cfg.OperationHistory,
		DefaultConflict:  model.ConflictAction(cfg.ConflictDefault),
		DefaultPermanent: cfg.DeleteBehavior == config.DeletePermanent,
		ProgressInterval: cfg.ProgressInterval,
	})

	slog.Debug("engine ready",
		"trash", cfg.TrashRoot,
		"log_dir", cfg.LogDir,
		"workspace", cfg.WorkspaceRoot,
		"history_db", core.DB != nil,
	)
	return core, nil
}

// Close stops the engine, letting running operations record their outcome,
// then releases the database.
func (c *Core) Close(ctx context.Context) error {
	err := c.Engine.Shutdown(ctx)
	if c.DB != nil {
		c.DB.Close()
	}
	return err
}
