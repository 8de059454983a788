package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/config"
	"kbmigrate/internal/data"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/model"
	"kbmigrate/internal/service"
	"kbmigrate/internal/stage"
	"kbmigrate/internal/transcode"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

// app holds what the stage commands share: configuration, logger and the
// lazily opened stores.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	db    *sqlx.DB
	store *bucket.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig(v, cmd.Flag("config").Value.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Workspace.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &app{cfg: cfg, log: logger.New(cfg.Log, nil)}, nil
}

func (a *app) source() (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	a.log.Info("Connecting to the source database...")
	db, err := data.NewDB(a.cfg.Source)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) buckets() (*bucket.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := bucket.Open(filepath.Join(a.cfg.Workspace.Dir, "buckets.db"))
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// transcoder routes markdown through goldmark and everything else through
// the configured filter command.
func (a *app) transcoder() transcode.Transcoder {
	return transcode.NewChain(transcode.NewPandoc(a.cfg.Transcoder.Command)).
		Route(transcode.Markdown, transcode.HTML, transcode.NewGoldmark())
}

func (a *app) analyze(ctx context.Context) error {
	db, err := a.source()
	if err != nil {
		return err
	}
	store, err := a.buckets()
	if err != nil {
		return err
	}
	custom, err := model.LoadCustomizations(a.cfg.Customizations.File)
	if err != nil {
		return err
	}
	users, err := service.NewUserResolver(ctx, data.NewUserRepository(db), a.log)
	if err != nil {
		return err
	}
	s := &stage.Analyze{
		Builder: service.NewModelBuilder(data.NewCategoryRepository(db), data.NewSQLPageRepository(db), users, custom, a.log),
		Resolver: service.NewAttachmentResolver(data.NewAttachmentRepository(db), data.NewDiagramRepository(db),
			users, a.cfg.Source.ContainerType, a.cfg.Source.FilesDir, a.log),
		Custom: custom,
		Store:  store,
		Log:    a.log,
	}
	_, err = s.Run(ctx)
	return err
}

func (a *app) convert(ctx context.Context) error {
	store, err := a.buckets()
	if err != nil {
		return err
	}
	s := &stage.Convert{
		Transcoder:    a.transcoder(),
		SourceDialect: a.cfg.Transcoder.SourceDialect,
		Store:         store,
		Log:           a.log,
	}
	return s.Run(ctx)
}

func (a *app) extract(ctx context.Context) error {
	store, err := a.buckets()
	if err != nil {
		return err
	}
	files, err := stage.NewDirFileStore(filepath.Join(a.cfg.Workspace.Dir, "images"))
	if err != nil {
		return err
	}
	s := &stage.Extract{Files: files, Store: store, Log: a.log}
	_, err = s.Run(ctx)
	return err
}

func (a *app) compose(ctx context.Context) error {
	store, err := a.buckets()
	if err != nil {
		return err
	}
	s := &stage.Compose{
		ResultDir: filepath.Join(a.cfg.Workspace.Dir, "result"),
		Store:     store,
		Log:       a.log,
	}
	_, err = s.Run(ctx)
	return err
}
