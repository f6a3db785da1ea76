package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/schoolledger/ledger-api/internal/config"
	"github.com/schoolledger/ledger-api/internal/database"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/internal/services"
	"github.com/schoolledger/ledger-api/internal/storage"
	"github.com/schoolledger/ledger-api/pkg/logger"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=..."
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ledger-api",
		Short:   "School finance ledger and bank balance service",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newBackupCommand())

	return rootCmd
}

// Execute runs the root command with ctx
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// app is the wiring shared by the one-shot subcommands
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	store *storage.LocalStorage
	svcs  *services.Services
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	repos := repository.NewRepositories(db)
	svcs := services.NewServices(repos, repository.NewTransactor(db), store, nil, nil, cfg)
	return &app{cfg: cfg, db: db, store: store, svcs: svcs}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}
