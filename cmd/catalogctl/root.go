package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/repo"
	"github.com/tbourn/go-review-catalog/internal/sysutil"
)

// newRootCmd builds the command tree. Every setting can come from a flag or
// from a CATALOG_* environment variable (CATALOG_DB, CATALOG_LOG_LEVEL, ...).
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Operate the review catalog database",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			sysutil.ConfigureLogger(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetBool("log-pretty"))
		},
	}

	flags := root.PersistentFlags()
	flags.String("db", sysutil.FirstNonEmpty(strings.TrimSpace(os.Getenv("DB_PATH")), "catalog.db"), "SQLite database path")
	flags.String("log-level", "warn", "log level (debug/info/warn/error)")
	flags.Bool("log-pretty", true, "human readable logs")
	_ = v.BindPFlag("db", flags.Lookup("db"))
	_ = v.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log-pretty", flags.Lookup("log-pretty"))

	root.AddCommand(
		newMigrateCmd(v),
		newImportCmd(v),
		newUsersCmd(v),
		newAuthCmd(v),
	)
	return root
}

// openDB opens the configured database and brings its schema up to date.
func openDB(v *viper.Viper) (*gorm.DB, error) {
	path := v.GetString("db")
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
