package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tbourn/go-review-catalog/internal/importer"
	"github.com/tbourn/go-review-catalog/internal/services"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(v)
			if err != nil {
				return err
			}
			defer closeDB(db)
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", v.GetString("db"))
			return nil
		},
	}
}

func newImportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.md>",
		Short: "Import titles from a markdown table",
		Long: `Import titles from the first markdown table in a file. The table needs
"name" and "year" columns and may have "category", "genre" and
"description". Missing categories and genres are created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open import file")
			}
			defer f.Close()

			rows, err := importer.ParseMarkdown(f)
			if err != nil {
				return errors.Wrap(err, args[0])
			}

			db, err := openDB(v)
			if err != nil {
				return err
			}
			defer closeDB(db)

			im := &importer.Importer{
				Catalog: &services.CatalogService{DB: db},
				Titles:  services.NewTitleService(db, nil),
				Logger:  log.Logger,
			}
			rep, err := im.Import(cmd.Context(), rows)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d titles, %d new categories, %d new genres\n",
				rep.Titles, rep.Categories, rep.Genres)
			for _, s := range rep.Skipped {
				fmt.Fprintf(out, "skipped: %v\n", s)
			}
			if v.GetBool("strict") && len(rep.Skipped) > 0 {
				return errors.Errorf("%d rows skipped", len(rep.Skipped))
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "fail when any row is skipped")
	_ = v.BindPFlag("strict", cmd.Flags().Lookup("strict"))
	return cmd
}

func newUsersCmd(v *viper.Viper) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	users.AddCommand(&cobra.Command{
		Use:   "promote <username> <role>",
		Short: "Set the role of an account (user, moderator or admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(v)
			if err != nil {
				return err
			}
			defer closeDB(db)

			role := strings.ToLower(args[1])
			svc := &services.UserService{DB: db}
			u, err := svc.Update(cmd.Context(), args[0], services.UserPatch{Role: &role})
			if err != nil {
				return errors.Wrapf(err, "promote %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Username, u.Role)
			return nil
		},
	})
	return users
}

func newAuthCmd(v *viper.Viper) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign-in helpers",
	}
	authCmd.AddCommand(&cobra.Command{
		Use:   "request-code <email>",
		Short: "Issue a confirmation code and print it instead of mailing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(v)
			if err != nil {
				return err
			}
			defer closeDB(db)

			svc := &services.AuthService{DB: db, Logger: log.Logger}
			code, err := svc.RequestCode(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrapf(err, "request code for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	})
	return authCmd
}
