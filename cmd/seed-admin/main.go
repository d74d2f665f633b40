// Command seed-admin provisions a staff account for the review dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"stageportal/internal/common"
	"stageportal/internal/database"
	"stageportal/internal/domain/user"
	"stageportal/internal/observability"
	"stageportal/internal/repository/postgres"
	"stageportal/internal/security"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed-admin:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	flags := pflag.NewFlagSet("seed-admin", pflag.ContinueOnError)
	dsn := flags.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	email := flags.String("email", "", "administrator email")
	nom := flags.String("nom", "Service RH", "display name")
	password := flags.String("password", "", "password (defaults to $ADMIN_PASSWORD)")
	migrate := flags.Bool("migrate", false, "apply migrations first")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if strings.TrimSpace(*dsn) == "" || strings.TrimSpace(*email) == "" || *password == "" {
		return errors.New("--dsn, --email and --password are required")
	}

	logger := observability.NewLogger("info", "text")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, database.PostgresConfig{DSN: *dsn, MaxOpenConns: 2, MaxIdleConns: 1}, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if *migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	hash, err := security.HashPassword(*password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin, err := postgres.NewAdminRepository(db).Create(ctx, user.Admin{
		Nom:          strings.TrimSpace(*nom),
		Email:        strings.TrimSpace(*email),
		PasswordHash: hash,
	})
	if err != nil {
		if common.Is(err, common.CodeConflict) {
			return fmt.Errorf("administrator %s already exists", *email)
		}
		return err
	}
	logger.Info(fmt.Sprintf("administrator %d created for %s", admin.ID, admin.Email))
	return nil
}
