package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"melodia/internal/logging"
	"melodia/migrations"
)

func main() {
	_ = godotenv.Load()
	logging.SetGlobalLogger(logging.New(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: "text",
		Output: os.Stderr,
	}))

	app := &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back the melodia schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Usage:   "Postgres connection URL",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "up",
				Usage:     "Apply pending migrations",
				ArgsUsage: "[steps]",
				Action:    runUp,
			},
			{
				Name:      "down",
				Usage:     "Roll back migrations (all of them unless steps is given)",
				ArgsUsage: "[steps]",
				Action:    runDown,
			},
			{
				Name:   "version",
				Usage:  "Print the applied schema version",
				Action: runVersion,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func runUp(ctx context.Context, cmd *cli.Command) error {
	steps, err := stepsArg(cmd)
	if err != nil {
		return err
	}
	m, closeFn, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info().Msg("migrations applied")
	return nil
}

func runDown(ctx context.Context, cmd *cli.Command) error {
	steps, err := stepsArg(cmd)
	if err != nil {
		return err
	}
	m, closeFn, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	log.Info().Msg("migrations rolled back")
	return nil
}

func runVersion(ctx context.Context, cmd *cli.Command) error {
	m, closeFn, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("no migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Printf("version %d (dirty: %t)\n", version, dirty)
	return nil
}

func stepsArg(cmd *cli.Command) (int, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, nil
	}
	steps, err := strconv.Atoi(raw)
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("steps must be a positive integer, got %q", raw)
	}
	return steps, nil
}

// newMigrator opens the database and binds the embedded migrations to it.
func newMigrator(cmd *cli.Command) (*migrate.Migrate, func(), error) {
	dsn := cmd.String("database-url")
	if dsn == "" {
		return nil, nil, errors.New("DATABASE_URL env var or --database-url flag is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	closeFn := func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrator")
		}
	}
	return m, closeFn, nil
}
