package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/migration"
)

// defaultSourceDir is where create writes new pairs; they are embedded on the next build
const defaultSourceDir = "internal/infrastructure/migration/sql"

var errUsage = errors.New("missing or invalid argument")

// dbCommand runs against an open migrator with the arguments after the command name
type dbCommand func(m *migration.Migrator, log *zap.Logger, args []string) error

var dbCommands = map[string]dbCommand{
	"up": func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Up()
	},
	"down": func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Down()
	},
	"step": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"goto": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		if len(args) == 0 {
			return errUsage
		}
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, args[0])
		}
		return m.GoTo(uint(version))
	},
	"version": func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
	"force": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		version, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(version)
	},
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func main() {
	var (
		sourceDir string
		logLevel  string
	)
	flag.StringVar(&sourceDir, "dir", defaultSourceDir, "Directory that create writes new migrations into")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command, rest := args[0], args[1:]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	switch command {
	case "create":
		if err := create(sourceDir, rest, log); err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		return
	case "list":
		if err := list(log); err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		return
	}

	run, ok := dbCommands[command]
	if !ok {
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	if err := run(m, log, rest); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		}
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func create(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migration name", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(log *zap.Logger) error {
	names, err := migration.ListMigrations()
	if err != nil {
		return err
	}
	log.Info("Embedded migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func printUsage() {
	fmt.Println(`Listing sync schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate up or down to a version
  version               Show the applied version
  force <version>       Set the version without migrating (repairs a dirty state)
  create <name> [desc]  Write a new up/down pair
  list                  List embedded migrations

Flags:
  -dir string           Directory for new migrations (default: internal/infrastructure/migration/sql)
  -log-level string     debug, info, warn or error (default: info)

The database is configured with SYNC_DATABASE_* variables or config.toml.`)
}
