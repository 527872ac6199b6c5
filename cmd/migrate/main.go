package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/migrate"
)

const serviceName = "migrate"

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up              apply every pending migration
  down            roll back the latest migration
  status          list migrations and whether they are applied
  to <version>    move up or down to a YYYYMMDDHHMMSS version
  create <name>   write an empty migration into -dir
  validate        check file names and goose sections

The embedded migrations are used unless -dir is set.
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	flags.SetOutput(out)
	dir := flags.String("dir", "", "migrations directory (default: embedded set)")
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}
	command, arg := flags.Arg(0), flags.Arg(1)

	var source fs.FS = migrate.Files()
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	switch command {
	case "create":
		if arg == "" {
			return errors.New("create needs a migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, arg, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created", path)
		return nil
	case "validate":
		if err := migrate.Validate(source); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations ok")
		return nil
	case "up", "down", "status", "to":
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	return withRunner(ctx, command, source, func(ctx context.Context, runner *migrate.Runner, logg *logger.Logger) error {
		switch command {
		case "up":
			applied, err := runner.Up(ctx)
			if err != nil {
				return err
			}
			logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
		case "down":
			version, err := runner.Down(ctx)
			if err != nil {
				return err
			}
			logg.Info(logg.WithField(ctx, "version", version), "migration rolled back")
		case "to":
			version, err := migrate.ParseVersion(arg)
			if err != nil {
				return err
			}
			if err := runner.To(ctx, version); err != nil {
				return err
			}
			logg.Info(logg.WithField(ctx, "version", version), "schema at requested version")
		case "status":
			statuses, err := runner.Status(ctx)
			if err != nil {
				return err
			}
			return printStatus(out, statuses)
		}
		return nil
	})
}

func withRunner(ctx context.Context, command string, source fs.FS, fn func(context.Context, *migrate.Runner, *logger.Logger) error) (err error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DB.Driver == config.DriverSQLite {
		return errors.New("goose migrations target postgres; sqlite schemas are synced by the dev auto-migrate")
	}

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if cerr := dbClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, source)
	if err != nil {
		return err
	}
	return fn(ctx, runner, logg)
}

func printStatus(out io.Writer, statuses []migrate.Status) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		state, at := "pending", "-"
		if s.Applied {
			state, at = "applied", s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.File)
	}
	return tw.Flush()
}
