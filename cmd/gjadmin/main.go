// Command gjadmin runs maintenance tasks against the journal store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/app"
	"github.com/gardenjournal/gardenjournal/internal/config"
	"github.com/gardenjournal/gardenjournal/internal/migrate"
	"github.com/gardenjournal/gardenjournal/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprintf(os.Stderr, `gjadmin
Usage:
  gjadmin [-config file] <cmd> [args]

Commands:
  version
  migrate up | status | version
  audit owners                      (locations left without an owner)
  user show -id <userId>
  user find [-email <addr>] [-ids a,b]
  location show -id <locationId>
`)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// main loads the config and dispatches one subcommand.
func main() {
	cfgPath := flag.String("config", "", "path to a config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Printf("gjadmin %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if cmd == "migrate" {
		if err := runMigrate(ctx, cfg, args, os.Stdout); err != nil {
			if errors.Is(err, errUsage) {
				usage()
				os.Exit(2)
			}
			fail(err)
		}
		return
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	defer stores.Close()

	err = dispatch(ctx, app.NewServices(stores, cfg, logger, nil), cmd, args, os.Stdout)
	if errors.Is(err, errUsage) {
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if cfg.DBDriver != config.DriverPostgres {
		return fmt.Errorf("migrations need the %s driver, have %q", config.DriverPostgres, cfg.DBDriver)
	}
	if len(args) != 1 {
		return errUsage
	}
	switch args[0] {
	case "up":
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
	case "status":
		return migrate.Status(ctx, cfg.DSN)
	case "version":
		v, err := migrate.Version(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
	default:
		return errUsage
	}
	return nil
}

// dispatch runs the store-backed subcommands.
func dispatch(ctx context.Context, svc *app.Services, cmd string, args []string, out io.Writer) error {
	sub := ""
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch cmd + " " + sub {
	case "audit owners":
		ls, err := svc.Locations.AuditOwners(ctx)
		if err != nil {
			return err
		}
		printJSON(out, ls)

	case "user show":
		fs := flag.NewFlagSet("user show", flag.ContinueOnError)
		id := fs.String("id", "", "user id")
		if err := fs.Parse(args); err != nil || *id == "" {
			return errUsage
		}
		u, err := svc.Users.GetByID(ctx, *id)
		if err != nil {
			return err
		}
		printJSON(out, u)

	case "user find":
		fs := flag.NewFlagSet("user find", flag.ContinueOnError)
		email := fs.String("email", "", "email address")
		ids := fs.String("ids", "", "comma separated user ids")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		q := service.UserQuery{Email: *email}
		if *ids != "" {
			q.IDs = strings.Split(*ids, ",")
		}
		us, err := svc.Users.GetByQuery(ctx, q)
		if err != nil {
			return err
		}
		printJSON(out, us)

	case "location show":
		fs := flag.NewFlagSet("location show", flag.ContinueOnError)
		id := fs.String("id", "", "location id")
		if err := fs.Parse(args); err != nil || *id == "" {
			return errUsage
		}
		l, err := svc.Locations.GetByID(ctx, *id, "")
		if err != nil {
			return err
		}
		printJSON(out, l)

	default:
		return errUsage
	}
	return nil
}
