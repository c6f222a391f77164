package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/zishan044/ecommerce-app/internal/config"
	"github.com/zishan044/ecommerce-app/internal/platform/postgres"
	"github.com/zishan044/ecommerce-app/pkg/logging"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: migrate [-dsn url] up | down [n] | version | force <version>\n")
	flag.PrintDefaults()
}

func main() {
	cfg := config.Load()
	dsn := flag.String("dsn", cfg.PGURL, "postgres connection url")
	flag.Usage = usage
	flag.Parse()

	log := logging.New(cfg.LogLevel)
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	mg, err := postgres.NewMigrator(log, *dsn)
	if err != nil {
		log.Error("migrator init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = mg.Close() }()

	if err := run(mg, flag.Args()); err != nil {
		log.Error("migrate failed", "cmd", flag.Arg(0), "err", err)
		_ = mg.Close()
		os.Exit(1)
	}
}

func run(mg *postgres.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return mg.Up()
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("down: invalid step count %q", args[1])
			}
			steps = n
		}
		return mg.Down(steps)
	case "version":
		v, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force: version required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("force: invalid version %q", args[1])
		}
		return mg.Force(v)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
