package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"module5/portal/internal/app"
	"module5/portal/internal/config"
	"module5/portal/internal/migrations"
)

func main() {
	cmd := flag.String("cmd", "up", "Command: up|status")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if cfg.Database.Driver == config.DriverNone {
		fmt.Fprintln(os.Stderr, "DATABASE_DRIVER=none has nothing to migrate")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	svc, err := migrations.NewService(db, cfg.Database.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up":
		if err := svc.Up(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate up: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
		fallthrough
	case "status":
		statuses, err := svc.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status: %v\n", err)
			os.Exit(1)
		}
		printStatus(statuses)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *cmd)
		os.Exit(2)
	}
}

func printStatus(statuses []migrations.Status) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED\tCHECKSUM")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", s.Version, s.Name, s.Applied, shortSum(s.Checksum))
	}
	_ = tw.Flush()
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
