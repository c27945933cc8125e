// formulite applies, inspects and drops entity schemas in a SQLite database.
//
//	formulite [flags] apply schema.yaml
//	formulite [flags] inspect
//	formulite [flags] export [file]
//	formulite [flags] drop [-all] [entity...]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/syssam/formulite"
	"github.com/syssam/formulite/dialect/sql"
	"github.com/syssam/formulite/schema/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "formulite: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("formulite", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "formulite.yaml", "configuration file")
		dsn        = fs.String("dsn", "", "database source name")
		snap       = fs.String("snapshot", "", "snapshot backend: db or file")
		level      = fs.String("log-level", "", "log level: debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "config" })
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		return err
	}
	if err := cfg.applyEnv(); err != nil {
		return err
	}
	cfg.applyFlags(fs, dsn, snap, level)
	if err := cfg.validate(); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("missing command, expect apply, inspect, export or drop")
	}
	client, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "apply":
		if len(rest) != 1 {
			return fmt.Errorf("apply: expect one schema file")
		}
		return apply(ctx, client, rest[0], out)
	case "inspect":
		return inspect(client, out)
	case "export":
		path := ""
		if len(rest) > 0 {
			path = rest[0]
		}
		return export(client, path, out)
	case "drop":
		return drop(ctx, client, rest, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func open(ctx context.Context, cfg Config) (*formulite.Client, error) {
	lvl, _ := cfg.level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	opts := []formulite.Option{formulite.WithLogger(logger)}
	if cfg.Snapshot == "file" {
		opts = append(opts, formulite.WithSnapshotStore(snapshot.NewFileStore(cfg.SnapshotPath)))
	}
	if cfg.SlowThreshold > 0 {
		opts = append(opts, formulite.WithStats(sql.WithSlowThreshold(cfg.SlowThreshold), sql.WithSlowQueryLog(logger)))
	}
	if lvl <= slog.LevelDebug {
		opts = append(opts, formulite.WithDebug())
	}
	return formulite.Open(ctx, cfg.DSN, opts...)
}

// apply declares the entities of a schema file and creates their tables.
func apply(ctx context.Context, client *formulite.Client, path string, out io.Writer) error {
	doc, err := snapshot.ReadFile(path)
	if err != nil {
		return err
	}
	if err := client.Import(doc.Entities...); err != nil {
		return err
	}
	if err := client.CreateAll(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d entities from %s\n", len(doc.Entities), path)
	return nil
}

func inspect(client *formulite.Client, out io.Writer) error {
	for _, e := range client.Entities() {
		name := e.Name
		if e.Derived() {
			name += " : " + e.Parent
		}
		fmt.Fprintf(out, "%s (key %s)\n", name, e.Surrogate)
		for _, a := range e.Attributes {
			var tags []string
			if e.InPrimaryKey(a.Name) {
				tags = append(tags, "pk")
			}
			if fk, ok := e.ForeignKey(a.Name); ok {
				tags = append(tags, "fk "+fk.RefEntity+"."+fk.RefColumn)
			}
			line := fmt.Sprintf("  %-20s %s", a.Name, a.TypeName())
			if len(tags) > 0 {
				line += "  [" + strings.Join(tags, ", ") + "]"
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func export(client *formulite.Client, path string, out io.Writer) error {
	doc := client.Export()
	if path != "" {
		return snapshot.WriteFile(path, doc)
	}
	b, err := snapshot.Encode(doc)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func drop(ctx context.Context, client *formulite.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("drop", flag.ContinueOnError)
	all := fs.Bool("all", false, "drop all entities")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entities := fs.Args()
	if *all {
		if len(entities) > 0 {
			return fmt.Errorf("drop: -all takes no entity names")
		}
		if err := client.DropAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "dropped all entities")
		return nil
	}
	if len(entities) == 0 {
		return fmt.Errorf("drop: expect entity names or -all")
	}
	for _, name := range entities {
		if err := client.DropTable(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(out, "dropped %s\n", name)
	}
	return nil
}
