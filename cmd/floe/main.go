package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/vinceanalytics/floe/blob"
	"github.com/vinceanalytics/floe/catalog"
	"github.com/vinceanalytics/floe/filters"
	"github.com/vinceanalytics/floe/scan"
	"github.com/vinceanalytics/floe/schema"

	_ "github.com/vinceanalytics/floe/arrowipc"
	_ "github.com/vinceanalytics/floe/avro"
	_ "github.com/vinceanalytics/floe/parquet"
)

func main() {
	app := &cli.Command{
		Name:  "floe",
		Usage: "Bounded, format agnostic table scans",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Category: "core",
				Name:     "meta",
				Usage:    "path to the catalog store",
				Value:    "meta",
			},
			&cli.StringFlag{
				Category: "core",
				Name:     "data",
				Usage:    "directory holding table data files",
				Value:    "data",
			},
			&cli.StringFlag{
				Category: "core",
				Name:     "log-level",
				Usage:    "debug, info, warn or error",
				Value:    "info",
			},
		},
		Commands: []*cli.Command{
			scanCMD(),
			describeCMD(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := app.Run(ctx, os.Args); err != nil {
		slog.Error("exited", "err", err)
		os.Exit(1)
	}
}

func setup(c *cli.Command) (*catalog.Catalog, *blob.Bucket, error) {
	var lvl slog.Level
	lvl.UnmarshalText([]byte(c.String("log-level")))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
	cat, err := catalog.Open(c.String("meta"))
	if err != nil {
		return nil, nil, err
	}
	bucket, err := blob.Open(c.String("data"))
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	return cat, bucket, nil
}

func scanCMD() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Read a table and print records as json lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "table",
				Usage: "table to scan",
			},
			&cli.StringFlag{
				Name:  "select",
				Usage: "comma separated columns to project, empty selects all",
			},
			&cli.StringSliceFlag{
				Name:  "where",
				Usage: "row filter, e.g. --where 'id>=5' --where 'dt=2020-03-20'",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cat, bucket, err := setup(c)
			if err != nil {
				return err
			}
			defer cat.Close()
			table, err := cat.Load(c.String("table"))
			if err != nil {
				return err
			}
			projection, err := project(table.Schema(), c.String("select"))
			if err != nil {
				return err
			}
			fs, err := where(table.Schema(), c.StringSlice("where"))
			if err != nil {
				return err
			}
			stream, err := scan.Scan(ctx, bucket, table, projection, fs)
			if err != nil {
				return err
			}
			defer stream.Close()
			records, err := stream.Records()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, rec := range records {
				row := make(map[string]any, rec.Len())
				for i, f := range rec.Schema().Fields() {
					row[f.Name] = rec.Value(i)
				}
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func describeCMD() *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Print a table's schema, partition spec and manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "table",
				Usage: "table to describe",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cat, _, err := setup(c)
			if err != nil {
				return err
			}
			defer cat.Close()
			table, err := cat.Load(c.String("table"))
			if err != nil {
				return err
			}
			fmt.Println(table.Schema())
			for _, p := range table.Spec.Fields {
				fmt.Printf("partition: %s (id %d)\n", p.Name, p.FieldID)
			}
			for _, f := range table.Manifest {
				fmt.Printf("%s %s %s rows=%d\n", f.ID, f.Format, f.Path, f.Rows)
			}
			return nil
		},
	}
}

func project(s *schema.Schema, sel string) ([]int, error) {
	if sel == "" {
		return nil, nil
	}
	var ids []int
	for _, name := range strings.Split(sel, ",") {
		f, ok := s.ByName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		ids = append(ids, f.ID)
	}
	return ids, nil
}

var ops = []struct {
	text string
	op   filters.Op
}{
	{">=", filters.GtEq},
	{"<=", filters.LtEq},
	{"!=", filters.Neq},
	{">", filters.Gt},
	{"<", filters.Lt},
	{"=", filters.Eq},
}

func where(s *schema.Schema, exprs []string) (filters.List, error) {
	var ls filters.List
	for _, expr := range exprs {
		f, err := parseFilter(s, expr)
		if err != nil {
			return nil, err
		}
		ls = append(ls, f)
	}
	return ls, nil
}

func parseFilter(s *schema.Schema, expr string) (*filters.Filter, error) {
	for _, o := range ops {
		name, raw, ok := strings.Cut(expr, o.text)
		if !ok {
			continue
		}
		f, found := s.ByName(strings.TrimSpace(name))
		if !found {
			return nil, fmt.Errorf("unknown column %q in filter %q", name, expr)
		}
		return &filters.Filter{
			Field: f.ID,
			Op:    o.op,
			Value: literal(strings.TrimSpace(raw)),
		}, nil
	}
	return nil, fmt.Errorf("cannot parse filter %q", expr)
}

func literal(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
