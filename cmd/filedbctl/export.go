package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/Limetric/filedb/engine"
)

// exportTarget abstracts the external SQL database an engine table is
// dumped into, mirroring the teacher's one-small-interface-per-backend
// source abstraction.
type exportTarget interface {
	// InsertRow writes one live row, keyed by column name, into table.
	InsertRow(ctx context.Context, table string, row map[string]string, columns []string) error
	Close() error
}

func newExportTarget(ctx context.Context, driver, dsn string) (exportTarget, error) {
	switch driver {
	case "mysql":
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		return &sqlExportTarget{db: db, placeholder: "?"}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		return &sqlExportTarget{db: db, placeholder: "?"}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &pgxExportTarget{pool: pool}, nil
	default:
		return nil, fmt.Errorf("unsupported export driver %q", driver)
	}
}

// sqlExportTarget backs MySQL and SQLite, both driven through database/sql
// with a "?" placeholder style.
type sqlExportTarget struct {
	db          *sql.DB
	placeholder string
}

func (s *sqlExportTarget) InsertRow(ctx context.Context, table string, row map[string]string, columns []string) error {
	placeholders := make([]string, len(columns))
	values := make([]any, len(columns))
	for i, c := range columns {
		placeholders[i] = "?"
		values[i] = strings.TrimSpace(row[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := s.db.ExecContext(ctx, query, values...)
	return err
}

func (s *sqlExportTarget) Close() error { return s.db.Close() }

// pgxExportTarget backs PostgreSQL via pgxpool's "$n" placeholder style.
type pgxExportTarget struct {
	pool *pgxpool.Pool
}

func (p *pgxExportTarget) InsertRow(ctx context.Context, table string, row map[string]string, columns []string) error {
	placeholders := make([]string, len(columns))
	values := make([]any, len(columns))
	for i, c := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		values[i] = strings.TrimSpace(row[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := p.pool.Exec(ctx, query, values...)
	return err
}

func (p *pgxExportTarget) Close() error { p.pool.Close(); return nil }

var exportCmd = &cobra.Command{
	Use:   "export <dir> <table>",
	Short: "Dump a table's live rows into an external SQL database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("export requires --config pointing at a driver TOML config")
		}
		cfg, err := loadDriverConfig(configPath)
		if err != nil {
			return err
		}

		db, err := engine.Open(args[0])
		if err != nil {
			return err
		}
		t, err := db.Table(args[1])
		if err != nil {
			return err
		}

		ctx := context.Background()
		target, err := newExportTarget(ctx, cfg.Export.Driver, cfg.Export.DSN)
		if err != nil {
			return err
		}
		defer target.Close()

		v := engine.NewRA()
		if err := v.PrepareTable(t); err != nil {
			return err
		}
		if t.Has("~del") {
			if err := v.Select("~del", notDeleted, ""); err != nil {
				return err
			}
		}

		total := v.NumberOfRows()
		logger().Printf("exporting %s rows from %s to %s (%s)", humanize.Comma(int64(total)), t.Name(), cfg.Export.Table, cfg.Export.Driver)

		columns := t.Columns()
		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, cfg.Export.Workers)

		for i := 0; i < total; i++ {
			i := i
			row, err := v.ReadRow(i)
			if err != nil {
				return err
			}
			sem <- struct{}{}
			g.Go(func() error {
				defer func() { <-sem }()
				return target.InsertRow(gctx, cfg.Export.Table, row, columns)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		logger().Printf("export complete: %s rows written", humanize.Comma(int64(total)))
		return nil
	},
}
