package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tokensmith/internal/config"
	migrations "github.com/dropDatabas3/tokensmith/migrations/postgres"
)

func newMigrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Aplica las migraciones de Postgres embebidas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = strings.ToLower(args[0])
			}
			if action != "up" && action != "down" {
				return fmt.Errorf("acción desconocida %q (up|down)", action)
			}
			return runMigrate(cmd.Context(), *cfgPath, action)
		},
	}
}

func runMigrate(ctx context.Context, cfgPath, action string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cargando config: %w", err)
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate requiere storage.driver=postgres (actual: %s)", cfg.Storage.Driver)
	}

	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("conectando a postgres: %w", err)
	}
	defer pool.Close()

	files, err := listMigrations(action)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("sin migraciones *_%s.sql, nada que hacer\n", action)
		return nil
	}

	for _, f := range files {
		sql, err := migrations.FS.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("aplicando %s: %w", f, err)
		}
		fmt.Printf("aplicada %s\n", f)
	}
	return nil
}

// listMigrations devuelve los archivos del sentido pedido.
// Up en orden ascendente, down en descendente.
func listMigrations(action string) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	suffix := "_" + action + ".sql"
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	if action == "down" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
