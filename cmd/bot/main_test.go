package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
)

func TestAppGraph(t *testing.T) {
	for _, driver := range []string{config.JournalNone, config.JournalJSONL, config.JournalSQLite, config.JournalPostgres} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "values.yaml")
			body := "telegram:\n  token: \"123:abc\"\n  source: \"@signals\"\n" +
				"executor:\n  mode: dry_run\n" +
				"journal:\n  driver: " + driver + "\n  path: " + filepath.Join(t.TempDir(), "journal") + "\n"
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			if driver == config.JournalPostgres {
				t.Setenv("DATABASE_DSN", "postgres://localhost/signal_bot")
			}

			cfg, err := config.Load(path)
			require.NoError(t, err)
			require.NoError(t, fx.ValidateApp(appOptions(cfg, zap.NewNop())))
		})
	}
}
