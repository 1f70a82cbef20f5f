package storage

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := LoadConfig()

	if cfg.MaxOpenConns != defaultMaxOpenConns {
		t.Errorf("MaxOpenConns = %d, want %d", cfg.MaxOpenConns, defaultMaxOpenConns)
	}

	if cfg.MaxIdleConns != defaultMaxIdleConns {
		t.Errorf("MaxIdleConns = %d, want %d", cfg.MaxIdleConns, defaultMaxIdleConns)
	}

	if cfg.ConnMaxLifetime != defaultConnMaxLifetime {
		t.Errorf("ConnMaxLifetime = %v, want %v", cfg.ConnMaxLifetime, defaultConnMaxLifetime)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("DATABASE_URL", "postgres://lexhub:secret@db:5432/lexhub")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("DATABASE_CONN_MAX_LIFETIME", "1h")

	cfg := LoadConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	if cfg.MaxOpenConns != 50 {
		t.Errorf("MaxOpenConns = %d, want 50", cfg.MaxOpenConns)
	}

	if cfg.ConnMaxLifetime != time.Hour {
		t.Errorf("ConnMaxLifetime = %v, want 1h", cfg.ConnMaxLifetime)
	}
}

func TestConfigValidate_EmptyURL(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := &Config{databaseURL: "   "}

	if err := cfg.Validate(); !errors.Is(err, ErrDatabaseURLEmpty) {
		t.Errorf("Validate() error = %v, want ErrDatabaseURLEmpty", err)
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			"masks password",
			"postgres://lexhub:secret@db:5432/lexhub?sslmode=disable",
			"postgres://lexhub:***@db:5432/lexhub?sslmode=disable",
		},
		{
			"no password",
			"postgres://lexhub@db:5432/lexhub",
			"postgres://lexhub@db:5432/lexhub",
		},
		{
			"no userinfo",
			"postgres://db:5432/lexhub",
			"postgres://db:5432/lexhub",
		},
		{
			"empty url",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{databaseURL: tt.url}
			if got := cfg.MaskDatabaseURL(); got != tt.want {
				t.Errorf("MaskDatabaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
