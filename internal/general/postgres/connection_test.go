package postgres

import (
	"strings"
	"testing"

	"ride-convoy/internal/general/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Host = "db"
	cfg.Database.Port = 5433
	cfg.Database.User = "convoy"
	cfg.Database.Password = "s3cr@t"
	cfg.Database.Name = "routes"

	got := DSN(cfg)

	if !strings.HasPrefix(got, "postgres://convoy:s3cr%40t@db:5433/routes?") {
		t.Fatalf("DSN = %q", got)
	}
	for _, want := range []string{"sslmode=disable", "application_name=ride-convoy"} {
		if !strings.Contains(got, want) {
			t.Errorf("DSN %q missing %q", got, want)
		}
	}
}
