package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-convoy/internal/domain/user"
	"ride-convoy/internal/general/config"
	"ride-convoy/internal/general/jwt"
	"ride-convoy/internal/general/logger"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestResolveIdentity(t *testing.T) {
	t.Run("id only", func(t *testing.T) {
		var cfg config.Config
		cfg.Rider.ID = "u1"
		id, err := ResolveIdentity(&cfg)
		if err != nil || id.RiderID != "u1" || id.DisplayName != "u1" || id.Token != "" {
			t.Fatalf("id = %+v, %v", id, err)
		}
	})

	t.Run("minted from secret", func(t *testing.T) {
		var cfg config.Config
		cfg.Rider.ID = "u1"
		cfg.Rider.DisplayName = "Ana"
		cfg.JWT.SecretKey = "s3cret"
		id, err := ResolveIdentity(&cfg)
		if err != nil || id.Token == "" {
			t.Fatalf("id = %+v, %v", id, err)
		}
		claims, err := jwt.PeekClaims(id.Token)
		if err != nil || claims.Subject != "u1" || claims.DisplayName != "Ana" {
			t.Fatalf("claims = %+v, %v", claims, err)
		}
	})

	t.Run("from token", func(t *testing.T) {
		mgr, err := jwt.NewManager("s3cret", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		token, _, err := mgr.IssueRiderToken("u9", "Ben", "RIDER")
		if err != nil {
			t.Fatal(err)
		}
		var cfg config.Config
		cfg.Rider.Token = token
		id, err := ResolveIdentity(&cfg)
		if err != nil || id.RiderID != "u9" || id.DisplayName != "Ben" || id.Token != token {
			t.Fatalf("id = %+v, %v", id, err)
		}
	})

	t.Run("token verified against secret", func(t *testing.T) {
		mgr, err := jwt.NewManager("s3cret", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		token, _, err := mgr.IssueRiderToken("u9", "Ben", user.RoleAdmin)
		if err != nil {
			t.Fatal(err)
		}
		var cfg config.Config
		cfg.Rider.Token = token
		cfg.JWT.SecretKey = "s3cret"
		id, err := ResolveIdentity(&cfg)
		if err != nil || id.RiderID != "u9" || id.Token != token {
			t.Fatalf("id = %+v, %v", id, err)
		}

		cfg.JWT.SecretKey = "another"
		if _, err := ResolveIdentity(&cfg); err == nil {
			t.Fatal("token signed with another secret accepted")
		}
	})

	t.Run("token with unknown role", func(t *testing.T) {
		claims := jwt.NewRiderClaims("u9", "Ben", user.Role("DRIVER"), time.Hour)
		token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		if err != nil {
			t.Fatal(err)
		}
		var cfg config.Config
		cfg.Rider.Token = token
		cfg.JWT.SecretKey = "s3cret"
		if _, err := ResolveIdentity(&cfg); !errors.Is(err, jwt.ErrRoleForbidden) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("nobody", func(t *testing.T) {
		if _, err := ResolveIdentity(&config.Config{}); !errors.Is(err, ErrNoIdentity) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestBuildMemoryBackend(t *testing.T) {
	cfg, err := config.Parse([]byte(`
rider:
  id: u1
channel:
  url: ws://127.0.0.1:1/ws
cache:
  backend: memory
`))
	if err != nil {
		t.Fatal(err)
	}

	rt, err := Build(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if rt.Channel == nil || rt.Resolver == nil || rt.Status == nil || rt.Identity.RiderID != "u1" {
		t.Fatalf("runtime = %+v", rt)
	}
}
