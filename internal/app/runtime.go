// Package app builds the infrastructure both screens share from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ride-convoy/internal/domain/user"
	"ride-convoy/internal/general/cache"
	"ride-convoy/internal/general/config"
	"ride-convoy/internal/general/jwt"
	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/general/osrm"
	"ride-convoy/internal/general/postgres"
	"ride-convoy/internal/general/rabbitmq"
	"ride-convoy/internal/general/sqlite"
	"ride-convoy/internal/general/websocket"
	"ride-convoy/internal/ports"
	"ride-convoy/internal/software/channel"
	"ride-convoy/internal/software/route"
	"ride-convoy/internal/software/status"
)

// devTokenTTL bounds tokens minted locally from jwt.secret_key.
const devTokenTTL = 12 * time.Hour

var ErrNoIdentity = errors.New("rider id unknown: set rider.id or a rider.token with a subject")

// Identity is who the local rider is.
type Identity struct {
	RiderID     string
	DisplayName string
	Token       string
}

// Runtime holds the wired infrastructure. Close releases it in reverse
// order of construction.
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	Identity Identity
	Channel  *channel.Channel
	Resolver *route.Resolver
	Registry *status.Registry
	Status   *status.Server

	closers []func()
}

// Build wires transport, route cache, routing client and status API.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: log, Registry: status.NewRegistry()}

	identity, err := ResolveIdentity(cfg)
	if err != nil {
		log.Error(ctx, "identity_failed", "Failed to determine the local rider", err, nil)
		return nil, err
	}
	rt.Identity = identity
	log.Info(log.WithRiderID(ctx, identity.RiderID), "identity_resolved", "Local rider resolved", map[string]any{
		"display_name": identity.DisplayName,
	})

	transport, err := rt.buildTransport(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Channel = channel.New(transport, channel.Options{
		Logger:         log.Named("session-channel"),
		OutboundBuffer: cfg.Channel.OutboundBuffer,
		OnError: func(err error) {
			log.Error(ctx, "session_channel_error", "Session channel reported an error", err, nil)
		},
	})
	rt.closers = append(rt.closers, rt.Channel.Close)

	store, err := rt.buildCache(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Resolver = route.NewResolver(
		osrm.NewClient(cfg.Routing.BaseURL, cfg.Routing.Profile, cfg.Routing.Timeout),
		store,
		route.Options{
			Logger:  log.Named("route-resolver"),
			Timeout: cfg.Routing.Timeout,
			Policy: route.CachePolicy{
				TTL:                           cfg.Cache.TTL,
				InvalidateOnDestinationChange: cfg.Cache.InvalidateOnDestinationChange,
			},
		},
	)

	rt.Status = status.NewServer(cfg.Status.Addr, rt.Registry, log.Named("status-api"))

	return rt, nil
}

func (rt *Runtime) buildTransport(ctx context.Context) (ports.SessionTransport, error) {
	switch rt.Config.Channel.Transport {
	case "amqp":
		client, err := rabbitmq.ConnectRabbitMQ(ctx, rt.Config, rt.Logger)
		if err != nil {
			rt.Logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		return rabbitmq.NewTransport(client), nil

	default:
		return websocket.NewDialer(websocket.Options{
			URL:          rt.Config.Channel.URL,
			Token:        rt.Identity.Token,
			DialTimeout:  rt.Config.Channel.DialTimeout,
			WriteTimeout: rt.Config.Channel.WriteTimeout,
			PingInterval: rt.Config.Channel.PingInterval,
			PongWait:     rt.Config.Channel.PongWait,
		}, rt.Logger.Named("websocket")), nil
	}
}

func (rt *Runtime) buildCache(ctx context.Context) (ports.RouteCacheStore, error) {
	switch rt.Config.Cache.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, rt.Config, rt.Logger)
		if err != nil {
			rt.Logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		repo, err := postgres.NewRouteCacheRepo(ctx, pool)
		if err != nil {
			rt.Logger.Error(ctx, "route_cache_init_failed", "Failed to prepare route cache table", err, nil)
			return nil, err
		}
		return repo, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, rt.Config.Cache.SQLitePath)
		if err != nil {
			rt.Logger.Error(ctx, "sqlite_open_failed", "Failed to open route cache database", err, map[string]any{"path": rt.Config.Cache.SQLitePath})
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		store, err := sqlite.NewRouteCacheStore(ctx, db)
		if err != nil {
			rt.Logger.Error(ctx, "route_cache_init_failed", "Failed to prepare route cache table", err, nil)
			return nil, err
		}
		return store, nil

	default:
		store := cache.NewRouteStore(rt.Config.Cache.TTL)
		rt.closers = append(rt.closers, store.Close)
		return store, nil
	}
}

// Close releases everything Build acquired.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// ResolveIdentity works out the local rider from config. A configured token
// wins; without one, a token is minted from jwt.secret_key when present.
// When both are set the token must verify against the secret.
func ResolveIdentity(cfg *config.Config) (Identity, error) {
	id := Identity{
		RiderID:     strings.TrimSpace(cfg.Rider.ID),
		DisplayName: strings.TrimSpace(cfg.Rider.DisplayName),
		Token:       strings.TrimSpace(cfg.Rider.Token),
	}

	if id.Token != "" {
		claims, err := tokenClaims(id.Token, cfg.JWT.SecretKey)
		if err != nil {
			return Identity{}, fmt.Errorf("rider token: %w", err)
		}
		if id.RiderID == "" {
			id.RiderID = claims.Subject
		}
		if id.DisplayName == "" {
			id.DisplayName = claims.DisplayName
		}
	}

	if id.RiderID == "" {
		return Identity{}, ErrNoIdentity
	}
	if id.DisplayName == "" {
		id.DisplayName = id.RiderID
	}

	if id.Token == "" && cfg.JWT.SecretKey != "" {
		mgr, err := jwt.NewManager(cfg.JWT.SecretKey, devTokenTTL)
		if err != nil {
			return Identity{}, err
		}
		token, _, err := mgr.IssueRiderToken(id.RiderID, id.DisplayName, user.RoleRider)
		if err != nil {
			return Identity{}, fmt.Errorf("issue rider token: %w", err)
		}
		id.Token = token
	}

	return id, nil
}

func tokenClaims(token, secret string) (*jwt.Claims, error) {
	if strings.TrimSpace(secret) == "" {
		return jwt.PeekClaims(token)
	}
	mgr, err := jwt.NewManager(secret, devTokenTTL)
	if err != nil {
		return nil, err
	}
	return mgr.Verify(token, user.RoleRider, user.RoleAdmin)
}
