package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Rider struct {
		ID          string `yaml:"id" env:"RIDER_ID"`
		DisplayName string `yaml:"display_name" env:"RIDER_DISPLAY_NAME"`
		Token       string `yaml:"token" env:"RIDER_TOKEN"`
	} `yaml:"rider"`
	Channel struct {
		Transport      string        `yaml:"transport" env:"CHANNEL_TRANSPORT" validate:"oneof=websocket amqp"`
		URL            string        `yaml:"url" env:"CHANNEL_URL" validate:"omitempty,url"`
		DialTimeout    time.Duration `yaml:"dial_timeout" env:"CHANNEL_DIAL_TIMEOUT" validate:"gt=0"`
		WriteTimeout   time.Duration `yaml:"write_timeout" env:"CHANNEL_WRITE_TIMEOUT" validate:"gt=0"`
		PingInterval   time.Duration `yaml:"ping_interval" env:"CHANNEL_PING_INTERVAL" validate:"gt=0"`
		PongWait       time.Duration `yaml:"pong_wait" env:"CHANNEL_PONG_WAIT" validate:"gtfield=PingInterval"`
		OutboundBuffer int           `yaml:"outbound_buffer" env:"CHANNEL_OUTBOUND_BUFFER" validate:"gt=0"`
	} `yaml:"channel"`
	RabbitMQ struct {
		Host     string `yaml:"host" env:"RABBITMQ_HOST"`
		Port     int    `yaml:"port" env:"RABBITMQ_PORT" validate:"gt=0,lte=65535"`
		User     string `yaml:"user" env:"RABBITMQ_USER"`
		Password string `yaml:"password" env:"RABBITMQ_PASSWORD"`
		Exchange string `yaml:"exchange" env:"RABBITMQ_EXCHANGE"`
	} `yaml:"rabbitmq"`
	Routing struct {
		BaseURL string        `yaml:"base_url" env:"ROUTING_BASE_URL" validate:"required,url"`
		Profile string        `yaml:"profile" env:"ROUTING_PROFILE" validate:"required"`
		Timeout time.Duration `yaml:"timeout" env:"ROUTING_TIMEOUT" validate:"gt=0"`
	} `yaml:"routing"`
	Cache struct {
		Backend                       string        `yaml:"backend" env:"CACHE_BACKEND" validate:"oneof=memory sqlite postgres"`
		SQLitePath                    string        `yaml:"sqlite_path" env:"CACHE_SQLITE_PATH"`
		TTL                           time.Duration `yaml:"ttl" env:"CACHE_TTL" validate:"gte=0"`
		InvalidateOnDestinationChange bool          `yaml:"invalidate_on_destination_change" env:"CACHE_INVALIDATE_ON_DESTINATION_CHANGE"`
	} `yaml:"cache"`
	Database struct {
		Host     string `yaml:"host" env:"DB_HOST"`
		Port     int    `yaml:"port" env:"DB_PORT" validate:"gt=0,lte=65535"`
		User     string `yaml:"user" env:"DB_USER"`
		Password string `yaml:"password" env:"DB_PASSWORD"`
		Name     string `yaml:"database" env:"DB_NAME"`
	} `yaml:"database"`
	Location struct {
		Interval          time.Duration `yaml:"interval" env:"LOCATION_INTERVAL" validate:"gte=1s"`
		MinDistanceMeters float64       `yaml:"min_distance_meters" env:"LOCATION_MIN_DISTANCE_METERS" validate:"gte=0"`
	} `yaml:"location"`
	Notifications struct {
		DisplayDuration time.Duration `yaml:"display_duration" env:"NOTIFICATIONS_DISPLAY_DURATION" validate:"gt=0"`
	} `yaml:"notifications"`
	Status struct {
		Addr string `yaml:"addr" env:"STATUS_ADDR"`
	} `yaml:"status"`
	JWT struct {
		SecretKey string `yaml:"secret_key" env:"JWT_SECRET_KEY"`
	} `yaml:"jwt"`
}

// LoadFromFile loads config from a YAML file, applies environment overrides
// and defaults, and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFromFile without the file read.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// environment wins over the file
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Channel
	if cfg.Channel.Transport == "" {
		cfg.Channel.Transport = "websocket"
	}
	if cfg.Channel.DialTimeout == 0 {
		cfg.Channel.DialTimeout = 10 * time.Second
	}
	if cfg.Channel.WriteTimeout == 0 {
		cfg.Channel.WriteTimeout = 5 * time.Second
	}
	if cfg.Channel.PingInterval == 0 {
		cfg.Channel.PingInterval = 30 * time.Second
	}
	if cfg.Channel.PongWait == 0 {
		cfg.Channel.PongWait = 60 * time.Second
	}
	if cfg.Channel.OutboundBuffer == 0 {
		cfg.Channel.OutboundBuffer = 64
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "ride_sessions"
	}

	// Routing
	if cfg.Routing.BaseURL == "" {
		cfg.Routing.BaseURL = "https://router.project-osrm.org"
	}
	if cfg.Routing.Profile == "" {
		cfg.Routing.Profile = "driving"
	}
	if cfg.Routing.Timeout == 0 {
		cfg.Routing.Timeout = 10 * time.Second
	}

	// Cache
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "sqlite"
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = "convoy-cache.db"
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// Location
	if cfg.Location.Interval == 0 {
		cfg.Location.Interval = 5 * time.Second
	}

	// Notifications
	if cfg.Notifications.DisplayDuration == 0 {
		cfg.Notifications.DisplayDuration = 2 * time.Second
	}

	if cfg.Status.Addr == "" {
		cfg.Status.Addr = "127.0.0.1:7070"
	}
}

// validate runs the struct tags and then the cross-section rules the tags cannot express.
func (c *Config) validate() error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fieldPath(fe.Namespace()), fe.Tag()))
		}
	}

	if c.Rider.ID == "" && c.Rider.Token == "" {
		problems = append(problems, "rider.id or rider.token is required")
	}

	if c.Channel.Transport == "websocket" && c.Channel.URL == "" {
		problems = append(problems, "channel.url is required for the websocket transport")
	}

	if c.Channel.Transport == "amqp" {
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required for the amqp transport")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required for the amqp transport")
		}
	}

	if c.Cache.Backend == "postgres" {
		if c.Database.User == "" {
			problems = append(problems, "database.user is required for the postgres cache")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.database is required for the postgres cache")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// fieldPath turns "Config.Channel.URL" into "channel.url".
func fieldPath(namespace string) string {
	namespace = strings.TrimPrefix(namespace, "Config.")
	return strings.ToLower(namespace)
}
