package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type DB struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	User string `koanf:"user"`
	Pass string `koanf:"password"`
	Name string `koanf:"database"`
}

type MQ struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	User string `koanf:"user"`
	Pass string `koanf:"password"`
}

type Redis struct {
	Addr string `koanf:"addr"`
	Pass string `koanf:"password"`
	DB   int    `koanf:"db"`
}

// Policy holds the product-policy knobs. The observed defaults are not
// load-bearing; operators may tune them per deployment.
type Policy struct {
	CartFreshness   time.Duration `koanf:"cart_freshness"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	OrderTimeout    time.Duration `koanf:"order_timeout"`
	QueueCapacity   int           `koanf:"queue_capacity"`
	QueueMaxRetries int           `koanf:"queue_max_retries"`
	RestaurantType  string        `koanf:"restaurant_type"`
}

type App struct {
	Database DB     `koanf:"database"`
	Rabbit   MQ     `koanf:"rabbitmq"`
	Redis    Redis  `koanf:"redis"`
	Policy   Policy `koanf:"policy"`
}

func Defaults() App {
	return App{
		Database: DB{Port: 5432},
		Rabbit:   MQ{Port: 5672},
		Redis:    Redis{Addr: "localhost:6379"},
		Policy: Policy{
			CartFreshness:   24 * time.Hour,
			PollInterval:    10 * time.Second,
			OrderTimeout:    30 * time.Minute,
			QueueCapacity:   50,
			QueueMaxRetries: 3,
		},
	}
}

// envTransform maps TABLEORDER_DATABASE_HOST to database.host. Section
// names are single words, so only the first underscore is a separator;
// everything after it is the leaf key, which may itself contain
// underscores (policy.cart_freshness, policy.queue_max_retries).
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "TABLEORDER_"))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// Load reads the YAML config at path and applies TABLEORDER_* environment
// overrides.
func Load(path string) (App, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return App{}, err
	}
	if err := k.Load(env.Provider("TABLEORDER_", ".", envTransform), nil); err != nil {
		return App{}, err
	}
	a := Defaults()
	if err := k.Unmarshal("", &a); err != nil {
		return App{}, err
	}
	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, errors.New("invalid config: missing database/rabbitmq host")
	}
	return a, nil
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
