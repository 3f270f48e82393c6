// Package config builds a cache chain and policy from a YAML document, for
// embedding applications and the CLI. Durations accept extended units like
// "1d" and "2w".
//
//	ttl: 12h
//	honor_headers: true
//	key_headers: [Accept, Accept-Language]
//	tiers:
//	  - type: memory
//	    capacity: 1000
//	  - type: sqlite
//	    path: /var/cache/cachio.db
//	  - type: redis
//	    url: redis://localhost:6379
//	    prefix: cachio
package config

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/cachio/cachio"
	"github.com/cachio/cachio/memory"
	"github.com/cachio/cachio/rediscache"
	"github.com/cachio/cachio/sqlite"
)

// Config describes a cache chain and its policy. Tiers are listed fastest
// first, matching the engine's probing order.
type Config struct {
	TTL          string   `yaml:"ttl"`
	HonorHeaders bool     `yaml:"honor_headers"`
	KeyHeaders   []string `yaml:"key_headers"`
	HashBody     bool     `yaml:"hash_body"`
	SingleFlight bool     `yaml:"single_flight"`
	Tiers        []Tier   `yaml:"tiers"`
}

// Tier describes one backend. Type selects the implementation; the other
// fields apply per type.
type Tier struct {
	Type     string `yaml:"type"` // memory, sqlite or redis
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"` // memory
	Path     string `yaml:"path"`     // sqlite
	URL      string `yaml:"url"`      // redis
	Prefix   string `yaml:"prefix"`   // redis
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "config: invalid yaml")
	}
	if len(cfg.Tiers) == 0 {
		return nil, errors.New("config: at least one tier is required")
	}
	return &cfg, nil
}

// Policy resolves the configured cache policy.
func (c *Config) Policy() (cachio.Policy, error) {
	p := cachio.Policy{HonorHeaders: c.HonorHeaders}
	if c.TTL != "" {
		ttl, err := str2duration.ParseDuration(c.TTL)
		if err != nil {
			return p, errors.Wrapf(err, "config: invalid ttl %q", c.TTL)
		}
		p.TTL = ttl
	}
	return p, nil
}

// Deriver resolves the configured key deriver.
func (c *Config) Deriver() cachio.Deriver {
	return cachio.Deriver{Headers: c.KeyHeaders, HashBody: c.HashBody}
}

// Backends constructs the configured chain in declared order. On error,
// already-constructed backends are closed.
func (c *Config) Backends(ctx context.Context) ([]cachio.Backend, error) {
	backends := make([]cachio.Backend, 0, len(c.Tiers))
	fail := func(err error) ([]cachio.Backend, error) {
		for _, b := range backends {
			b.Close()
		}
		return nil, err
	}
	for i, tier := range c.Tiers {
		switch tier.Type {
		case "memory":
			opts := []memory.Option{}
			if tier.Name != "" {
				opts = append(opts, memory.WithName(tier.Name))
			}
			b, err := memory.New(ctx, tier.Capacity, opts...)
			if err != nil {
				return fail(errors.Wrapf(err, "config: tier %d", i))
			}
			backends = append(backends, b)
		case "sqlite":
			opts := []sqlite.Option{}
			if tier.Name != "" {
				opts = append(opts, sqlite.WithName(tier.Name))
			}
			b, err := sqlite.New(ctx, tier.Path, opts...)
			if err != nil {
				return fail(errors.Wrapf(err, "config: tier %d", i))
			}
			backends = append(backends, b)
		case "redis":
			ropts, err := redis.ParseURL(tier.URL)
			if err != nil {
				return fail(errors.Wrapf(err, "config: tier %d: invalid redis url", i))
			}
			opts := []rediscache.Option{rediscache.WithOwnedClient()}
			if tier.Name != "" {
				opts = append(opts, rediscache.WithName(tier.Name))
			}
			if tier.Prefix != "" {
				opts = append(opts, rediscache.WithPrefix(tier.Prefix))
			}
			backends = append(backends, rediscache.New(redis.NewClient(ropts), opts...))
		default:
			return fail(errors.Newf("config: tier %d: unknown type %q", i, tier.Type))
		}
	}
	return backends, nil
}

// Engine builds a ready-to-use engine from the configuration. Extra options
// are applied after the configured ones, so callers can layer a logger on.
func (c *Config) Engine(ctx context.Context, fetcher cachio.Fetcher, extra ...cachio.Option) (*cachio.Engine, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	backends, err := c.Backends(ctx)
	if err != nil {
		return nil, err
	}
	opts := []cachio.Option{
		cachio.WithPolicy(policy),
		cachio.WithDeriver(c.Deriver()),
	}
	if c.SingleFlight {
		opts = append(opts, cachio.WithSingleFlight())
	}
	opts = append(opts, extra...)
	engine, err := cachio.New(fetcher, backends, opts...)
	if err != nil {
		for _, b := range backends {
			b.Close()
		}
		return nil, err
	}
	return engine, nil
}
