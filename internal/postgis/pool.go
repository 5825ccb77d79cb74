package postgis

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Options locates and sizes the database pool.
type Options struct {
	// URL is a full connection string. When empty it is built from the
	// individual fields.
	URL      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string

	// SearchPath is set as the session search_path, e.g. "data,public".
	SearchPath string
	MaxConns   int32
	// ConnectRetries is how many times a failed initial ping is retried.
	ConnectRetries uint
}

// ConnString returns the connection string described by o.
func (o Options) ConnString() string {
	if o.URL != "" {
		return o.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:   "/" + o.Name,
	}
	if o.Password != "" {
		u.User = url.UserPassword(o.User, o.Password)
	} else if o.User != "" {
		u.User = url.User(o.User)
	}
	return u.String()
}

// PoolConfig parses o into a pgxpool configuration.
func (o Options) PoolConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(o.ConnString())
	if err != nil {
		return nil, fmt.Errorf("invalid database connection string: %w", err)
	}
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if o.SearchPath != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = o.SearchPath
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "geoff"
	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	return cfg, nil
}

// Connect opens a pool and pings it, retrying with backoff while the
// database comes up.
func Connect(ctx context.Context, o Options, log *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := o.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.Do(
		func() error { return pool.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(o.ConnectRetries+1),
		retry.Delay(250*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("database ping failed",
				zap.Uint("attempt", n+1),
				zap.String("host", cfg.ConnConfig.Host),
				zap.Error(err))
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	log.Info("connected to database",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}
