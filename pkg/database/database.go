package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"

	memoryDataSource = ":memory:"
)

type Options struct {
	Driver          string
	DataSource      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

type Option func(*Options)

func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

// WithURL sets driver and data source from a connection URL, see ParseURL.
func WithURL(rawURL string) Option {
	return func(o *Options) { o.Driver, o.DataSource = ParseURL(rawURL) }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithConnMaxLifetime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = duration }
}

func WithConnMaxIdleTime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxIdleTime = duration }
}

func WithPingTimeout(duration time.Duration) Option {
	return func(o *Options) { o.PingTimeout = duration }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// ParseURL maps a connection URL onto a registered database/sql driver name and the
// data source that driver expects. postgres:// and postgresql:// select pgx,
// sqlite:// and sqlite3:// select sqlite3, anything else is a sqlite path.
func ParseURL(rawURL string) (driver, dataSource string) {
	u := strings.TrimSpace(rawURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres, u
	case strings.HasPrefix(u, "sqlite3://"):
		return DriverSQLite, strings.TrimPrefix(u, "sqlite3://")
	case strings.HasPrefix(u, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(u, "sqlite://")
	default:
		return DriverSQLite, u
	}
}

func (o *Options) validate() error {
	var errs []error
	if o.Driver == "" {
		errs = append(errs, errors.New("database driver cannot be empty"))
	}
	if o.DataSource == "" {
		errs = append(errs, errors.New("database data source cannot be empty"))
	}
	if o.RetryAttempts < 1 {
		o.RetryAttempts = 1
	}
	// every sqlite connection to :memory: opens its own empty database
	if o.Driver == DriverSQLite && o.DataSource == memoryDataSource {
		o.MaxOpenConns = 1
		o.ConnMaxLifetime = 0
		o.ConnMaxIdleTime = 0
	}
	return errors.Join(errs...)
}

func (o *Options) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(o.Driver, o.DataSource)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
	db.SetConnMaxIdleTime(o.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, o.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// New opens a pool and pings it, retrying with linear backoff until the attempts
// run out or ctx is done.
func New(ctx context.Context, opts ...Option) (*sql.DB, error) {
	o := &Options{
		Driver:          DriverSQLite,
		DataSource:      memoryDataSource,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		PingTimeout:     3 * time.Second,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	var err error
	for attempt := 1; ; attempt++ {
		var db *sql.DB
		if db, err = o.connect(ctx); err == nil {
			return db, nil
		}
		if attempt == o.RetryAttempts {
			break
		}

		wait := time.NewTimer(time.Duration(attempt) * o.RetryDelay)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, fmt.Errorf("database connect canceled after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		case <-wait.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", o.RetryAttempts, err)
}
