package clickhouse

import "time"

// Option configures a Client.
type Option func(*Config)

// Config describes one ClickHouse endpoint and its pool.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	UseHTTP         bool
	AsyncInsert     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	MaxExecTime     time.Duration
	PingTimeout     time.Duration
}

func defaultConfig() Config {
	return Config{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		PingTimeout:     5 * time.Second,
	}
}

func WithAddr(host string, port int) Option {
	return func(c *Config) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
	}
}

func WithDatabase(database string) Option {
	return func(c *Config) {
		if database != "" {
			c.Database = database
		}
	}
}

func WithCredentials(user, password string) Option {
	return func(c *Config) {
		if user != "" {
			c.User = user
		}
		c.Password = password
	}
}

// WithPool bounds the database/sql pool.
func WithPool(maxOpen, maxIdle int) Option {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithTimeouts sets dial and read timeouts; zero keeps the default.
func WithTimeouts(dial, read time.Duration) Option {
	return func(c *Config) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(on bool) Option {
	return func(c *Config) { c.UseHTTP = on }
}

// WithAsyncInsert enables server-side async_insert for bar appends.
func WithAsyncInsert(on bool) Option {
	return func(c *Config) { c.AsyncInsert = on }
}

// WithMaxExecutionTime caps each query server-side (seconds granularity).
func WithMaxExecutionTime(d time.Duration) Option {
	return func(c *Config) { c.MaxExecTime = d }
}
