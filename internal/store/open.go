package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrNoURL is returned by Open when no connection string is configured.
var ErrNoURL = errors.New("no store connection string configured")

// Default names used when Options leaves them empty.
const (
	DefaultDatabase       = "trasporti"
	DefaultCollection     = "trasporti"
	DefaultConnectTimeout = 10 * time.Second
)

// Options configures Open.
type Options struct {
	URL            string
	Database       string // MongoDB database name
	Collection     string // records collection (MongoDB) or table (PostgreSQL)
	MaxConns       int
	MinConns       int
	ConnectTimeout time.Duration
}

func (o Options) database() string {
	if o.Database == "" {
		return DefaultDatabase
	}
	return o.Database
}

func (o Options) collection() string {
	if o.Collection == "" {
		return DefaultCollection
	}
	return o.Collection
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout
}

// Open connects to the backend named by the URL scheme:
// mongodb and mongodb+srv, postgres and postgresql, or memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse store URL: %w", err)
	}

	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return OpenMongo(ctx, opts)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, opts)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// Backend names the backend for a connection string, for logging.
func Backend(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return "mongodb"
	case "postgres", "postgresql":
		return "postgres"
	default:
		return u.Scheme
	}
}
