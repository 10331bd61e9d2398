package conversation

import (
	"context"
	"fmt"
	"strings"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	Driver   string
	URL      string
	Database string
}

// DetectDriver resolves the driver from an explicit name or the URL scheme.
func DetectDriver(driver, url string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "":
	case DriverMemory, DriverPostgres, DriverSQLite, DriverMongo, DriverRedis:
		return d, nil
	case "postgresql", "pg":
		return DriverPostgres, nil
	case "sqlite3":
		return DriverSQLite, nil
	case "mongodb":
		return DriverMongo, nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", driver)
	}

	u := strings.ToLower(strings.TrimSpace(url))
	switch {
	case u == "":
		return DriverMemory, nil
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(u, "mongodb://"), strings.HasPrefix(u, "mongodb+srv://"):
		return DriverMongo, nil
	case strings.HasPrefix(u, "redis://"), strings.HasPrefix(u, "rediss://"):
		return DriverRedis, nil
	case strings.HasPrefix(u, "sqlite://"), strings.HasPrefix(u, "sqlite3://"),
		strings.HasPrefix(u, "file:"), strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"):
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("cannot infer store driver from DATABASE_URL")
}

// NewStore creates the configured backend. An empty config gives the in-memory store.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	driver, err := DetectDriver(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, err
	}
	if driver != DriverMemory && strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("store driver %s requires DATABASE_URL", driver)
	}

	switch driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.URL)
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.URL)
	case DriverMongo:
		return NewMongoStore(ctx, cfg.URL, cfg.Database)
	case DriverRedis:
		return NewRedisStore(ctx, cfg.URL)
	default:
		return NewInMemoryStore(), nil
	}
}
