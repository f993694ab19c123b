package backend

import (
	"context"
	"time"

	"prorata/internal/amqp"
	"prorata/internal/core"
	"prorata/internal/ports"
	"prorata/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired services and the cleanup releasing the
// record store, the AMQP connection and the cache janitor.
type BackendResult struct {
	Store      ports.Store
	Expenses   *services.ExpenseService
	Categories *services.CategoryService
	Stats      *services.StatisticsService
	// AMQP is nil when events are disabled or the broker is unreachable.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Events, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Currency conversion
	BaseCurrency   string
	RatesURL       string
	RatesTimeout   time.Duration
	RatesCacheSize int
	RatesCacheTTL  time.Duration

	// Statistics
	Convention       core.Convention
	StatsConcurrency int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
