package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"prorata/internal/amqp"
	"prorata/internal/cache"
	applog "prorata/internal/log"
	"prorata/internal/ports"
	"prorata/internal/rates"
	"prorata/internal/services"
	"prorata/internal/storage"
	"prorata/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store ports.Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store = memory.NewFromFiles(dataDir)
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// Rates are cached per day and currency; the janitor drops expired days
	rateCache := cache.NewLRUCache[decimal.Decimal](config.RatesCacheSize, config.RatesCacheTTL)
	caches := cache.NewManager()
	caches.Register(rateCache)
	if config.RatesCacheTTL > 0 {
		caches.StartCleanup(ctx, config.RatesCacheTTL/2)
	}
	converter := rates.NewClient(config.RatesURL, config.BaseCurrency, config.RatesTimeout, rateCache)

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			amqpClient, publisher = client, client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	expenses := services.NewExpenseService(store, converter, publisher, config.BaseCurrency)

	return &BackendResult{
		Store:      store,
		Expenses:   expenses,
		Categories: services.NewCategoryService(store),
		Stats:      services.NewStatisticsService(store, config.Convention, config.StatsConcurrency),
		AMQP:       amqpClient,
		Cleanup: func() error {
			caches.Stop()
			return expenses.Close()
		},
	}, nil
}
