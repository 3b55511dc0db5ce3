// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// DiscoveryFilter narrows discovery listings.
type DiscoveryFilter struct {
	Status model.DiscoveryStatus
	Limit  int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetAllTransactions(ctx context.Context) ([]model.Transaction, error)

	// Discovery operations
	GetDiscoveryByCode(ctx context.Context, code string) (*model.MerchantDiscovery, error)
	GetDiscoveryByID(ctx context.Context, id string) (*model.MerchantDiscovery, error)
	GetDiscoveries(ctx context.Context, filter DiscoveryFilter) ([]model.MerchantDiscovery, error)
	GetValidatedDiscoveries(ctx context.Context) ([]model.MerchantDiscovery, error)
	AddMerchantDiscovery(ctx context.Context, discovery *model.MerchantDiscovery) error
	UpdateDiscoveryStatus(ctx context.Context, id string, update model.StatusUpdate) error

	// Learning operations
	GetAllLearning(ctx context.Context) ([]model.DiscoveryLearning, error)
	AddDiscoveryLearning(ctx context.Context, learning *model.DiscoveryLearning) error

	// RecordValidation applies a status transition and appends its learning
	// record in one database transaction.
	RecordValidation(ctx context.Context, id string, update model.StatusUpdate, learning *model.DiscoveryLearning) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
