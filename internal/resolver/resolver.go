// Package resolver fetches product records from remote data sources.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/config"
	"github.com/franckalain/grocerylens/internal/models"
)

// Resolver fetches a product from a remote data source by barcode.
type Resolver interface {
	// FetchProductByBarcode returns nil, nil when the source does not know the
	// barcode. Errors are reserved for transport and decoding failures.
	FetchProductByBarcode(ctx context.Context, barcode string) (*models.ProductRecord, error)
}

// Factory creates a resolver from configuration.
type Factory interface {
	CreateResolver(ctx context.Context) (Resolver, error)
}

// NewResolver creates the resolver selected by cfg.Type.
func NewResolver(ctx context.Context, cfg config.Remote, logger *zap.SugaredLogger) (Resolver, error) {
	var factory Factory

	switch cfg.Type {
	case "openfoodfacts":
		factory = NewOpenFoodFactsFactory(OpenFoodFactsConfig{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout.Std(),
			MaxRetries: cfg.MaxRetries,
			UserAgent:  cfg.UserAgent,
		}, logger)
	case "google":
		factory = NewGoogleFactory(GoogleConfig{
			ProjectID:       cfg.Google.ProjectID,
			Location:        cfg.Google.Location,
			CredentialsFile: cfg.Google.CredentialsFile,
			Model:           cfg.Google.Model,
		}, logger)
	case "offline", "":
		factory = offlineFactory{}
	default:
		return nil, fmt.Errorf("unsupported resolver type: %s", cfg.Type)
	}
	return factory.CreateResolver(ctx)
}
