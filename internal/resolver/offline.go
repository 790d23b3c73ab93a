package resolver

import (
	"context"

	"github.com/franckalain/grocerylens/internal/models"
)

// Offline never finds a product. With it the pipeline serves only cached and
// fallback products, which is what a device without connectivity can do.
type Offline struct{}

type offlineFactory struct{}

func (offlineFactory) CreateResolver(context.Context) (Resolver, error) {
	return Offline{}, nil
}

// FetchProductByBarcode always reports not found.
func (Offline) FetchProductByBarcode(context.Context, string) (*models.ProductRecord, error) {
	return nil, nil
}
