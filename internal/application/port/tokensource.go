package port

import (
	"context"

	"pricefetcher/internal/domain"
)

// TokenSource produces the list of tokens to price. Implementations
// normalize rows and drop any row missing chain or address, so every ref
// handed to the pipeline is valid.
type TokenSource interface {
	Load(ctx context.Context) ([]domain.TokenRef, error)
}
