package checkpoint

import (
	"context"
	"fmt"
	"strings"
)

// Open returns the store for backend: "memory" (or ""), "mongo" or "postgres".  url is the
// connection string of the database backends.
func Open(ctx context.Context, backend string, url string) (Store, func(), error) {
	noop := func() {}

	switch strings.ToLower(backend) {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "mongo", "mongodb":
		s, err := NewMongoStore(ctx, url, "epi_contentful_sync", "checkpoints")
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	case "postgres", "postgresql":
		s, err := NewPostgresStore(ctx, url, "sync_checkpoints")
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("checkpoint: unknown backend %q, expected memory, mongo or postgres", backend)
	}
}
