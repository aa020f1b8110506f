package indexcodec

import (
	"context"
	"log/slog"

	"podsearch/internal/blobstore"
	"podsearch/internal/searchindex"
	"podsearch/internal/services"
)

// Persist serializes ix straight into the store under key. A failed write
// leaves the previously stored index untouched.
func Persist(ctx context.Context, store blobstore.Store, key string, ix *searchindex.Index, codec Codec, logger *slog.Logger) (Stats, error) {
	file, err := blobstore.Create(ctx, store, key)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrStorage, "indexcodec", "create", "failed to open index for writing", err)
	}
	stats, err := Serialize(ctx, ix, codec, file, logger)
	if err != nil {
		file.Abort()
		return stats, err
	}
	if err := file.Commit(); err != nil {
		return stats, services.Wrap(services.ErrStorage, "indexcodec", "commit", "failed to store index "+key, err)
	}
	return stats, nil
}

// Load reads the index stored under key using the codec recorded in its
// header.
func Load(ctx context.Context, store blobstore.Store, key string, logger *slog.Logger) (*searchindex.Index, Stats, error) {
	rc, err := blobstore.Open(ctx, store, key)
	if err != nil {
		return nil, Stats{}, err
	}
	defer rc.Close()
	return Deserialize(ctx, rc, nil, logger)
}
