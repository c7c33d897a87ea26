package repository

import (
	"context"
	"io"

	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/database"
	"github.com/testme/testme-backend/pkg/logger"
)

// Open builds the store selected by storage.booking_store. The returned
// closer releases the underlying connection.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, io.Closer, error) {
	if err := validKind(cfg.Storage.BookingStore); err != nil {
		return nil, nil, err
	}

	if cfg.Storage.BookingStore == KindFirestore {
		client, err := NewFirestoreClient(ctx, cfg.Storage.FirestoreProject, cfg.Storage.FirestoreCredentials)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("project", cfg.Storage.FirestoreProject).Msg("using firestore booking store")
		return NewFirestoreStore(client), client, nil
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	store := NewPostgresStore(db)
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	log.Info().Str("host", cfg.Database.Host).Msg("using postgres booking store")
	return store, db, nil
}
