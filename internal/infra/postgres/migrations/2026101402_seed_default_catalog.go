package migrations

import (
	"context"

	"cuequiz-service/internal/catalog"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return UpsertCatalog(ctx, db, catalog.Default())
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DELETE FROM catalogs WHERE id = ?`, catalog.DefaultID)
			return err
		},
	)
}
