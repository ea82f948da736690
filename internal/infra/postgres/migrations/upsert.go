package migrations

import (
	"context"
	"encoding/json"
	"fmt"

	"cuequiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// UpsertCatalog writes a catalog row, replacing any existing data for its id.
func UpsertCatalog(ctx context.Context, db bun.IDB, c domain.Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO catalogs (id, data) VALUES (?, ?::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		c.ID, string(data))
	return err
}
