package db

import (
	"context"
	"fmt"

	"gym-checkin/internal/models"

	"github.com/uptrace/bun"
)

var schemaModels = []interface{}{
	(*models.User)(nil),
	(*models.Venue)(nil),
	(*models.Plan)(nil),
	(*models.Subscription)(nil),
	(*models.CheckInCode)(nil),
	(*models.CheckInRecord)(nil),
	(*models.FinancialRecord)(nil),
}

// CreateSchema builds the tables and indexes straight from the models. Production
// deployments use the SQL migrations; this serves tests and local runs.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []*bun.CreateIndexQuery{
		db.NewCreateIndex().
			Model((*models.CheckInCode)(nil)).
			Index("check_in_codes_one_open_per_pair").
			Unique().
			Column("user_id", "venue_id").
			Where("status IN ('pending', 'active')"),
		db.NewCreateIndex().
			Model((*models.CheckInCode)(nil)).
			Index("check_in_codes_code_status").
			Column("code", "status"),
		db.NewCreateIndex().
			Model((*models.CheckInRecord)(nil)).
			Index("check_in_records_user_time").
			Column("user_id", "check_in_time"),
		db.NewCreateIndex().
			Model((*models.FinancialRecord)(nil)).
			Index("financial_records_status_created").
			Column("payment_status", "created_at"),
	}
	for _, idx := range indexes {
		if _, err := idx.IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
