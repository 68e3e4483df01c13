package walletdb

import (
	"context"
	"log"

	mghelper "github.com/noFAYZ/mappr-backend-new-sub000/pkg/pgutil/migrations"
	store "github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating positions table...")
		if err := mghelper.CreateSchema(ctx, db, &store.PositionDao{}); err != nil {
			return err
		}
		// One row per (wallet, asset); re-syncs update in place
		_, err := db.ExecContext(ctx,
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_wallet_asset ON positions (wallet_id, asset_id)")
		if err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &store.PositionDao{}, "wallet_id", "asset_id", "is_active")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping positions table...")
		return mghelper.DropTables(ctx, db, &store.PositionDao{})
	})
}
