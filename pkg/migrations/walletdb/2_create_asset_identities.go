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
		log.Println("creating asset_identities table...")
		if err := mghelper.CreateSchema(ctx, db, &store.AssetDao{}); err != nil {
			return err
		}
		// Contract assets are unique per (contract, network), native assets
		// per (symbol, network). Partial indexes keep the two keyspaces
		// independent so concurrent upserts of either kind cannot duplicate.
		_, err := db.ExecContext(ctx,
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_asset_identities_contract_network ON asset_identities (contract_address, network) WHERE contract_address IS NOT NULL")
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx,
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_asset_identities_native_symbol_network ON asset_identities (symbol, network) WHERE contract_address IS NULL")
		if err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &store.AssetDao{}, "symbol", "network", "verified")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping asset_identities table...")
		return mghelper.DropTables(ctx, db, &store.AssetDao{})
	})
}
