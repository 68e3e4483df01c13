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
		log.Println("creating nfts table...")
		if err := mghelper.CreateSchema(ctx, db, &store.NFTDao{}); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx,
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_nfts_wallet_contract_token_network ON nfts (wallet_id, contract_address, token_id, network)")
		if err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &store.NFTDao{}, "wallet_id", "is_spam", "collection_name")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping nfts table...")
		return mghelper.DropTables(ctx, db, &store.NFTDao{})
	})
}
