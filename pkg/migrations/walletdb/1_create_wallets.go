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
		log.Println("creating wallets table...")
		if err := mghelper.CreateSchema(ctx, db, &store.WalletDao{}); err != nil {
			return err
		}
		// A user tracks each (address, network) pair at most once
		_, err := db.ExecContext(ctx,
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_address_network ON wallets (user_id, address, network)")
		if err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &store.WalletDao{}, "user_id", "address", "sync_status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping wallets table...")
		return mghelper.DropTables(ctx, db, &store.WalletDao{})
	})
}
