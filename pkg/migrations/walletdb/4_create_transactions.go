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
		log.Println("creating transactions table...")
		if err := mghelper.CreateSchema(ctx, db, &store.TransactionDao{}); err != nil {
			return err
		}
		// A chain transaction is identified by (hash, network) across all
		// wallets, so overlapping syncs converge on one row
		_, err := db.ExecContext(ctx,
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_hash_network ON transactions (hash, network)")
		if err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &store.TransactionDao{}, "wallet_id", "mined_at", "status", "category")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transactions table...")
		return mghelper.DropTables(ctx, db, &store.TransactionDao{})
	})
}
