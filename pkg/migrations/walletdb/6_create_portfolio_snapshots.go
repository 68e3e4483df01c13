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
		log.Println("creating portfolio_snapshots table...")
		if err := mghelper.CreateSchema(ctx, db, &store.SnapshotDao{}); err != nil {
			return err
		}
		// Each wallet keeps a single current snapshot
		return mghelper.CreateModelUniqueIndexes(ctx, db, &store.SnapshotDao{}, "wallet_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping portfolio_snapshots table...")
		return mghelper.DropTables(ctx, db, &store.SnapshotDao{})
	})
}
