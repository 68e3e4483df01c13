package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun/migrate"

	walletdbmigrations "github.com/noFAYZ/mappr-backend-new-sub000/pkg/migrations/walletdb"
	mghelper "github.com/noFAYZ/mappr-backend-new-sub000/pkg/pgutil"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

func TestWalletDBMigrations_Apply(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, walletdbmigrations.Migrations)

	// Initialize migration system
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run all migrations up
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	// Verify all expected tables exist
	expectedTables := []string{
		"wallets",
		"asset_identities",
		"positions",
		"transactions",
		"nfts",
		"portfolio_snapshots",
		"bun_migrations",
	}

	for _, table := range expectedTables {
		mghelper.AssertTableExists(t, db, table)
	}

	// Verify the uniqueness indexes the sync pipeline upserts against
	mghelper.AssertIndexExists(t, db, "idx_wallets_user_address_network")
	mghelper.AssertIndexExists(t, db, "idx_asset_identities_contract_network")
	mghelper.AssertIndexExists(t, db, "idx_asset_identities_native_symbol_network")
	mghelper.AssertIndexExists(t, db, "idx_positions_wallet_asset")
	mghelper.AssertIndexExists(t, db, "idx_transactions_hash_network")
	mghelper.AssertIndexExists(t, db, "idx_nfts_wallet_contract_token_network")
	mghelper.AssertIndexExists(t, db, "idx_portfolio_snapshots_wallet_id")

	// Verify lookup indexes
	mghelper.AssertIndexExists(t, db, "idx_wallets_sync_status")
	mghelper.AssertIndexExists(t, db, "idx_transactions_mined_at")
}

func TestMigrations_Idempotency(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, walletdbmigrations.Migrations)

	// Initialize
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run migrations first time
	_, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("First Migrate() failed: %v", err)
	}

	// Run migrations second time - should not fail
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second Migrate() failed: %v", err)
	}

	// Should return zero group (no new migrations)
	if !group.IsZero() {
		t.Error("Expected no new migrations on second run")
	}

	// Verify tables still exist
	mghelper.AssertTableExists(t, db, "wallets")
	mghelper.AssertTableExists(t, db, "transactions")
}

func TestMigrations_Rollback(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, walletdbmigrations.Migrations)

	// Initialize
	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run migrations up
	_, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Verify tables exist
	mghelper.AssertTableExists(t, db, "wallets")
	mghelper.AssertTableExists(t, db, "positions")

	// Rollback last migration group (all migrations run in one group by Migrate())
	group, err := migrator.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected rollback to process a migration")
	}

	// Verify all tables are dropped (entire migration group is rolled back)
	mghelper.AssertTableNotExists(t, db, "portfolio_snapshots")
	mghelper.AssertTableNotExists(t, db, "nfts")
	mghelper.AssertTableNotExists(t, db, "transactions")
	mghelper.AssertTableNotExists(t, db, "positions")
	mghelper.AssertTableNotExists(t, db, "asset_identities")
	mghelper.AssertTableNotExists(t, db, "wallets")
}

func TestNativeAssetUniqueness_Applied(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, walletdbmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	native := &walletdb.AssetDao{
		ID:        uuid.NewString(),
		Symbol:    "ETH",
		Name:      "Ethereum",
		Network:   "ETHEREUM",
		Decimals:  18,
		AssetType: "coin",
	}
	if _, err := db.NewInsert().Model(native).Exec(ctx); err != nil {
		t.Fatalf("First native insert failed: %v", err)
	}

	// Second native row with the same (symbol, network) must be rejected
	dup := &walletdb.AssetDao{
		ID:        uuid.NewString(),
		Symbol:    "ETH",
		Name:      "Ethereum Again",
		Network:   "ETHEREUM",
		Decimals:  18,
		AssetType: "coin",
	}
	if _, err := db.NewInsert().Model(dup).Exec(ctx); err == nil {
		t.Error("Expected duplicate native asset insert to fail, but it succeeded")
	}

	// A contract token may share the symbol without colliding
	contract := "0x1111111111111111111111111111111111111111"
	token := &walletdb.AssetDao{
		ID:              uuid.NewString(),
		Symbol:          "ETH",
		Name:            "Wrapped-ish ETH",
		Network:         "ETHEREUM",
		ContractAddress: &contract,
		Decimals:        18,
		AssetType:       "token",
	}
	if _, err := db.NewInsert().Model(token).Exec(ctx); err != nil {
		t.Errorf("Contract asset with shared symbol should insert, got: %v", err)
	}

	mghelper.AssertRowCount(t, db, "asset_identities", 2)
}

func TestTransactionUniqueness_Applied(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, walletdbmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	minedAt := time.Now().UTC()
	tx := &walletdb.TransactionDao{
		ID:        uuid.NewString(),
		WalletID:  uuid.NewString(),
		Hash:      "0xabc123",
		Network:   "ETHEREUM",
		TxType:    "send",
		Direction: "out",
		Status:    "confirmed",
		Category:  "transfer",
		MinedAt:   minedAt,
	}
	if _, err := db.NewInsert().Model(tx).Exec(ctx); err != nil {
		t.Fatalf("First transaction insert failed: %v", err)
	}

	// The same chain transaction observed again must be rejected by the
	// (hash, network) key even when attributed to a different wallet
	dup := &walletdb.TransactionDao{
		ID:        uuid.NewString(),
		WalletID:  uuid.NewString(),
		Hash:      "0xabc123",
		Network:   "ETHEREUM",
		TxType:    "receive",
		Direction: "in",
		Status:    "confirmed",
		Category:  "transfer",
		MinedAt:   minedAt,
	}
	if _, err := db.NewInsert().Model(dup).Exec(ctx); err == nil {
		t.Error("Expected duplicate (hash, network) insert to fail, but it succeeded")
	}

	// Same hash on another network is a different transaction
	other := &walletdb.TransactionDao{
		ID:        uuid.NewString(),
		WalletID:  uuid.NewString(),
		Hash:      "0xabc123",
		Network:   "POLYGON",
		TxType:    "send",
		Direction: "out",
		Status:    "confirmed",
		Category:  "transfer",
		MinedAt:   minedAt,
	}
	if _, err := db.NewInsert().Model(other).Exec(ctx); err != nil {
		t.Errorf("Same hash on a different network should insert, got: %v", err)
	}

	mghelper.AssertRowCount(t, db, "transactions", 2)
}
