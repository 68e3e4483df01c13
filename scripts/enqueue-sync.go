//go:build ignore

// enqueue-sync.go - Publish a sync job straight onto the queue, bypassing
// the API server. Useful for re-driving a wallet when the API is down or
// for load-testing the worker.
//
// Usage:
//   go run scripts/enqueue-sync.go -config config.yaml \
//     -user "user-123" -wallet "3b241101-e2bb-4255-8caf-4136c566a962" \
//     -type SYNC_WALLET_FULL
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to worker config file")
	userID     = flag.String("user", "", "User id")
	walletID   = flag.String("wallet", "", "Wallet id")
	jobType    = flag.String("type", "SYNC_WALLET", "Job type (SYNC_WALLET, SYNC_WALLET_FULL, SYNC_TRANSACTIONS)")
	dataTypes  = flag.String("data-types", "", "Comma-separated data types to narrow the sync")
)

func main() {
	flag.Parse()

	if *userID == "" || *walletID == "" {
		fmt.Println("Error: -user and -wallet are required")
		os.Exit(1)
	}

	cfg, err := config.LoadWorker(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	conn, err := queue.Connect(cfg.Queue, logger)
	if err != nil {
		fmt.Printf("failed to connect to queue: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	pub, err := queue.NewPublisher(conn, logger)
	if err != nil {
		fmt.Printf("failed to open channel: %v\n", err)
		os.Exit(1)
	}
	defer pub.Close()

	var types []string
	if *dataTypes != "" {
		types = strings.Split(*dataTypes, ",")
	}

	env, err := queue.NewEnvelope(queue.JobType(*jobType), queue.SyncPayload{
		UserID:    *userID,
		WalletID:  *walletID,
		DataTypes: types,
	})
	if err != nil {
		fmt.Printf("failed to build envelope: %v\n", err)
		os.Exit(1)
	}

	if err := pub.Publish(context.Background(), cfg.Queue.SyncQueue, env); err != nil {
		fmt.Printf("publish failed: %v\n", err)
		os.Exit(1)
	}

	depth, err := pub.Depth(cfg.Queue.SyncQueue)
	if err != nil {
		fmt.Printf("job %s published to %s\n", env.JobID, cfg.Queue.SyncQueue)
		return
	}
	fmt.Printf("job %s published to %s (depth %d)\n", env.JobID, cfg.Queue.SyncQueue, depth)
}
