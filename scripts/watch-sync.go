//go:build ignore

// watch-sync.go - Stream sync progress events for one wallet from the
// Redis notification channel.
//
// Usage:
//   go run scripts/watch-sync.go -redis localhost:6379 \
//     -user "user-123" -wallet "3b241101-e2bb-4255-8caf-4136c566a962"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
)

var (
	redisAddr = flag.String("redis", "localhost:6379", "Redis address")
	redisPass = flag.String("redis-pass", "", "Redis password")
	userID    = flag.String("user", "", "User id")
	walletID  = flag.String("wallet", "", "Wallet id")
)

func main() {
	flag.Parse()

	if *userID == "" || *walletID == "" {
		fmt.Println("Error: -user and -wallet are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, Password: *redisPass})
	defer rdb.Close()

	// Channel layout must match progress.Channel.
	channel := fmt.Sprintf("wallet-sync:%s:%s", *userID, *walletID)
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	fmt.Printf("watching %s (ctrl-c to stop)\n", channel)

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Printf("subscription error: %v\n", err)
			os.Exit(1)
		}

		var ev struct {
			JobID    string `json:"jobId"`
			State    string `json:"state"`
			Progress int    `json:"progress"`
			Message  string `json:"message"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			fmt.Printf("  unparseable event: %s\n", msg.Payload)
			continue
		}

		line := fmt.Sprintf("[%s] %-20s %3d%% %s", ev.JobID, ev.State, ev.Progress, ev.Message)
		if ev.Error != "" {
			line += " error=" + ev.Error
		}
		fmt.Println(line)
	}
}
