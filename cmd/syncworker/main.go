package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/worker"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadWorker(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := worker.NewServer(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Sync worker exited with error: %v\n", err)
		os.Exit(1)
	}
}
