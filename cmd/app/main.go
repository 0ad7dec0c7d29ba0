package main

import (
	"flag"
	"log"
	"os"

	"github.com/prateek8731/Market-Monitor/internal/di"
	"github.com/prateek8731/Market-Monitor/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s port=%d kafka=%t clickhouse=%t redis=%t retrain=%t",
		cfg.Environment, cfg.Server.Port, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled, cfg.Redis.Enabled, cfg.Retrain.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// blocks until SIGINT/SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
