// Command app serves the news-sentiment and volatility API together with the
// optional job queue, scheduler and Kafka request consumer.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"NewsVol/internal/di"
	"NewsVol/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	// a missing .env is normal outside local development
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv %s: %v", *envFile, err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("init app (env=%s news=%s prices=%s): %v", cfg.Environment, cfg.News.Provider, cfg.Prices.Provider, err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Printf("app stopped with error: %v", err)
		os.Exit(1)
	}
}
