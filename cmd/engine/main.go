package main

import (
	"context"
	"log"
	"os"

	"github.com/rawblock/itemset-engine/internal/api"
	"github.com/rawblock/itemset-engine/internal/bitcoin"
	"github.com/rawblock/itemset-engine/internal/db"
	"github.com/rawblock/itemset-engine/internal/jobs"
	"github.com/rawblock/itemset-engine/internal/scanner"
)

func main() {
	log.Println("Starting RawBlock Itemset Mining Engine (Microservice: frequent-itemset-analytics)...")

	// ─── Environment ────────────────────────────────────────────────────
	// Credentials come from environment variables only. Use a .env file
	// for local development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL == "" {
		log.Println("Warning: DATABASE_URL not set; run bookkeeping disabled")
	} else {
		var err error
		dbConn, err = db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without run bookkeeping. Error: %v", err)
			dbConn = nil
		} else {
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	}

	// The Bitcoin RPC connection only matters for the block co-spend
	// scanner; the mining API works without it.
	var btcClient *bitcoin.Client
	if user := os.Getenv("BTC_RPC_USER"); user != "" {
		cfg := bitcoin.Config{
			Host: getEnvOrDefault("BTC_RPC_HOST", "localhost:8332"),
			User: user,
			Pass: requireEnv("BTC_RPC_PASS"),
		}
		var err error
		btcClient, err = bitcoin.NewClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to connect to Bitcoin RPC: %v", err)
			btcClient = nil
		} else {
			defer btcClient.Shutdown()
		}
	} else {
		log.Println("BTC_RPC_USER not set — engine running without the co-spend scanner")
	}

	// WebSocket hub for job progress and co-spend alerts
	wsHub := api.NewHub()
	go wsHub.Run()

	// Background mining job runner
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var jobStore jobs.JobStore
	if dbConn != nil {
		jobStore = dbConn
	}
	jobRunner := jobs.NewRunner(api.ExecJob, wsHub.Broadcast, jobStore)
	go jobRunner.Run(ctx)

	// Historical block co-spend scanner (only with a working RPC link)
	var blockScanner *scanner.BlockScanner
	if btcClient != nil {
		blockScanner = scanner.NewBlockScanner(btcClient, dbConn, api.BroadcastCoSpendAlert(wsHub))
	}

	r := api.SetupRouter(dbConn, btcClient, wsHub, blockScanner, jobRunner)

	port := getEnvOrDefault("PORT", "5341")
	log.Printf("Engine running on :%s (API Node: frequent-itemset-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is
// not set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

func getEnvOrDefault(key, dflt string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return dflt
}
