package api

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rawblock/itemset-engine/internal/bitcoin"
	"github.com/rawblock/itemset-engine/internal/db"
	"github.com/rawblock/itemset-engine/internal/jobs"
	"github.com/rawblock/itemset-engine/internal/scanner"
)

// APIHandler bundles the service dependencies behind the routes.
type APIHandler struct {
	dbStore      *db.PostgresStore
	btcClient    *bitcoin.Client
	wsHub        *Hub
	blockScanner *scanner.BlockScanner
	jobRunner    *jobs.Runner
}

// SetupRouter wires the Gin engine: CORS, public endpoints, and the
// authenticated, rate-limited mining surface.
func SetupRouter(dbStore *db.PostgresStore, btcClient *bitcoin.Client, wsHub *Hub,
	blockScanner *scanner.BlockScanner, jobRunner *jobs.Runner) *gin.Engine {
	r := gin.Default()

	// CORS — configurable via ALLOWED_ORIGINS (comma separated);
	// empty or "*" allows everything (development)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:      dbStore,
		btcClient:    btcClient,
		wsHub:        wsHub,
		blockScanner: blockScanner,
		jobRunner:    jobRunner,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/scan/progress", handler.handleScanProgress)
	}

	// ── Protected endpoints (bearer token if API_AUTH_TOKEN set) ──
	// Mining is CPU-bound; 30 requests/minute per IP with burst 5.
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.POST("/mine", handler.handleMine)
		auth.POST("/spectrum/generate", handler.handleGenSpectrum)
		auth.POST("/spectrum/estimate", handler.handleEstSpectrum)
		auth.POST("/patterns/reduce", handler.handleReduce)
		auth.POST("/shadow/compare", handler.handleShadowCompare)

		auth.POST("/jobs", handler.handleCreateJob)
		auth.GET("/jobs/:id", handler.handleGetJob)
		auth.DELETE("/jobs/:id", handler.handleAbortJob)

		auth.GET("/runs", handler.handleRecentRuns)
		auth.GET("/runs/:id/spectrum", handler.handleRunSpectrum)

		// historical block co-spend scanner (needs the RPC client)
		auth.POST("/scan", handler.handleStartScan)
	}

	return r
}
