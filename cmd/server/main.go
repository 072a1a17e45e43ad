/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build attendance ledger, sweeper, leave ledger, and reconciler
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags win over environment variables; both win over defaults.

  -port / PORT       HTTP server port (default: 8080)
  -db   / DB_PATH    SQLite database path (default: attendance.db)
                     Use ":memory:" for in-memory database
  -tz   / TIMEZONE   IANA timezone for day boundaries and the late
                     cutoff (default: Local)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/attendance.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with explicit business timezone
  ./server -tz="Asia/Jakarta"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	// .env is optional; flags and real env still apply without it.
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "attendance.db"), "SQLite database path")
	tzName := flag.String("tz", envStr("TIMEZONE", "Local"), "IANA timezone for day boundaries")
	flag.Parse()

	loc, err := time.LoadLocation(*tzName)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", *tzName, err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Build domain services
	clock := core.NewSystemClock(loc)
	policy := core.DefaultPunchPolicy()

	attLedger := attendance.NewLedger(store, store, clock, policy)
	sweeper := attendance.NewSweeper(store, store, clock)
	balances := leave.NewLedger(store, clock)
	requests := leave.NewReconciler(store, clock)

	// Create router
	handler := api.NewHandler(attLedger, sweeper, balances, requests, store)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
