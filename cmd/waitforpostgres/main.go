package main

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"safed/useradmin/internal/observability"
)

const (
	defaultWait  = 60 * time.Second
	pingTimeout  = 2 * time.Second
	pingInterval = 2 * time.Second
)

// waitforpostgres blocks until the database answers a ping. It reads
// TEST_POSTGRES_DSN, falling back to DATABASE_URL.
func main() {
	log := observability.NewLogger(os.Getenv("LOG_LEVEL"))

	dsn := firstNonEmpty(os.Getenv("TEST_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))
	if dsn == "" {
		log.Error("TEST_POSTGRES_DSN or DATABASE_URL is required")
		os.Exit(2)
	}

	wait, err := waitBudget(os.Getenv("WAIT_FOR_POSTGRES_TIMEOUT_SEC"))
	if err != nil {
		log.Error("invalid WAIT_FOR_POSTGRES_TIMEOUT_SEC", "error", err)
		os.Exit(2)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	attempts, err := pingUntilReady(ctx, db)
	if err != nil {
		log.Error("postgres not ready", "wait", wait.String(), "attempts", attempts, "error", err)
		os.Exit(1)
	}
	log.Info("postgres ready", "attempts", attempts)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// pingUntilReady pings every pingInterval until a ping succeeds or ctx ends.
// It returns the number of attempts made and the last ping error.
func pingUntilReady(ctx context.Context, db pinger) (int, error) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		select {
		case <-ctx.Done():
			return attempt, err
		case <-ticker.C:
		}
	}
}

func waitBudget(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultWait, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if secs <= 0 {
		return 0, strconv.ErrRange
	}
	return time.Duration(secs) * time.Second, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
