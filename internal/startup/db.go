package startup

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// ConnectDBWithRetry подключается к Postgres с экспоненциальными повторами:
// при общем старте стека БД нередко поднимается позже сервиса. Исчерпав
// maxWait, завершает процесс.
func ConnectDBWithRetry(poolCfg *pgxpool.Config, maxWait time.Duration) *pgxpool.Pool {
	var pool *pgxpool.Pool
	waitFor("postgres", maxWait, func() error {
		var err error
		pool, err = connectDB(poolCfg)
		return err
	})
	return pool
}

func connectDB(poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), pingTimeout)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitFor крутит fn с растущей задержкой, пока та не вернёт nil; исчерпав
// maxWait — роняет процесс.
func waitFor(target string, maxWait time.Duration, fn func() error) {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		err := fn()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			logger.Errorf("%s unavailable, giving up after %v: %v", target, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%s unavailable, retry in %v: %v", target, backoff, err)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
