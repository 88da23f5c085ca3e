// Package testdb поднимает embedded PostgreSQL для интеграционных тестов
// и применяет миграции. Один инстанс на тестовый пакет (через TestMain).
package testdb

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/migrations"
)

const (
	user     = "admin_test"
	password = "admin_test"
	database = "admin_backend_test"
)

// Start запускает embedded PostgreSQL на свободном порту, применяет миграции
// и возвращает пул соединений вместе с функцией остановки.
func Start() (*pgxpool.Pool, func(), error) {
	port, err := freePort()
	if err != nil {
		return nil, nil, fmt.Errorf("testdb: free port: %w", err)
	}

	dataDir, err := os.MkdirTemp("", "admin-test-pgdata")
	if err != nil {
		return nil, nil, fmt.Errorf("testdb: temp dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(port)).
			Username(user).
			Password(password).
			Database(database).
			DataPath(filepath.Join(dataDir, "data")).
			RuntimePath(filepath.Join(dataDir, "runtime")).
			Logger(nil),
	)
	if err := db.Start(); err != nil {
		os.RemoveAll(dataDir)
		return nil, nil, fmt.Errorf("testdb: start: %w", err)
	}

	stop := func() {
		db.Stop()
		os.RemoveAll(dataDir)
	}

	url := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable", user, password, port, database)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("testdb: connect: %w", err)
	}
	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		stop()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		stop()
	}
	return pool, cleanup, nil
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("testdb: read migrations: %w", err)
	}
	// ReadDir возвращает файлы в лексикографическом порядке: 001, 002, ...
	for _, e := range entries {
		data, err := migrations.Files.ReadFile(e.Name())
		if err != nil {
			return fmt.Errorf("testdb: read %s: %w", e.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("testdb: apply %s: %w", e.Name(), err)
		}
	}
	return nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
