package startup

import (
	"context"
	"time"

	redisstorage "github.com/WorkQuest/admin-backend-sub000/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis через тот же цикл повторов, что
// и ConnectDBWithRetry.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration) *redisstorage.Client {
	var client *redisstorage.Client
	waitFor("redis", maxWait, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		var err error
		client, err = redisstorage.New(ctx, redisURL)
		return err
	})
	return client
}
