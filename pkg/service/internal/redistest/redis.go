// Package redistest implements support code for testing with Redis.
package redistest

import (
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis"
)

// RedisCredentials holds the credentials for connecting to Redis.
type RedisCredentials struct {
	Password string
	Address  string
}

// GetCredentials gets the Redis credentials from environment variables.
func GetCredentials() (rc RedisCredentials, ok bool) {
	p := os.Getenv("REDIS_PASS")
	a := os.Getenv("REDIS_ADDRESS")
	if len(a) > 0 {
		return RedisCredentials{
			Password: p,
			Address:  a,
		}, true
	}
	return RedisCredentials{}, false
}

// Connect connects to Redis and returns the Client object.
//
// The test is skipped when no Redis address is configured.
func Connect(t *testing.T) *redis.Client {
	creds, ok := GetCredentials()
	if !ok {
		t.Skip("Missing Redis credentials")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         creds.Address,
		Password:     creds.Password,
		DB:           0,
		MaxRetries:   3,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
