package app

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// buildReadinessChecks returns the db and (optional) redis readiness
// probes backing /readyz. A nil redis client means the precheck layer is
// disabled, which is a valid deployment (Redis is advisory only),
// so its check is skipped rather than reported unready.
func buildReadinessChecks(pool *pgxpool.Pool, redisClient *redis.Client) (dbCheck, redisCheck func(*http.Request) error) {
	dbCheck = func(req *http.Request) error {
		if pool == nil {
			return errNoPool
		}
		return pool.Ping(req.Context())
	}
	if redisClient == nil {
		return dbCheck, nil
	}
	redisCheck = func(req *http.Request) error {
		return redisClient.Ping(req.Context()).Err()
	}
	return dbCheck, redisCheck
}

var errNoPool = errors.New("database pool not configured")
