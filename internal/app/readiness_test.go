package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReadinessChecks_NilPoolFailsDBCheck(t *testing.T) {
	dbCheck, redisCheck := buildReadinessChecks(nil, nil)

	require.NotNil(t, dbCheck)
	assert.Nil(t, redisCheck, "no Redis client configured means the precheck layer is disabled, not unready")

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	assert.ErrorIs(t, dbCheck(req), errNoPool)
}

func TestBuildReadinessChecks_NilRedisClientSkipsRedisCheck(t *testing.T) {
	_, redisCheck := buildReadinessChecks(nil, nil)
	assert.Nil(t, redisCheck)
}

func TestBuildReadinessChecks_RedisClientConfiguredReturnsCheck(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	_, redisCheck := buildReadinessChecks(nil, client)

	require.NotNil(t, redisCheck)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	assert.Error(t, redisCheck(req), "nothing listens on the bogus address, so the ping must fail")
}
