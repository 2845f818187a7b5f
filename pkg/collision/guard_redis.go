package collision

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// reserveScript atomically checks that none of the given resource keys
// are held by a session other than the caller, then reserves them all.
// KEYS = resource keys ("turnctl:resv:<kind>:<name>", built client-side;
// the session id is not part of the key, so one key is shared by every
// session and its value records the holding session).
// ARGV[1] = runSessionId
var reserveScript = redis.NewScript(`
local sessionID = ARGV[1]
for i, key in ipairs(KEYS) do
  local holder = redis.call("GET", key)
  if holder and holder ~= sessionID then
    return {0, key}
  end
end
for i, key in ipairs(KEYS) do
  redis.call("SET", key, sessionID, "EX", 300)
end
return {1, ""}
`)

// RedisGuard is a distributed Collision Guard backed by Redis, for
// multi-instance deployments where more than one controller process may
// hold leases for different sessions over the same repository.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard constructs a Guard backed by the given Redis client.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// AssertAndReserve mirrors Guard.AssertAndReserve but reserves resources
// in Redis with a 5-minute TTL safety net in case a process crashes
// before releasing.
func (g *RedisGuard) AssertAndReserve(ctx context.Context, runSessionID string, effects IntendedEffectSet, approvedGates []string) (*RedisReservation, *contracts.DenyReason) {
	for _, se := range effects.ExternalSideEffects {
		if !containsStr(approvedGates, se) {
			return nil, &contracts.DenyReason{
				Code:    contracts.RejectExecUngatedSideEffect,
				Message: fmt.Sprintf("external side effect %q is not in the plan's approved commit-gate set", se),
			}
		}
	}

	keys := prefixedKeys(resourceKeys(effects))
	if len(keys) == 0 {
		return &RedisReservation{client: g.client, keys: nil}, nil
	}

	res, err := reserveScript.Run(ctx, g.client, keys, runSessionID).Result()
	if err != nil {
		return nil, &contracts.DenyReason{
			Code:    contracts.RejectPlanScopeViolation,
			Message: fmt.Sprintf("collision guard: redis error: %v", err),
		}
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return nil, &contracts.DenyReason{Code: contracts.RejectPlanScopeViolation, Message: "collision guard: malformed redis script response"}
	}
	allowed, _ := results[0].(int64)
	if allowed != 1 {
		conflictKey, _ := results[1].(string)
		return nil, &contracts.DenyReason{
			Code:    contracts.RejectPlanScopeViolation,
			Message: fmt.Sprintf("resource %q is already reserved by another session", conflictKey),
		}
	}

	return &RedisReservation{client: g.client, keys: keys}, nil
}

// RedisReservation is a held distributed reservation.
type RedisReservation struct {
	client *redis.Client
	keys   []string
}

// Release deletes the reservation keys.
func (r *RedisReservation) Release(ctx context.Context) {
	if len(r.keys) == 0 {
		return
	}
	r.client.Del(ctx, r.keys...)
}

func prefixedKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = "turnctl:resv:" + k
	}
	return out
}
