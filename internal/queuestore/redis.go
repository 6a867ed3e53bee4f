package queuestore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.taskorchestrator.dev/internal/task"
)

const (
	activeGroupsKey  = "queue:active_groups"
	processingKey    = "queue:processing:global"
	groupKeyPrefix   = "queue:group:"
	groupLockPrefix  = "lock:queue:group:"
)

func groupKey(groupID string) string { return groupKeyPrefix + groupID }
func groupLockKey(groupID string) string { return groupLockPrefix + groupID }

// RedisStore implements Store over go-redis/v9. The per-group lock is
// adapted directly from internal/common/leader's RedisLeaderElector
// SET-NX-EX + Lua check-and-extend/check-and-delete pattern, applied
// per group key instead of a single fleet-wide lock name.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Enqueue(ctx context.Context, env task.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("queuestore: marshal envelope: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, groupKey(env.GroupID), raw)
	pipe.SAdd(ctx, activeGroupsKey, env.GroupID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("queuestore: enqueue %s/%s: %w", env.GroupID, env.TaskID, err)
	}
	return nil
}

func (s *RedisStore) SampleActiveGroups(ctx context.Context, n int) ([]string, error) {
	groups, err := s.client.SRandMemberN(ctx, activeGroupsKey, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("queuestore: sample active groups: %w", err)
	}
	return groups, nil
}

// acquireScript atomically acquires a NX lock or refreshes one already
// held by ownerID, mirroring RedisLeaderElector.tryAcquire/refresh
// collapsed into one round trip.
var acquireScript = redis.NewScript(`
	local owner = redis.call("get", KEYS[1])
	if owner == false then
		redis.call("set", KEYS[1], ARGV[1], "EX", ARGV[2])
		return 1
	elseif owner == ARGV[1] then
		redis.call("expire", KEYS[1], ARGV[2])
		return 1
	else
		return 0
	end
`)

func (s *RedisStore) TryAcquireGroupLock(ctx context.Context, groupID, ownerID string, ttl time.Duration) (bool, error) {
	ttlSeconds := int(ttl.Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	res, err := acquireScript.Run(ctx, s.client, []string{groupLockKey(groupID)}, ownerID, ttlSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("queuestore: acquire lock for group %s: %w", groupID, err)
	}
	return res == 1, nil
}

// releaseScript mirrors RedisLeaderElector.Release: delete only if still owned.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (s *RedisStore) ReleaseGroupLock(ctx context.Context, groupID, ownerID string) error {
	_, err := releaseScript.Run(ctx, s.client, []string{groupLockKey(groupID)}, ownerID).Int()
	if err != nil {
		return fmt.Errorf("queuestore: release lock for group %s: %w", groupID, err)
	}
	return nil
}

func (s *RedisStore) ClaimNext(ctx context.Context, groupID string) (task.Envelope, bool, error) {
	raw, err := s.client.LMove(ctx, groupKey(groupID), processingKey, "LEFT", "LEFT").Result()
	if err == redis.Nil {
		return task.Envelope{}, false, nil
	}
	if err != nil {
		return task.Envelope{}, false, fmt.Errorf("queuestore: claim next for group %s: %w", groupID, err)
	}
	env, err := task.UnmarshalEnvelope([]byte(raw))
	if err != nil {
		return task.Envelope{}, false, fmt.Errorf("queuestore: unmarshal claimed envelope: %w", err)
	}
	return env, true, nil
}

func (s *RedisStore) Ack(ctx context.Context, env task.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("queuestore: marshal envelope for ack: %w", err)
	}
	if err := s.client.LRem(ctx, processingKey, 1, raw).Err(); err != nil {
		return fmt.Errorf("queuestore: ack %s/%s: %w", env.GroupID, env.TaskID, err)
	}
	return nil
}

func (s *RedisStore) GroupQueueLength(ctx context.Context, groupID string) (int64, error) {
	n, err := s.client.LLen(ctx, groupKey(groupID)).Result()
	if err != nil {
		return 0, fmt.Errorf("queuestore: queue length for group %s: %w", groupID, err)
	}
	return n, nil
}

// deactivateScript removes groupID from the active set only if its
// queue is currently empty, closing the race between LLEN and SREM.
var deactivateScript = redis.NewScript(`
	if redis.call("llen", KEYS[1]) == 0 then
		return redis.call("srem", KEYS[2], ARGV[1])
	else
		return 0
	end
`)

func (s *RedisStore) DeactivateGroupIfEmpty(ctx context.Context, groupID string) error {
	_, err := deactivateScript.Run(ctx, s.client, []string{groupKey(groupID), activeGroupsKey}, groupID).Int()
	if err != nil {
		return fmt.Errorf("queuestore: deactivate group %s: %w", groupID, err)
	}
	return nil
}

func (s *RedisStore) ListProcessing(ctx context.Context) ([]task.Envelope, error) {
	raws, err := s.client.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queuestore: list processing: %w", err)
	}
	envs := make([]task.Envelope, 0, len(raws))
	for _, raw := range raws {
		env, err := task.UnmarshalEnvelope([]byte(raw))
		if err != nil {
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// requeueScript atomically moves an envelope out of the processing list
// and back onto the head of its group's list with a refreshed
// timestamp, re-activating the group. This can't be expressed as
// LMOVE because the stored bytes change (the timestamp is rewritten),
// so a single script does remove-then-push under one round trip.
var requeueScript = redis.NewScript(`
	local removed = redis.call("lrem", KEYS[1], 1, ARGV[1])
	if removed > 0 then
		redis.call("sadd", KEYS[3], ARGV[3])
		redis.call("lpush", KEYS[2], ARGV[2])
	end
	return removed
`)

func (s *RedisStore) RequeueFromProcessing(ctx context.Context, env task.Envelope) error {
	oldRaw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("queuestore: marshal envelope to requeue: %w", err)
	}
	refreshed := env
	refreshed.Timestamp = time.Now().UTC()
	newRaw, err := refreshed.Marshal()
	if err != nil {
		return fmt.Errorf("queuestore: marshal refreshed envelope: %w", err)
	}
	_, err = requeueScript.Run(ctx, s.client,
		[]string{processingKey, groupKey(env.GroupID), activeGroupsKey},
		oldRaw, newRaw, env.GroupID).Int()
	if err != nil {
		return fmt.Errorf("queuestore: requeue %s/%s: %w", env.GroupID, env.TaskID, err)
	}
	return nil
}

func (s *RedisStore) EnvelopePresent(ctx context.Context, groupID, taskID string) (bool, error) {
	groupRaws, err := s.client.LRange(ctx, groupKey(groupID), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("queuestore: scan group %s: %w", groupID, err)
	}
	if envelopeListContains(groupRaws, taskID) {
		return true, nil
	}
	processingRaws, err := s.client.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("queuestore: scan processing list: %w", err)
	}
	return envelopeListContains(processingRaws, taskID), nil
}

func envelopeListContains(raws []string, taskID string) bool {
	for _, raw := range raws {
		env, err := task.UnmarshalEnvelope([]byte(raw))
		if err == nil && env.TaskID == taskID {
			return true
		}
	}
	return false
}
