package communication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// BRPop derives its read deadline from the context's deadline only, so
// a plain cancel would not interrupt an unbounded blocking pop. Receive
// therefore polls with a finite timeout and checks the context between
// polls.
const receivePollTimeout = time.Second

// RedisConfig configures a redis-backed endpoint. A group names one
// training cluster: one policy manager plus its trainer nodes, all
// reachable through the same redis instance.
type RedisConfig struct {
	Addr  string
	Group string
	// number of trainer nodes the manager waits to discover
	NumWorkers int
	// peer discovery polling, defaults to 50 retries at 100ms
	DiscoveryRetries  int
	DiscoveryInterval time.Duration
}

func (c *RedisConfig) withDefaults() RedisConfig {
	out := *c
	if out.DiscoveryRetries == 0 {
		out.DiscoveryRetries = 50
	}
	if out.DiscoveryInterval == 0 {
		out.DiscoveryInterval = 100 * time.Millisecond
	}
	return out
}

func workersKey(group string) string {
	return fmt.Sprintf("%s:workers", group)
}

func inboxKey(group, name string) string {
	return fmt.Sprintf("%s:%s:inbox", group, name)
}

// RedisManagerEndpoint passes messages through per-peer redis lists.
// Messages are JSON envelopes pushed to the destination's inbox and
// popped with a blocking read on the receiver side.
type RedisManagerEndpoint struct {
	client  *redis.Client
	group   string
	workers []string
}

var _ ManagerEndpoint = &RedisManagerEndpoint{}

// NewRedisManagerEndpoint connects to redis and polls the group's
// registration set until the expected number of trainer nodes have
// registered, failing once the retry budget is exhausted.
func NewRedisManagerEndpoint(ctx context.Context, config RedisConfig) (*RedisManagerEndpoint, error) {
	config = config.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr: config.Addr,
	})

	var workers []string
	for i := 0; i < config.DiscoveryRetries; i++ {
		members, err := client.SMembers(ctx, workersKey(config.Group)).Result()
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("discovering workers of group %s: %w", config.Group, err)
		}
		if len(members) >= config.NumWorkers {
			workers = members
			break
		}
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(config.DiscoveryInterval):
		}
	}
	if workers == nil {
		client.Close()
		return nil, fmt.Errorf(
			"group %s: found fewer than %d workers after %d discovery attempts",
			config.Group, config.NumWorkers, config.DiscoveryRetries,
		)
	}
	sort.Strings(workers)

	return &RedisManagerEndpoint{
		client:  client,
		group:   config.Group,
		workers: workers,
	}, nil
}

func (e *RedisManagerEndpoint) Workers() []string {
	out := make([]string, len(e.workers))
	copy(out, e.workers)
	return out
}

func (e *RedisManagerEndpoint) Send(ctx context.Context, dest string, env Envelope) error {
	env.Sender = ManagerName
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling message for %s: %w", dest, err)
	}
	return e.client.LPush(ctx, inboxKey(e.group, dest), data).Err()
}

func (e *RedisManagerEndpoint) Receive(ctx context.Context) (Envelope, string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Envelope{}, "", err
		}
		vals, err := e.client.BRPop(ctx, receivePollTimeout, inboxKey(e.group, ManagerName)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Envelope{}, "", err
		}
		var env Envelope
		if err := json.Unmarshal([]byte(vals[1]), &env); err != nil {
			return Envelope{}, "", fmt.Errorf("unmarshaling inbound message: %w", err)
		}
		return env, env.Sender, nil
	}
}

func (e *RedisManagerEndpoint) Close() error {
	return e.client.Close()
}

// RedisWorkerEndpoint is the trainer-node side of the redis transport.
type RedisWorkerEndpoint struct {
	client *redis.Client
	group  string
	id     string
}

var _ WorkerEndpoint = &RedisWorkerEndpoint{}

// NewRedisWorkerEndpoint connects to redis and registers the trainer id
// in the group's registration set so the manager can discover it.
func NewRedisWorkerEndpoint(ctx context.Context, config RedisConfig, id string) (*RedisWorkerEndpoint, error) {
	client := redis.NewClient(&redis.Options{
		Addr: config.Addr,
	})
	if err := client.SAdd(ctx, workersKey(config.Group), id).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("registering worker %s in group %s: %w", id, config.Group, err)
	}
	return &RedisWorkerEndpoint{
		client: client,
		group:  config.Group,
		id:     id,
	}, nil
}

func (e *RedisWorkerEndpoint) ID() string {
	return e.id
}

func (e *RedisWorkerEndpoint) Send(ctx context.Context, env Envelope) error {
	env.Sender = e.id
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling message for manager: %w", err)
	}
	return e.client.LPush(ctx, inboxKey(e.group, ManagerName), data).Err()
}

func (e *RedisWorkerEndpoint) Receive(ctx context.Context) (Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Envelope{}, err
		}
		vals, err := e.client.BRPop(ctx, receivePollTimeout, inboxKey(e.group, e.id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Envelope{}, err
		}
		var env Envelope
		if err := json.Unmarshal([]byte(vals[1]), &env); err != nil {
			return Envelope{}, fmt.Errorf("unmarshaling inbound message: %w", err)
		}
		return env, nil
	}
}

func (e *RedisWorkerEndpoint) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e.client.SRem(ctx, workersKey(e.group), e.id)
	return e.client.Close()
}
