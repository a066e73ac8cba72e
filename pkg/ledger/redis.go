package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces usage records in Redis.
const DefaultKeyPrefix = "minutes:usage:"

// Each session is a hash {count, created_at}. created_at is set once with
// HSETNX, which is also when the optional TTL starts.
var getScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'created_at', ARGV[1]) == 1 and tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {tonumber(redis.call('HGET', KEYS[1], 'count') or '0'), redis.call('HGET', KEYS[1], 'created_at')}
`)

var consumeScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'created_at', ARGV[2]) == 1 and tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
if count >= tonumber(ARGV[1]) then
  return {0, count, redis.call('HGET', KEYS[1], 'created_at')}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, count, redis.call('HGET', KEYS[1], 'created_at')}
`)

// RedisLedgerConfig configures a RedisLedger.
type RedisLedgerConfig struct {
	// Namespace separates ledgers sharing one Redis (e.g. "analyze", "transcribe").
	Namespace string
	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
	// TTL expires a session record after its first use. Zero keeps records forever.
	TTL time.Duration
}

// RedisLedger stores records in Redis so that several service instances
// share one quota per session. Consume is a single Lua script and therefore
// atomic across instances.
type RedisLedger struct {
	client redis.UniversalClient
	config RedisLedgerConfig
	now    func() time.Time
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client redis.UniversalClient, config RedisLedgerConfig) *RedisLedger {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	return &RedisLedger{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Key returns the Redis key holding sessionID's record.
func (l *RedisLedger) Key(sessionID string) string {
	if l.config.Namespace == "" {
		return l.config.KeyPrefix + sessionID
	}
	return l.config.KeyPrefix + l.config.Namespace + ":" + sessionID
}

// Get returns the record for sessionID, creating it on first sight.
func (l *RedisLedger) Get(ctx context.Context, sessionID string) (Record, error) {
	res, err := getScript.Run(ctx, l.client, []string{l.Key(sessionID)},
		l.now().UnixMilli(), l.config.TTL.Milliseconds()).Slice()
	if err != nil {
		return Record{}, fmt.Errorf("ledger get %q: %w", sessionID, err)
	}
	if len(res) != 2 {
		return Record{}, fmt.Errorf("ledger get %q: unexpected reply length %d", sessionID, len(res))
	}
	return parseRecord(sessionID, res[0], res[1])
}

// Consume increments the usage of sessionID if it is below limit.
func (l *RedisLedger) Consume(ctx context.Context, sessionID string, limit int) (Record, error) {
	res, err := consumeScript.Run(ctx, l.client, []string{l.Key(sessionID)},
		limit, l.now().UnixMilli(), l.config.TTL.Milliseconds()).Slice()
	if err != nil {
		return Record{}, fmt.Errorf("ledger consume %q: %w", sessionID, err)
	}
	if len(res) != 3 {
		return Record{}, fmt.Errorf("ledger consume %q: unexpected reply length %d", sessionID, len(res))
	}

	rec, err := parseRecord(sessionID, res[1], res[2])
	if err != nil {
		return Record{}, err
	}
	if accepted, _ := res[0].(int64); accepted == 0 {
		return rec, ErrLimitReached
	}
	return rec, nil
}

// parseRecord builds a Record from the script reply values.
func parseRecord(sessionID string, count, createdAt interface{}) (Record, error) {
	n, ok := count.(int64)
	if !ok {
		return Record{}, fmt.Errorf("ledger %q: count has type %T", sessionID, count)
	}

	var ms int64
	switch v := createdAt.(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("ledger %q: created_at: %w", sessionID, err)
		}
		ms = parsed
	case int64:
		ms = v
	default:
		return Record{}, fmt.Errorf("ledger %q: created_at has type %T", sessionID, createdAt)
	}

	return Record{
		SessionID:  sessionID,
		UsageCount: int(n),
		CreatedAt:  time.UnixMilli(ms),
	}, nil
}

var _ Ledger = (*RedisLedger)(nil)
