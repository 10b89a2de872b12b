package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRecordCorrupt is returned when a stored record blob cannot be decoded.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

// ErrFamilyOverflow is returned when a family index exceeds the configured
// scan cap. A healthy family grows by one live record per rotation; hitting
// the cap means the store is damaged or under attack.
var ErrFamilyOverflow = errors.New("refresh family too large")

// RevokeStatus defines a public type used by authkit APIs.
//
// RevokeStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RevokeStatus int64

const (
	// RevokeNotFound is an exported constant or variable used by the authentication engine.
	RevokeNotFound RevokeStatus = 0
	// RevokeAlreadyRevoked is an exported constant or variable used by the authentication engine.
	RevokeAlreadyRevoked RevokeStatus = 2
	// RevokeDone is an exported constant or variable used by the authentication engine.
	RevokeDone RevokeStatus = 3
)

const revokeStatusInvalidBlob int64 = 4

// revokeRecordScript flips the revocation header of one record if and only if
// it is still un-revoked. The header sits at fixed offsets 2..11 (Lua
// 1-based), so the splice never has to parse the variable tail of the blob.
// Exactly one concurrent caller can win the flip; everyone else observes
// status 2.
const revokeRecordScript = `
local key = KEYS[1]
local header = ARGV[1]

local data = redis.call("GET", key)
if not data then
  return 0
end
if string.byte(data, 1) ~= 1 or #data < 59 then
  return 4
end
if string.byte(data, 2) == 1 then
  return 2
end

local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  return 0
end

local updated = string.sub(data, 1, 1) .. header .. string.sub(data, 12)
redis.call("SET", key, updated, "PX", ttl)
return 3
`

var revokeRecordLua = redis.NewScript(revokeRecordScript)

// revokeFamilyScript walks the family index and flips every record that is
// still un-revoked. Records that already expired out of Redis are pruned from
// the index as a side effect. Returns the number of records flipped, so a
// repeat invocation returns 0 and the operation is idempotent.
const revokeFamilyScript = `
local family_key = KEYS[1]
local record_prefix = ARGV[1]
local header = ARGV[2]

local ids = redis.call("SMEMBERS", family_key)
local flipped = 0

for _, id in ipairs(ids) do
  local key = record_prefix .. id
  local data = redis.call("GET", key)
  if not data then
    redis.call("SREM", family_key, id)
  elseif string.byte(data, 1) == 1 and #data >= 59 and string.byte(data, 2) == 0 then
    local ttl = redis.call("PTTL", key)
    if ttl > 0 then
      local updated = string.sub(data, 1, 1) .. header .. string.sub(data, 12)
      redis.call("SET", key, updated, "PX", ttl)
      flipped = flipped + 1
    end
  end
end

return flipped
`

var revokeFamilyLua = redis.NewScript(revokeFamilyScript)

// Store is a Redis-backed refresh-record store handling persistence, family
// indexing, and atomic revocation.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	maxFamilySize int
}

// NewStore creates a refresh [Store] backed by the given Redis client.
// prefix sets the key namespace; maxFamilySize caps records scanned per
// family.
func NewStore(redis redis.UniversalClient, prefix string, maxFamilySize int) *Store {
	return &Store{
		redis:         redis,
		prefix:        prefix,
		maxFamilySize: maxFamilySize,
	}
}

func (s *Store) recordKey(familyID, recordID string) string {
	return s.prefix + ":rec:" + familyID + ":" + recordID
}

func (s *Store) recordKeyPrefix(familyID string) string {
	return s.prefix + ":rec:" + familyID + ":"
}

func (s *Store) familyKey(familyID string) string {
	return s.prefix + ":fam:" + familyID
}

// Create persists a new record and adds it to the family index. The family
// set's TTL is re-armed on every rotation so it outlives its youngest record.
//
//	Performance: 3 Redis commands in one transaction (SET + SADD + EXPIRE).
func (s *Store) Create(ctx context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("record ttl must be > 0")
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	recordKey := s.recordKey(rec.FamilyID, rec.ID)
	familyKey := s.familyKey(rec.FamilyID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey, data, ttl)
		pipe.SAdd(ctx, familyKey, rec.ID)
		pipe.Expire(ctx, familyKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FamilyRecords returns every live record in a family, expired-out entries
// skipped. The result order is unspecified.
//
//	Performance: SMEMBERS + one pipelined GET per record.
func (s *Store) FamilyRecords(ctx context.Context, familyID string) ([]*Record, error) {
	ids, err := s.redis.SMembers(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if len(ids) > s.maxFamilySize {
		return nil, fmt.Errorf("%w: %d records in family %s", ErrFamilyOverflow, len(ids), familyID)
	}
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.recordKey(familyID, id))
	}

	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	records := make([]*Record, 0, len(ids))
	for _, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, decErr)
		}

		records = append(records, rec)
	}

	return records, nil
}

// RevokeRecord atomically flips one record's revocation header using a Lua
// CAS script. Under concurrent callers exactly one receives [RevokeDone];
// the rest receive [RevokeAlreadyRevoked]. This is the serialization point
// of the rotation protocol.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: CAS prevents double-spend of a refresh token under concurrency.
func (s *Store) RevokeRecord(ctx context.Context, familyID, recordID string, reason Reason, at time.Time) (RevokeStatus, error) {
	header := revocationHeader(reason, at.Unix())

	result, err := revokeRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(familyID, recordID)},
		header,
	).Result()
	if err != nil {
		return RevokeNotFound, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return RevokeNotFound, fmt.Errorf("%w: invalid revoke script status", ErrRedisUnavailable)
	}

	switch code {
	case int64(RevokeNotFound), int64(RevokeAlreadyRevoked), int64(RevokeDone):
		return RevokeStatus(code), nil
	case revokeStatusInvalidBlob:
		return RevokeNotFound, ErrRecordCorrupt
	default:
		return RevokeNotFound, fmt.Errorf("%w: unknown revoke script status", ErrRedisUnavailable)
	}
}

// RevokeFamily revokes every live record in the family and returns how many
// were flipped by this call. Already-revoked and expired records are left
// alone, so repeated invocations are harmless.
//
//	Performance: 1 Lua EVALSHA touching O(family size) keys.
func (s *Store) RevokeFamily(ctx context.Context, familyID string, reason Reason, at time.Time) (int, error) {
	header := revocationHeader(reason, at.Unix())

	result, err := revokeFamilyLua.Run(
		ctx,
		s.redis,
		[]string{s.familyKey(familyID)},
		s.recordKeyPrefix(familyID),
		header,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	flipped, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid family revoke script status", ErrRedisUnavailable)
	}

	return int(flipped), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
