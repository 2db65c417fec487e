package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionPrefix     = "session:"
	userSessionPrefix = "user_sessions:"
)

// extendIndex pushes the expiry of index key k out to at least ms, given
// the caller's clock in nowms.
const extendIndex = `
local function extendIndex(k, ms, nowms)
  local ttl = redis.call('PTTL', k)
  if ttl == -2 then
    return
  end
  if ttl == -1 or tonumber(nowms) + ttl < tonumber(ms) then
    redis.call('PEXPIREAT', k, ms)
  end
end
`

// createScript moves a reissued token out of its previous owner's index
// before writing the session.
// KEYS: session, owner index. ARGV: user_id, created_at, updated_at,
// expires_at, key expiry ms, token, index prefix, now ms.
var createScript = goredis.NewScript(extendIndex + `
local prev = redis.call('HGET', KEYS[1], 'user_id')
if prev and prev ~= ARGV[1] then
  redis.call('SREM', ARGV[7] .. prev, ARGV[6])
end
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[2])
redis.call('HSET', KEYS[1], 'user_id', ARGV[1], 'updated_at', ARGV[3], 'expires_at', ARGV[4])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
redis.call('SADD', KEYS[2], ARGV[6])
extendIndex(KEYS[2], ARGV[5], ARGV[8])
return 1`)

// KEYS: session. ARGV: expires_at, updated_at, key expiry ms, index prefix, now ms.
var setExpiryScript = goredis.NewScript(extendIndex + `
local uid = redis.call('HGET', KEYS[1], 'user_id')
if not uid then
  return 0
end
redis.call('HSET', KEYS[1], 'expires_at', ARGV[1], 'updated_at', ARGV[2])
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
extendIndex(ARGV[4] .. uid, ARGV[3], ARGV[5])
return 1`)

// deleteByUserScript drops indexed sessions still owned by ARGV[2], then the index.
var deleteByUserScript = goredis.NewScript(`
local n = 0
for _, t in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local k = ARGV[1] .. t
  if redis.call('HGET', k, 'user_id') == ARGV[2] then
    n = n + redis.call('DEL', k)
  end
end
redis.call('DEL', KEYS[1])
return n`)

// SessionRepo implements SessionRepository on Redis.
// Each session is a hash; a per-user set indexes tokens for bulk revocation.
type SessionRepo struct {
	rdb       goredis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

// NewSessionRepo constructs a Redis session repository.
func NewSessionRepo(rdb goredis.UniversalClient, retention time.Duration) *SessionRepo {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SessionRepo{rdb: rdb, retention: retention, now: time.Now}
}

var _ repository.SessionRepository = (*SessionRepo)(nil)

func sessionKey(token string) string       { return sessionPrefix + token }
func userSessionsKey(id uuid.UUID) string { return userSessionPrefix + id.String() }

// Create writes the session hash and indexes it under its user. A token
// reissued to another user leaves the previous user's index.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	expiry := s.ExpiresAt.Add(r.retention).UnixMilli()
	return createScript.Run(ctx, r.rdb, []string{sessionKey(s.Token), userSessionsKey(s.UserID)},
		s.UserID.String(), encodeTime(s.CreatedAt), encodeTime(s.UpdatedAt), encodeTime(s.ExpiresAt),
		expiry, s.Token, userSessionPrefix, r.now().UnixMilli(),
	).Err()
}

// GetByToken reads a session hash.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	m, err := r.rdb.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, errs.ErrNotFound
	}
	s := &model.Session{Token: token}
	if s.UserID, err = uuid.FromString(m["user_id"]); err != nil {
		return nil, fmt.Errorf("session %s: user_id: %w", token, err)
	}
	if s.CreatedAt, err = decodeTime(m["created_at"]); err != nil {
		return nil, fmt.Errorf("session %s: created_at: %w", token, err)
	}
	if s.UpdatedAt, err = decodeTime(m["updated_at"]); err != nil {
		return nil, fmt.Errorf("session %s: updated_at: %w", token, err)
	}
	if s.ExpiresAt, err = decodeTime(m["expires_at"]); err != nil {
		return nil, fmt.Errorf("session %s: expires_at: %w", token, err)
	}
	return s, nil
}

// SetExpiry moves the expiry of an existing token atomically.
func (r *SessionRepo) SetExpiry(ctx context.Context, token string, expiresAt, now time.Time) (bool, error) {
	n, err := setExpiryScript.Run(ctx, r.rdb, []string{sessionKey(token)},
		encodeTime(expiresAt), encodeTime(now), expiresAt.Add(r.retention).UnixMilli(),
		userSessionPrefix, r.now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes one token and its index entry.
func (r *SessionRepo) Delete(ctx context.Context, token string) (bool, error) {
	key := sessionKey(token)
	uid, err := r.rdb.HGet(ctx, key, "user_id").Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var del *goredis.IntCmd
	_, err = r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, key)
		p.SRem(ctx, userSessionPrefix+uid, token)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

// DeleteByUser revokes every indexed session the user still owns.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return deleteByUserScript.Run(ctx, r.rdb, []string{userSessionsKey(userID)},
		sessionPrefix, userID.String(),
	).Int64()
}

// DeleteExpired scans session keys and drops those past their expiry.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	iter := r.rdb.Scan(ctx, 0, sessionPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		token := strings.TrimPrefix(iter.Val(), sessionPrefix)
		s, err := r.GetByToken(ctx, token)
		if err != nil {
			continue
		}
		if !s.Expired(now) {
			continue
		}
		ok, err := r.Delete(ctx, token)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, iter.Err()
}
