package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/model"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	goredis "github.com/redis/go-redis/v9"
)

const verificationPrefix = "verification:"

var incAttemptsScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)`)

// VerificationRepo implements VerificationRepository on Redis, one hash per e-mail.
type VerificationRepo struct {
	rdb       goredis.UniversalClient
	retention time.Duration
}

// NewVerificationRepo constructs a Redis verification repository.
func NewVerificationRepo(rdb goredis.UniversalClient, retention time.Duration) *VerificationRepo {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &VerificationRepo{rdb: rdb, retention: retention}
}

var _ repository.VerificationRepository = (*VerificationRepo)(nil)

func verificationKey(email string) string { return verificationPrefix + email }

// Get reads the pending code for email.
func (r *VerificationRepo) Get(ctx context.Context, email string) (*model.Verification, error) {
	m, err := r.rdb.HGetAll(ctx, verificationKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, errs.ErrNotFound
	}
	v := &model.Verification{Email: email, Code: m["code"]}
	if v.ID, err = uuid.FromString(m["id"]); err != nil {
		return nil, fmt.Errorf("verification %s: id: %w", email, err)
	}
	if v.Attempts, err = strconv.Atoi(m["attempts"]); err != nil {
		return nil, fmt.Errorf("verification %s: attempts: %w", email, err)
	}
	if v.ExpiresAt, err = decodeTime(m["expires_at"]); err != nil {
		return nil, fmt.Errorf("verification %s: expires_at: %w", email, err)
	}
	if v.CreatedAt, err = decodeTime(m["created_at"]); err != nil {
		return nil, fmt.Errorf("verification %s: created_at: %w", email, err)
	}
	return v, nil
}

// Put replaces the pending code in one MULTI/EXEC.
func (r *VerificationRepo) Put(ctx context.Context, v *model.Verification) error {
	key := verificationKey(v.Email)
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"id", v.ID.String(),
			"code", v.Code,
			"attempts", v.Attempts,
			"expires_at", encodeTime(v.ExpiresAt),
			"created_at", encodeTime(v.CreatedAt),
		)
		p.PExpireAt(ctx, key, v.ExpiresAt.Add(r.retention))
		return nil
	})
	return err
}

// IncAttempts bumps the attempt counter only if a code exists.
func (r *VerificationRepo) IncAttempts(ctx context.Context, email string) (bool, error) {
	n, err := incAttemptsScript.Run(ctx, r.rdb, []string{verificationKey(email)}).Int64()
	if err != nil {
		return false, err
	}
	return n >= 0, nil
}

// Delete drops the pending code.
func (r *VerificationRepo) Delete(ctx context.Context, email string) error {
	return r.rdb.Del(ctx, verificationKey(email)).Err()
}
