package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenRecordVersion1 = 1

// TokenRecord is one half of an access/refresh pair. Linked holds the other
// half's opaque value so revocation can take both down together.
type TokenRecord struct {
	Subject   string
	AppID     string
	Scopes    []string
	Linked    string
	ExpiresAt int64
}

// deletePairScript removes both halves of a token pair and drops the access
// token from the subject index in one round trip. It returns the DEL count of
// the refresh key so a rotation can detect that another caller already
// consumed the same refresh token.
//
// KEYS[1] access key, KEYS[2] refresh key, KEYS[3] subject index.
// ARGV[1] access token value.
var deletePairScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
local removed = redis.call("DEL", KEYS[2])
redis.call("SREM", KEYS[3], ARGV[1])
return removed
`)

// TokenStore keeps opaque access and refresh tokens plus a per-subject index
// of live access tokens for bulk revocation.
type TokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTokenStore(redisClient redis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "token"
	}
	return &TokenStore{redis: redisClient, prefix: prefix}
}

func (s *TokenStore) accessKey(token string) string  { return s.prefix + ":at:" + token }
func (s *TokenStore) refreshKey(token string) string { return s.prefix + ":rt:" + token }
func (s *TokenStore) subjectKey(subject string) string {
	return s.prefix + ":sub:" + subject
}

func (s *TokenStore) AccessExists(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.accessKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

func (s *TokenStore) RefreshExists(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.refreshKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// SavePair stores both halves and indexes the access token under the subject.
// The index entry expires with the refresh TTL, the longer of the two.
func (s *TokenStore) SavePair(ctx context.Context, access, refresh string, accessRecord, refreshRecord *TokenRecord, accessTTL, refreshTTL time.Duration) error {
	encodedAccess, err := encodeTokenRecord(accessRecord)
	if err != nil {
		return err
	}
	encodedRefresh, err := encodeTokenRecord(refreshRecord)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.accessKey(access), encodedAccess, accessTTL)
	pipe.Set(ctx, s.refreshKey(refresh), encodedRefresh, refreshTTL)
	pipe.SAdd(ctx, s.subjectKey(accessRecord.Subject), access)
	pipe.Expire(ctx, s.subjectKey(accessRecord.Subject), refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *TokenStore) GetAccess(ctx context.Context, token string) (*TokenRecord, error) {
	return s.get(ctx, s.accessKey(token))
}

func (s *TokenStore) GetRefresh(ctx context.Context, token string) (*TokenRecord, error) {
	return s.get(ctx, s.refreshKey(token))
}

func (s *TokenStore) get(ctx context.Context, key string) (*TokenRecord, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	record, err := decodeTokenRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, key).Result()
		return nil, ErrEntryNotFound
	}
	return record, nil
}

// DeletePair revokes an access token together with its linked refresh token.
// The returned flag reports whether the refresh half was still live; a false
// result means another caller already took the pair down.
func (s *TokenStore) DeletePair(ctx context.Context, access, refresh, subject string) (bool, error) {
	keys := []string{s.accessKey(access), s.refreshKey(refresh), s.subjectKey(subject)}
	removed, err := deletePairScript.Run(ctx, s.redis, keys, access).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return removed > 0, nil
}

// RemoveAccessIndex drops a single access token from the subject index. Used
// to clean up index members whose token entry already expired.
func (s *TokenStore) RemoveAccessIndex(ctx context.Context, subject, access string) error {
	if err := s.redis.SRem(ctx, s.subjectKey(subject), access).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// AccessTokensOf lists the live access tokens of a subject. Entries whose
// record has already expired are skipped, not reported.
func (s *TokenStore) AccessTokensOf(ctx context.Context, subject string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return members, nil
}

func encodeTokenRecord(record *TokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersion1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.Subject); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.AppID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.Linked); err != nil {
		return nil, err
	}
	if err := writeStrings(&buf, record.Scopes); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != tokenRecordVersion1 {
		return nil, ErrCorruptRecord
	}

	record := &TokenRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.Subject, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.AppID, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.Linked, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.Scopes, err = readStrings(reader); err != nil {
		return nil, ErrCorruptRecord
	}

	return record, nil
}
