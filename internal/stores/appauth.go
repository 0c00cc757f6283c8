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

const (
	grantRecordVersion1 = 1
	codeRecordVersion1  = 1
)

// GrantRecord is a pending authorization grant awaiting consent.
type GrantRecord struct {
	AppID               string
	CodeChallenge       string
	CodeChallengeMethod string
	Scopes              []string
	ExpiresAt           int64
}

// CodeRecord is a one-time authorization code: the grant data plus the
// authorizing account.
type CodeRecord struct {
	AppID               string
	CodeChallenge       string
	CodeChallengeMethod string
	Scopes              []string
	SystemID            string
	ExpiresAt           int64
}

// AppAuthStore keeps authorization grants and codes under separate prefixes.
type AppAuthStore struct {
	redis       redis.UniversalClient
	grantPrefix string
	codePrefix  string
}

func NewAppAuthStore(redisClient redis.UniversalClient, grantPrefix, codePrefix string) *AppAuthStore {
	if grantPrefix == "" {
		grantPrefix = "appauth"
	}
	if codePrefix == "" {
		codePrefix = "authcode"
	}
	return &AppAuthStore{
		redis:       redisClient,
		grantPrefix: grantPrefix,
		codePrefix:  codePrefix,
	}
}

func (s *AppAuthStore) grantKey(authID string) string {
	return s.grantPrefix + ":" + authID
}

func (s *AppAuthStore) codeKey(code string) string {
	return s.codePrefix + ":" + code
}

func (s *AppAuthStore) GrantExists(ctx context.Context, authID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.grantKey(authID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

func (s *AppAuthStore) SaveGrant(ctx context.Context, authID string, record *GrantRecord, ttl time.Duration) error {
	encoded, err := encodeGrantRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.grantKey(authID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// GetGrant reads a grant without consuming it, for the consent screen.
func (s *AppAuthStore) GetGrant(ctx context.Context, authID string) (*GrantRecord, error) {
	data, err := s.redis.Get(ctx, s.grantKey(authID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	record, err := decodeGrantRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.grantKey(authID)).Result()
		return nil, ErrEntryNotFound
	}
	return record, nil
}

// ConsumeGrant atomically reads and erases a grant; the exchange for an
// authorization code is single-use.
func (s *AppAuthStore) ConsumeGrant(ctx context.Context, authID string) (*GrantRecord, error) {
	data, err := consume(ctx, s.redis, s.grantKey(authID))
	if err != nil {
		return nil, err
	}
	record, err := decodeGrantRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrEntryNotFound
	}
	return record, nil
}

func (s *AppAuthStore) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.codeKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

func (s *AppAuthStore) SaveCode(ctx context.Context, code string, record *CodeRecord, ttl time.Duration) error {
	encoded, err := encodeCodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.codeKey(code), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// ConsumeCode atomically reads and erases an authorization code. The caller
// verifies the PKCE challenge afterwards; a mismatch does not resurrect the
// code.
func (s *AppAuthStore) ConsumeCode(ctx context.Context, code string) (*CodeRecord, error) {
	data, err := consume(ctx, s.redis, s.codeKey(code))
	if err != nil {
		return nil, err
	}
	record, err := decodeCodeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrEntryNotFound
	}
	return record, nil
}

func encodeGrantRecord(record *GrantRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(grantRecordVersion1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.AppID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.CodeChallenge); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.CodeChallengeMethod); err != nil {
		return nil, err
	}
	if err := writeStrings(&buf, record.Scopes); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeGrantRecord(data []byte) (*GrantRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != grantRecordVersion1 {
		return nil, ErrCorruptRecord
	}

	record := &GrantRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.AppID, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.CodeChallenge, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.CodeChallengeMethod, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.Scopes, err = readStrings(reader); err != nil {
		return nil, ErrCorruptRecord
	}

	return record, nil
}

func encodeCodeRecord(record *CodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersion1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.AppID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.CodeChallenge); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.CodeChallengeMethod); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.SystemID); err != nil {
		return nil, err
	}
	if err := writeStrings(&buf, record.Scopes); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*CodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != codeRecordVersion1 {
		return nil, ErrCorruptRecord
	}

	record := &CodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.AppID, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.CodeChallenge, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.CodeChallengeMethod, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.SystemID, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.Scopes, err = readStrings(reader); err != nil {
		return nil, ErrCorruptRecord
	}

	return record, nil
}
