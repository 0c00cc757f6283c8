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

const preEntryRecordVersion1 = 1

// PreEntryKind discriminates the two pending-entry variants sharing the cache.
type PreEntryKind uint8

const (
	// PreEntryNew is an unconfirmed new-account mail claim.
	PreEntryNew PreEntryKind = 1
	// PreEntryMailChange is a pending mail change bound to an existing account.
	PreEntryMailChange PreEntryKind = 2
)

// PreEntryRecord is one pending claim. SystemID is set only for mail changes.
type PreEntryRecord struct {
	Kind        PreEntryKind
	MailAddress string
	SystemID    string
	ExpiresAt   int64
}

// PreEntryStore keeps pending claims under a shared prefix with a TTL.
type PreEntryStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPreEntryStore(redisClient redis.UniversalClient, prefix string) *PreEntryStore {
	if prefix == "" {
		prefix = "preentry"
	}
	return &PreEntryStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PreEntryStore) key(confirmationID string) string {
	return s.prefix + ":" + confirmationID
}

// Exists reports whether a confirmation id is currently taken. Used for
// collision regeneration before Save.
func (s *PreEntryStore) Exists(ctx context.Context, confirmationID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(confirmationID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

func (s *PreEntryStore) Save(ctx context.Context, confirmationID string, record *PreEntryRecord, ttl time.Duration) error {
	encoded, err := encodePreEntryRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(confirmationID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Get returns the claim without consuming it. Expired records are deleted
// lazily and reported as not found.
func (s *PreEntryStore) Get(ctx context.Context, confirmationID string) (*PreEntryRecord, error) {
	data, err := s.redis.Get(ctx, s.key(confirmationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	record, err := decodePreEntryRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(confirmationID)).Result()
		return nil, ErrEntryNotFound
	}
	return record, nil
}

// Delete erases a claim after successful completion.
func (s *PreEntryStore) Delete(ctx context.Context, confirmationID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(confirmationID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// Consume atomically reads and erases a claim in one step.
func (s *PreEntryStore) Consume(ctx context.Context, confirmationID string) (*PreEntryRecord, error) {
	data, err := consume(ctx, s.redis, s.key(confirmationID))
	if err != nil {
		return nil, err
	}
	record, err := decodePreEntryRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrEntryNotFound
	}
	return record, nil
}

func encodePreEntryRecord(record *PreEntryRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(preEntryRecordVersion1)
	buf.WriteByte(byte(record.Kind))
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.MailAddress); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.SystemID); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodePreEntryRecord(data []byte) (*PreEntryRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != preEntryRecordVersion1 {
		return nil, ErrCorruptRecord
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	record := &PreEntryRecord{Kind: PreEntryKind(kind)}
	if record.Kind != PreEntryNew && record.Kind != PreEntryMailChange {
		return nil, ErrCorruptRecord
	}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.MailAddress, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}
	if record.SystemID, err = readString(reader); err != nil {
		return nil, ErrCorruptRecord
	}

	return record, nil
}
