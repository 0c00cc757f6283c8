package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrEntryNotFound is the uniform missing/expired/consumed outcome.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrBackendUnavailable wraps Redis transport failures.
	ErrBackendUnavailable = errors.New("store backend unavailable")
	// ErrCorruptRecord reports an undecodable blob.
	ErrCorruptRecord = errors.New("corrupt store record")
)

// consumeScript atomically reads and deletes a single-use key.
const consumeScript = `
local v = redis.call("GET", KEYS[1])
if not v then
  return false
end
redis.call("DEL", KEYS[1])
return v
`

var consumeLua = redis.NewScript(consumeScript)

func consume(ctx context.Context, rdb redis.UniversalClient, key string) ([]byte, error) {
	res, err := consumeLua.Run(ctx, rdb, []string{key}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	switch v := res.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, ErrEntryNotFound
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("store record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeStrings(buf *bytes.Buffer, values []string) error {
	if len(values) > 255 {
		return errors.New("store record list too long")
	}
	buf.WriteByte(byte(len(values)))
	for _, v := range values {
		if err := writeString(buf, v); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r *bytes.Reader) ([]string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
