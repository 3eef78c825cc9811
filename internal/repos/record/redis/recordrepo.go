// Package redis provides a record repository storing donations, payments and contact messages inside Redis
package redis

import (
	"bytes"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// Key layout:
//   record:<id>       hash with the fields "type", "status" and "body" (JSON)
//   records:<type>    sorted set of record IDs scored by their creation time
const (
	keyRecordPrefix  = "record:"
	keyRecordsPrefix = "records:"

	fldType   = "type"
	fldStatus = "status"
	fldBody   = "body"
)

// RecordRepo is a record repository backed by Redis
type RecordRepo struct {
	client *redis.Client
	logger *logrus.Entry
	now    func() time.Time
}

// New creates a new record repository instance using the given Redis client
func New(client *redis.Client, logger *logrus.Entry) *RecordRepo {
	return &RecordRepo{
		client: client,
		logger: logger.WithField(log.FldRepo, "redis"),
		now:    time.Now,
	}
}

// Put creates the record or overwrites its body and status
func (r *RecordRepo) Put(ctx context.Context, id, recordType, status string, record interface{}) error {
	r.logger.WithFields(logrus.Fields{log.FldID: id, log.FldRecordType: recordType}).Debug("Storing record")
	body, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, keyRecordPrefix+id, fldType, recordType, fldStatus, status, fldBody, string(body))
		// Keeps the original position when overwriting
		pipe.ZAddNX(ctx, keyRecordsPrefix+recordType, &redis.Z{
			Score:  float64(r.now().UnixNano()),
			Member: id,
		})
		return nil
	})
	return errors.Wrap(err, "failed to store record")
}

// Get loads the record with the given ID into target
func (r *RecordRepo) Get(ctx context.Context, id string, target interface{}) error {
	body, err := r.client.HGet(ctx, keyRecordPrefix+id, fldBody).Bytes()
	if err == redis.Nil {
		return repos.ErrEntityNotExisting
	}
	if err != nil {
		return errors.Wrap(err, "failed to load record")
	}
	return errors.Wrap(json.Unmarshal(body, target), "failed to decode record")
}

// List loads all records of the given type into the slice pointed to by target - newest first
func (r *RecordRepo) List(ctx context.Context, recordType string, target interface{}) error {
	ids, err := r.client.ZRevRange(ctx, keyRecordsPrefix+recordType, 0, -1).Result()
	if err != nil {
		return errors.Wrap(err, "failed to list records")
	}
	cmds := make([]*redis.StringCmd, len(ids))
	if len(ids) > 0 {
		_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.HGet(ctx, keyRecordPrefix+id, fldBody)
			}
			return nil
		})
		if err != nil && err != redis.Nil {
			return errors.Wrap(err, "failed to load records")
		}
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	for _, cmd := range cmds {
		body, err := cmd.Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "failed to load record")
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(body)
	}
	buf.WriteByte(']')
	return errors.Wrap(json.Unmarshal(buf.Bytes(), target), "failed to decode records")
}
