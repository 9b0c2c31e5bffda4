package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/closetapp/closet-sync/internal/syncwire"
)

// S3Store persists account documents as JSON objects:
// {account}/{table}.json and {account}/meta.json.
//
// Apply holds a per-account in-process mutex, which serializes pushes within
// one server process. Across processes the read-modify-write still races;
// single-user accounts with few devices make this acceptable, and the
// Postgres backend is the answer when it is not.
type S3Store struct {
	client *s3.Client
	bucket string

	locks sync.Map // account -> *sync.Mutex
}

func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func tableKey(account, table string) string {
	return account + "/" + table + ".json"
}

func metaKey(account string) string {
	return account + "/meta.json"
}

func (s *S3Store) lock(account string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(account, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *S3Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) LoadTable(ctx context.Context, account, table string) (map[string]*syncwire.Record, error) {
	var recs []*syncwire.Record
	if _, err := s.getJSON(ctx, tableKey(account, table), &recs); err != nil {
		return nil, err
	}
	out := make(map[string]*syncwire.Record, len(recs))
	for _, rec := range recs {
		out[rec.ID] = rec
	}
	return out, nil
}

func (s *S3Store) LoadMeta(ctx context.Context, account string) (*Meta, error) {
	meta := &Meta{}
	if _, err := s.getJSON(ctx, metaKey(account), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *S3Store) Apply(ctx context.Context, account string, fn func(ctx context.Context, tx Tx) error) error {
	mu := s.lock(account)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx, &s3Tx{store: s, account: account})
}

type s3Tx struct {
	store   *S3Store
	account string
}

func (t *s3Tx) LoadTable(ctx context.Context, table string) (map[string]*syncwire.Record, error) {
	return t.store.LoadTable(ctx, t.account, table)
}

func (t *s3Tx) SaveTable(ctx context.Context, table string, records map[string]*syncwire.Record) error {
	recs := make([]*syncwire.Record, 0, len(records))
	for _, rec := range records {
		recs = append(recs, rec)
	}
	return t.store.putJSON(ctx, tableKey(t.account, table), recs)
}

func (t *s3Tx) LoadMeta(ctx context.Context) (*Meta, error) {
	return t.store.LoadMeta(ctx, t.account)
}

func (t *s3Tx) SaveMeta(ctx context.Context, meta *Meta) error {
	return t.store.putJSON(ctx, metaKey(t.account), meta)
}
