package orders

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/url"
	"time"

	"amazon-orders/internal/amazon/session"
	"amazon-orders/internal/components/chrono"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrNotCached = badger.ErrKeyNotFound

type cachedPage struct {
	URL       string
	Status    int
	Body      []byte
	ExpiresAt int64
}

// DetailsCache keeps fetched order details pages so a scrape that failed partway does not
// request them again when resumed.
type DetailsCache struct {
	db        *badger.DB
	namespace string
	lifetime  time.Duration
	time      chrono.TimeAPI
}

// OpenDetailsCache opens (or creates) a cache in dir, an empty dir keeps the cache in memory.
// Entries are namespaced so several accounts can share a directory.
func OpenDetailsCache(dir, namespace string, lifetime time.Duration, time chrono.TimeAPI) (*DetailsCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DetailsCache{
		db:        db,
		namespace: namespace,
		lifetime:  lifetime,
		time:      time,
	}, nil
}

func (c *DetailsCache) Close() error {
	return c.db.Close()
}

func (c *DetailsCache) key(endpoint string) (string, error) {
	full, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(
		full,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	return c.namespace + ":" + normalized, nil
}

func (c *DetailsCache) Get(ctx context.Context, endpoint string) (*session.Page, error) {
	ctx, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	key, err := c.key(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return nil, err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	tx := c.db.NewTransaction(false)
	defer tx.Discard()
	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotCached
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return nil, err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy cached item")
		return nil, err
	}

	var cached cachedPage
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&cached)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return nil, err
	}

	if c.time.Now().Unix() >= cached.ExpiresAt {
		span.AddEvent("delete expired cache key", trace.WithAttributes(attribute.String("key", key)))
		_ = c.Delete(ctx, endpoint)
		return nil, ErrNotCached
	}

	return pageFromCache(cached)
}

func (c *DetailsCache) Set(ctx context.Context, endpoint string, page *session.Page) error {
	ctx, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	key, err := c.key(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	serialized := bytes.NewBuffer(nil)
	err = gob.NewEncoder(serialized).Encode(cachedPage{
		URL:       page.URL.String(),
		Status:    page.Status,
		Body:      page.Body,
		ExpiresAt: c.time.Now().Add(c.lifetime).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize page")
		return err
	}

	err = c.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), serialized.Bytes())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
		return err
	}
	return nil
}

func (c *DetailsCache) Delete(ctx context.Context, endpoint string) error {
	key, err := c.key(endpoint)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *badger.Txn) error {
		return tx.Delete([]byte(key))
	})
}
