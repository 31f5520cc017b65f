package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const defaultCollection = "idempotency_keys"

type keyDocument struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders,omitempty"`
	ResponseBody    []byte              `firestore:"responseBody,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

// FirestoreStore implements Store on Firestore. Reservation runs in a transaction so two
// concurrent checkouts with the same key cannot both proceed.
type FirestoreStore struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[keyDocument]
}

// NewFirestoreStore binds the store to the idempotency_keys collection.
func NewFirestoreStore(provider *pfirestore.Provider) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	return &FirestoreStore{
		provider: provider,
		base:     pfirestore.NewBaseRepository[keyDocument](provider, defaultCollection, nil, nil),
	}, nil
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	var result Reservation
	err := pfirestore.RunInContext(ctx, s.provider, func(ctx context.Context) error {
		current, err := s.load(ctx, key)
		if err != nil {
			return err
		}
		res, next, err := reserve(current, key, fingerprint, now.UTC(), ttl)
		if err != nil {
			return err
		}
		result = res
		if next == nil {
			return nil
		}
		return s.base.Set(ctx, documentID(key), toDocument(*next))
	})
	return result, err
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	return pfirestore.RunInContext(ctx, s.provider, func(ctx context.Context) error {
		current, err := s.load(ctx, key)
		if err != nil {
			return err
		}
		rec, err := completed(current, key, fingerprint, resp, now.UTC(), ttl)
		if err != nil {
			return err
		}
		return s.base.Set(ctx, documentID(key), toDocument(rec))
	})
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	err := s.base.Delete(ctx, documentID(key))
	if isNotFound(err) {
		return nil
	}
	return err
}

// CleanupExpired deletes up to limit expired keys.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expiresAt", "<=", now.UTC()).Limit(limit)
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range docs {
		if err := s.base.Delete(ctx, doc.ID); err != nil && !isNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *FirestoreStore) load(ctx context.Context, key string) (*Record, error) {
	doc, err := s.base.Get(ctx, documentID(key))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := fromDocument(doc.Data)
	return &rec, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func toDocument(r Record) keyDocument {
	return keyDocument{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          string(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func fromDocument(d keyDocument) Record {
	return Record{
		Key:             d.Key,
		Fingerprint:     d.Fingerprint,
		Status:          Status(d.Status),
		ResponseStatus:  d.ResponseStatus,
		ResponseHeaders: d.ResponseHeaders,
		ResponseBody:    d.ResponseBody,
		CreatedAt:       d.CreatedAt,
		ExpiresAt:       d.ExpiresAt,
	}
}
