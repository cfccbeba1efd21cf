package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCapsuleStore records Insert calls; reads return the stored capsule.
type memCapsuleStore struct {
	inserted []model.Capsule
}

func (s *memCapsuleStore) Insert(ctx context.Context, c model.Capsule) error {
	s.inserted = append(s.inserted, c)
	return nil
}

func (s *memCapsuleStore) GetByID(ctx context.Context, id string, ownerID int64) (*model.Capsule, error) {
	for i := range s.inserted {
		if s.inserted[i].ID == id && s.inserted[i].OwnerID == ownerID {
			return &s.inserted[i], nil
		}
	}
	return nil, nil
}

func (s *memCapsuleStore) ListByOwner(ctx context.Context, ownerID int64, status model.CapsuleStatus, limit, offset int) ([]model.Capsule, error) {
	return s.inserted, nil
}

func (s *memCapsuleStore) FindDue(ctx context.Context, now time.Time, limit int) ([]model.Capsule, error) {
	return nil, nil
}

func (s *memCapsuleStore) MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error) {
	return false, nil
}

func (s *memCapsuleStore) MarkFailed(ctx context.Context, id string, errMsg string, at time.Time) (bool, error) {
	return false, nil
}

func (s *memCapsuleStore) UpdatePending(ctx context.Context, c model.Capsule) (bool, error) {
	return false, nil
}

func (s *memCapsuleStore) DeletePending(ctx context.Context, id string, ownerID int64) (bool, error) {
	return false, nil
}

// memBlobStore is a map-backed blob.Store.
type memBlobStore struct {
	data map[string][]byte
}

func newMemBlobStore() *memBlobStore { return &memBlobStore{data: make(map[string][]byte)} }

func (s *memBlobStore) Put(ctx context.Context, key string, data []byte) error {
	s.data[key] = data
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, ok := s.data[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return b, nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

const testInlineMax = 1000

func doCreate(t *testing.T, store *memCapsuleStore, blobs blob.Store, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/capsules", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	c := e.NewContext(req, rec)
	c.Set("user_id", int64(7))

	h := createCapsuleHandler(store, blobs, "capsules/", testInlineMax)
	require.NoError(t, h(c))
	return rec
}

func TestCreateCapsuleInlineBody(t *testing.T) {
	store := &memCapsuleStore{}
	blobs := newMemBlobStore()

	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	rec := doCreate(t, store, blobs, `{
		"title": "Hello",
		"message": "short body",
		"recipient_email": "Future@Example.COM",
		"scheduled_at": "`+future+`",
		"tags": ["a", "b"]
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.inserted, 1)

	c := store.inserted[0]
	assert.Equal(t, int64(7), c.OwnerID)
	assert.Equal(t, "short body", c.BodyInline)
	assert.Empty(t, c.BodyRef)
	assert.Equal(t, "future@example.com", c.RecipientEmail, "email is normalized")
	assert.Equal(t, "a,b", c.Tags)
	assert.Equal(t, model.StatusPending, c.Status)
	assert.Empty(t, blobs.data)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, c.ID, resp["id"])
}

func TestCreateCapsuleLargeBodyGoesToBlobStore(t *testing.T) {
	store := &memCapsuleStore{}
	blobs := newMemBlobStore()

	long := strings.Repeat("x", testInlineMax+1)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doCreate(t, store, blobs, `{
		"title": "Hello",
		"message": "`+long+`",
		"recipient_email": "a@example.com",
		"scheduled_at": "`+future+`"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.inserted, 1)

	c := store.inserted[0]
	assert.Empty(t, c.BodyInline)
	assert.Equal(t, blob.Key("capsules/", 7, c.ID), c.BodyRef)
	assert.Equal(t, []byte(long), blobs.data[c.BodyRef])
}

func TestCreateCapsuleValidation(t *testing.T) {
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"message":"m","recipient_email":"a@example.com","scheduled_at":"` + future + `"}`},
		{"bad email", `{"title":"t","message":"m","recipient_email":"not-an-email","scheduled_at":"` + future + `"}`},
		{"bad date", `{"title":"t","message":"m","recipient_email":"a@example.com","scheduled_at":"tomorrow"}`},
		{"past date", `{"title":"t","message":"m","recipient_email":"a@example.com","scheduled_at":"2020-01-01T00:00:00Z"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memCapsuleStore{}
			rec := doCreate(t, store, newMemBlobStore(), tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, store.inserted)
		})
	}
}
