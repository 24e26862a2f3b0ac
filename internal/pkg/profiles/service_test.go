package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/cache"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/shopify"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/tasks"
)

type fakeMetafieldStore struct {
	mu         sync.Mutex
	customers  map[string]*shopify.Customer
	saved      map[string]string
	findErr    error
	savedCount int
}

func newFakeMetafieldStore() *fakeMetafieldStore {
	return &fakeMetafieldStore{
		customers: map[string]*shopify.Customer{},
		saved:     map[string]string{},
	}
}

func (f *fakeMetafieldStore) FindOrCreateCustomer(_ context.Context, email string) (*shopify.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if c, ok := f.customers[email]; ok {
		return c, nil
	}
	c := &shopify.Customer{ID: "gid://shopify/Customer/" + email, Email: email}
	f.customers[email] = c
	return c, nil
}

func (f *fakeMetafieldStore) SetCustomerMetafield(_ context.Context, customerID, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.saved[customerID+"/"+key] = string(encoded)
	f.savedCount++
	return nil
}

func testService(t *testing.T) (*Service, *fakeMetafieldStore, *tasks.Runner) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newFakeMetafieldStore()
	runner := tasks.NewRunner(5 * time.Second)
	return NewService(cache.New(client, CacheTTL), store, runner), store, runner
}

func TestSaveAppliesDefaultsAndCaches(t *testing.T) {
	svc, store, runner := testService(t)

	saved, err := svc.Save(context.Background(), &DogProfile{
		Email:       "ana@example.com",
		DogName:     "Duffy",
		DogAge:      3,
		DogWeightKg: 12.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.DogAgeUnit != "years" || saved.BodyCondition != "ideal" || saved.ActivityLevel != "moderate" {
		t.Fatalf("defaults not applied: %+v", saved)
	}
	if saved.PreferredProtein != "surf_turf" || saved.PreferredPlan != "full" {
		t.Fatalf("plan defaults not applied: %+v", saved)
	}
	if saved.UpdatedAt == "" {
		t.Fatalf("expected updated_at to be stamped")
	}

	runner.Drain()
	store.mu.Lock()
	savedCount := store.savedCount
	store.mu.Unlock()
	if savedCount != 1 {
		t.Fatalf("metafield writes = %d, want 1", savedCount)
	}

	// Served from cache without touching the metafield store.
	store.findErr = errors.New("shopify down")
	got, err := svc.Get(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DogName != "Duffy" {
		t.Fatalf("cached profile = %+v", got)
	}
}

func TestGetFallsBackToMetafield(t *testing.T) {
	svc, store, _ := testService(t)

	profile := DogProfile{Email: "ben@example.com", DogName: "Bruno", DogWeightKg: 20}
	encoded, _ := json.Marshal(profile)
	store.customers["ben@example.com"] = &shopify.Customer{
		ID:             "gid://shopify/Customer/2",
		Email:          "ben@example.com",
		MetafieldValue: string(encoded),
	}

	got, err := svc.Get(context.Background(), "ben@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DogName != "Bruno" {
		t.Fatalf("profile = %+v", got)
	}

	// The metafield read should have primed the cache.
	store.findErr = errors.New("shopify down")
	if _, err := svc.Get(context.Background(), "ben@example.com"); err != nil {
		t.Fatalf("expected cache hit after metafield read, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _, _ := testService(t)

	_, err := svc.Get(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRequiresEmail(t *testing.T) {
	svc, _, _ := testService(t)
	if _, err := svc.Save(context.Background(), &DogProfile{DogName: "Duffy"}); err == nil {
		t.Fatalf("expected error for missing email")
	}
}
