package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/cache"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/shopify"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/tasks"
)

// CacheTTL bounds how long a profile may be served without consulting the
// metafield copy.
const CacheTTL = 6 * time.Hour

// ErrNotFound reports that no profile exists for an email.
var ErrNotFound = errors.New("dog profile not found")

// DogProfile is the storefront's pet questionnaire, keyed by owner email.
// The durable copy lives in a Shopify customer metafield; redis only
// shortens the read path.
type DogProfile struct {
	Email            string   `json:"email"`
	DogName          string   `json:"dog_name"`
	DogAge           float64  `json:"dog_age"`
	DogAgeUnit       string   `json:"dog_age_unit"`
	DogWeightKg      float64  `json:"dog_weight_kg"`
	BodyCondition    string   `json:"body_condition"`
	ActivityLevel    string   `json:"activity_level"`
	Allergies        []string `json:"allergies"`
	PreferredProtein string   `json:"preferred_protein"`
	PreferredPlan    string   `json:"preferred_plan"`
	UpdatedAt        string   `json:"updated_at"`
}

// applyDefaults fills the fields the storefront may omit.
func (p *DogProfile) applyDefaults() {
	if p.DogAgeUnit == "" {
		p.DogAgeUnit = "years"
	}
	if p.BodyCondition == "" {
		p.BodyCondition = "ideal"
	}
	if p.ActivityLevel == "" {
		p.ActivityLevel = "moderate"
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.PreferredProtein == "" {
		p.PreferredProtein = "surf_turf"
	}
	if p.PreferredPlan == "" {
		p.PreferredPlan = "full"
	}
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// MetafieldStore is the slice of the Shopify client the profile service
// uses. *shopify.Client satisfies it.
type MetafieldStore interface {
	FindOrCreateCustomer(ctx context.Context, email string) (*shopify.Customer, error)
	SetCustomerMetafield(ctx context.Context, customerID, key string, value interface{}) error
}

// Service reads and writes dog profiles: redis in front, customer metafield
// behind. Saves answer from cache immediately; the metafield write is a
// detached task whose failure only reaches the log.
type Service struct {
	cache  *cache.Cache
	store  MetafieldStore
	runner *tasks.Runner
}

// NewService wires the profile service from its dependencies.
func NewService(c *cache.Cache, store MetafieldStore, runner *tasks.Runner) *Service {
	return &Service{cache: c, store: store, runner: runner}
}

func cacheKey(email string) string {
	return "dog_profile:" + email
}

// Get returns the profile for an email, preferring the cache and falling
// back to the customer metafield. ErrNotFound when neither has it.
func (s *Service) Get(ctx context.Context, email string) (*DogProfile, error) {
	if cached, err := s.cache.Get(ctx, cacheKey(email)); err == nil {
		var profile DogProfile
		if err := json.Unmarshal([]byte(cached), &profile); err == nil {
			return &profile, nil
		}
		// Unreadable cache entries are dropped, not served.
		_ = s.cache.Delete(ctx, cacheKey(email))
	} else if !cache.IsMiss(err) {
		log.Warnf("[DogProfiles] cache read failed for %s: %v", email, err)
	}

	customer, err := s.store.FindOrCreateCustomer(ctx, email)
	if err != nil {
		return nil, err
	}
	if customer == nil || customer.MetafieldValue == "" {
		return nil, ErrNotFound
	}

	var profile DogProfile
	if err := json.Unmarshal([]byte(customer.MetafieldValue), &profile); err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, &profile)
	return &profile, nil
}

// Save applies defaults, caches the profile and spawns the metafield write.
// The returned profile is what was cached.
func (s *Service) Save(ctx context.Context, profile *DogProfile) (*DogProfile, error) {
	if profile == nil || profile.Email == "" {
		return nil, errors.New("email is required")
	}
	profile.applyDefaults()
	s.cacheProfile(ctx, profile)

	saved := *profile
	s.runner.Spawn("dog-profile-metafield-save", func(taskCtx context.Context) error {
		customer, err := s.store.FindOrCreateCustomer(taskCtx, saved.Email)
		if err != nil {
			return err
		}
		if customer == nil {
			return errors.New("no customer to attach profile to")
		}
		if err := s.store.SetCustomerMetafield(taskCtx, customer.ID, shopify.MetafieldKeyDogProfile, &saved); err != nil {
			return err
		}
		log.Infof("[DogProfiles] Saved metafield profile for %s", saved.Email)
		return nil
	})

	return profile, nil
}

func (s *Service) cacheProfile(ctx context.Context, profile *DogProfile) {
	encoded, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(profile.Email), encoded, CacheTTL); err != nil {
		log.Warnf("[DogProfiles] cache write failed for %s: %v", profile.Email, err)
	}
}
