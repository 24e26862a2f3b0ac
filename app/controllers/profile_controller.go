package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/profiles"
)

// ProfileController exposes the dog feeding profile endpoints backing the
// storefront quiz.
type ProfileController struct {
	profiles *profiles.Service
	validate *validator.Validate
}

func NewProfileController(svc *profiles.Service) *ProfileController {
	return &ProfileController{profiles: svc, validate: validator.New()}
}

type dogProfileRequest struct {
	Email            string   `json:"email" validate:"required,email"`
	DogName          string   `json:"dog_name" validate:"required,min=1,max=64"`
	DogAge           float64  `json:"dog_age" validate:"gte=0,lte=30"`
	DogAgeUnit       string   `json:"dog_age_unit" validate:"omitempty,oneof=years months"`
	DogWeightKg      float64  `json:"dog_weight_kg" validate:"required,gt=0,lte=120"`
	BodyCondition    string   `json:"body_condition" validate:"omitempty,oneof=underweight ideal overweight"`
	ActivityLevel    string   `json:"activity_level" validate:"omitempty,oneof=low moderate high"`
	Allergies        []string `json:"allergies" validate:"max=32,dive,max=64"`
	PreferredProtein string   `json:"preferred_protein"`
	PreferredPlan    string   `json:"preferred_plan" validate:"omitempty,oneof=full half topper"`
}

// HandleGetProfile processes GET /api/dog-profiles?email=...
func (pc *ProfileController) HandleGetProfile(c *fiber.Ctx) error {
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}

	profile, err := pc.profiles.Get(c.UserContext(), email)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No dog profile found",
			})
		}
		log.Errorf("[DogProfiles] lookup failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load dog profile",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
	})
}

// HandleSaveProfile processes POST /api/dog-profiles. The profile is cached
// immediately and mirrored to the Shopify customer metafield in the
// background, so a slow Shopify API never blocks the quiz.
func (pc *ProfileController) HandleSaveProfile(c *fiber.Ctx) error {
	var req dogProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON body",
		})
	}
	if err := pc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Invalid dog profile",
			"detail": err.Error(),
		})
	}

	profile := &profiles.DogProfile{
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		DogName:          strings.TrimSpace(req.DogName),
		DogAge:           req.DogAge,
		DogAgeUnit:       req.DogAgeUnit,
		DogWeightKg:      req.DogWeightKg,
		BodyCondition:    req.BodyCondition,
		ActivityLevel:    req.ActivityLevel,
		Allergies:        req.Allergies,
		PreferredProtein: req.PreferredProtein,
		PreferredPlan:    req.PreferredPlan,
	}

	saved, err := pc.profiles.Save(c.UserContext(), profile)
	if err != nil {
		log.Errorf("[DogProfiles] save failed for %s: %v", profile.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save dog profile",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": saved,
	})
}
