package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/auth"
	"github.com/krishi-mitra/backend/internal/storage"
	"github.com/krishi-mitra/backend/internal/storage/models"
	"github.com/krishi-mitra/backend/pkg/logger"
)

type UserHandler struct {
	stores *storage.Selector
}

func NewUserHandler(stores *storage.Selector) *UserHandler {
	return &UserHandler{stores: stores}
}

func (h *UserHandler) GetDiagnoses(c *fiber.Ctx) error {
	identity := auth.FromContext(c)

	records, err := h.stores.For(identity.Guest).ListDiagnoses(c.UserContext(), identity.UserID)
	if err != nil {
		logger.Error("Failed to list diagnoses", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load diagnosis history",
		})
	}

	return c.JSON(fiber.Map{
		"diagnoses": records,
		"count":     len(records),
	})
}

func (h *UserHandler) ClearDiagnoses(c *fiber.Ctx) error {
	identity := auth.FromContext(c)

	if err := h.stores.For(identity.Guest).ClearDiagnoses(c.UserContext(), identity.UserID); err != nil {
		logger.Error("Failed to clear diagnoses", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear diagnosis history",
		})
	}

	return c.JSON(fiber.Map{"cleared": true})
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	identity := auth.FromContext(c)

	profile, err := h.stores.For(identity.Guest).GetProfile(c.UserContext(), identity.UserID)
	if err != nil {
		logger.Error("Failed to load profile", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load profile",
		})
	}

	if identity.Email != "" {
		profile.Email = identity.Email
	}
	profile.Guest = identity.Guest

	return c.JSON(profile)
}

func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	identity := auth.FromContext(c)

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile := &models.Profile{Name: req.Name, Email: req.Email}
	if err := h.stores.For(identity.Guest).UpdateProfile(c.UserContext(), identity.UserID, profile); err != nil {
		logger.Error("Failed to update profile", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return h.GetProfile(c)
}

func (h *UserHandler) GetPreferences(c *fiber.Ctx) error {
	identity := auth.FromContext(c)

	prefs, err := h.stores.For(identity.Guest).GetPreferences(c.UserContext(), identity.UserID)
	if err != nil {
		logger.Error("Failed to load preferences", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load preferences",
		})
	}

	return c.JSON(prefs)
}

func (h *UserHandler) UpdatePreferences(c *fiber.Ctx) error {
	identity := auth.FromContext(c)

	var prefs models.UserPreferences
	if err := c.BodyParser(&prefs); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if prefs.Language != "en" && prefs.Language != "hi" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "language must be \"en\" or \"hi\"",
		})
	}

	if err := h.stores.For(identity.Guest).SavePreferences(c.UserContext(), identity.UserID, prefs); err != nil {
		logger.Error("Failed to save preferences", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save preferences",
		})
	}

	return c.JSON(prefs)
}
