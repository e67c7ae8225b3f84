package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/service"
)

// ProfileHandler handles the public profile directory.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type profileRequest struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// Create registers the caller's profile.
func (h *ProfileHandler) Create(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	profile, err := h.profiles.Create(c.Request().Context(), id, domain.Profile{ID: req.ID, Email: req.Email})
	if err != nil {
		return err
	}

	return JSON(c, http.StatusCreated, profile)
}

// FindByEmail resolves ?email= to a profile.
func (h *ProfileHandler) FindByEmail(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return &domain.ValidationError{Field: "email", Message: "email is required"}
	}

	profile, err := h.profiles.FindByEmail(c.Request().Context(), email)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, profile)
}
