package server

import (
	"courier/internal/models"

	"github.com/gofiber/fiber/v2"
)

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyLocation handles PUT /api/users/me/location
func (s *Server) UpdateMyLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Latitude == nil || req.Longitude == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("latitude and longitude are required"))
	}

	user, err := s.userService.UpdateLocation(c.UserContext(), currentUserID(c), *req.Latitude, *req.Longitude)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}
