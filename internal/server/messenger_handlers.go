package server

import (
	"courier/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMessengers handles GET /api/messengers
func (s *Server) GetMessengers(c *fiber.Ctx) error {
	characters, err := s.viewService.ListMessengersForUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(characters)
}

// TrackMessenger handles GET /api/messengers/:id/track
func (s *Server) TrackMessenger(c *fiber.Ctx) error {
	messengerID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	tracking, err := s.viewService.TrackMessenger(c.UserContext(), currentUserID(c), messengerID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(tracking)
}

// GetMessengerShipments handles GET /api/messengers/:id/shipments
func (s *Server) GetMessengerShipments(c *fiber.Ctx) error {
	messengerID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPaginationLimit)

	shipments, err := s.viewService.ShipmentHistory(c.UserContext(), currentUserID(c), messengerID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(shipments)
}

// RevealMessenger handles POST /api/messengers/:id/reveal
func (s *Server) RevealMessenger(c *fiber.Ctx) error {
	messengerID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.viewService.MarkRevealed(c.UserContext(), currentUserID(c), messengerID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSkins handles GET /api/skins
func (s *Server) GetSkins(c *fiber.Ctx) error {
	return c.JSON(s.catalog.All())
}
