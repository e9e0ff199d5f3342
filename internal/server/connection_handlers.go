package server

import (
	"courier/internal/models"

	"github.com/gofiber/fiber/v2"
)

type connectionRequest struct {
	RecipientEmail string `json:"recipient_email"`
}

// RequestConnection handles POST /api/connections
func (s *Server) RequestConnection(c *fiber.Ctx) error {
	var req connectionRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	conn, err := s.connectionService.RequestConnection(c.UserContext(), currentUserID(c), req.RecipientEmail)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conn)
}

// GetConnectionRequests handles GET /api/connections/requests
func (s *Server) GetConnectionRequests(c *fiber.Ctx) error {
	requests, err := s.connectionService.ListRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(requests)
}

// AcceptConnection handles POST /api/connections/:id/accept
func (s *Server) AcceptConnection(c *fiber.Ctx) error {
	connectionID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	conn, err := s.connectionService.Accept(c.UserContext(), currentUserID(c), connectionID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(conn)
}

// DeclineConnection handles POST /api/connections/:id/decline
func (s *Server) DeclineConnection(c *fiber.Ctx) error {
	connectionID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.connectionService.Decline(c.UserContext(), currentUserID(c), connectionID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CancelConnection handles DELETE /api/connections/:id
func (s *Server) CancelConnection(c *fiber.Ctx) error {
	connectionID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.connectionService.Cancel(c.UserContext(), currentUserID(c), connectionID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
