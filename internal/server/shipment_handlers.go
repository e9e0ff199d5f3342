package server

import (
	"strings"

	"courier/internal/models"
	"courier/internal/service"

	"github.com/gofiber/fiber/v2"
)

type dispatchRequest struct {
	RecipientID uint                    `json:"recipient_id"`
	Items       []service.GiftItemInput `json:"items"`
}

// DispatchShipment handles POST /api/shipments
func (s *Server) DispatchShipment(c *fiber.Ctx) error {
	var req dispatchRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.RecipientID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("recipient_id is required"))
	}
	for i := range req.Items {
		req.Items[i].Type = models.GiftItemType(strings.ToUpper(strings.TrimSpace(string(req.Items[i].Type))))
	}

	shipment, err := s.transitService.Dispatch(c.UserContext(), currentUserID(c), req.RecipientID, req.Items)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(shipment)
}

// GetShipment handles GET /api/shipments/:id
func (s *Server) GetShipment(c *fiber.Ctx) error {
	shipmentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	shipment, err := s.viewService.GetShipment(c.UserContext(), currentUserID(c), shipmentID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(shipment)
}

// ArriveShipment handles POST /api/shipments/:id/arrive
func (s *Server) ArriveShipment(c *fiber.Ctx) error {
	shipmentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.transitService.ArriveAsParty(c.UserContext(), currentUserID(c), shipmentID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// OpenShipment handles POST /api/shipments/:id/open
func (s *Server) OpenShipment(c *fiber.Ctx) error {
	shipmentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	shipment, err := s.transitService.Open(c.UserContext(), currentUserID(c), shipmentID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(shipment)
}

// RecallShipment handles POST /api/shipments/:id/recall
func (s *Server) RecallShipment(c *fiber.Ctx) error {
	shipmentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	shipment, err := s.transitService.Recall(c.UserContext(), currentUserID(c), shipmentID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(shipment)
}

// CompleteReturn handles POST /api/shipments/:id/complete-return
func (s *Server) CompleteReturn(c *fiber.Ctx) error {
	shipmentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.transitService.CompleteReturnAsSender(c.UserContext(), currentUserID(c), shipmentID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// Sync handles POST /api/sync
func (s *Server) Sync(c *fiber.Ctx) error {
	arrived, completed, err := s.syncService.SyncAll(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"arrived_ids":   arrived.ShipmentIDs,
		"completed_ids": completed.ShipmentIDs,
	})
}
