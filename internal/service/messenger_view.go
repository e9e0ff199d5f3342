package service

import (
	"context"
	"log/slog"
	"time"

	"courier/internal/cache"
	"courier/internal/geo"
	"courier/internal/middleware"
	"courier/internal/models"
	"courier/internal/observability"
	"courier/internal/repository"
	"courier/internal/skins"

	"go.opentelemetry.io/otel/attribute"
)

// Display statuses shown to users.
const (
	DisplayReady     = "Ready"
	DisplayEnRoute   = "En Route"
	DisplayWaiting   = "Waiting"
	DisplayReturning = "Returning"
)

// DisplayStatus maps a messenger status to its user-facing label.
func DisplayStatus(status models.MessengerStatus) string {
	switch status {
	case models.MessengerStatusInTransit:
		return DisplayEnRoute
	case models.MessengerStatusWaiting:
		return DisplayWaiting
	case models.MessengerStatusReturning:
		return DisplayReturning
	default:
		return DisplayReady
	}
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func coordinatesOf(lat, lng *float64) *Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &Coordinates{Lat: *lat, Lng: *lng}
}

func (c *Coordinates) point() *geo.Point {
	if c == nil {
		return nil
	}
	return &geo.Point{Lat: c.Lat, Lng: c.Lng}
}

// Partner is the other user of a connection.
type Partner struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// ShipmentData is the raw input of the progress formulas. Clients animate
// progress from it; the anchors are fixed at dispatch/recall so the value
// can be cached.
type ShipmentData struct {
	ShipmentID   uint                  `json:"shipment_id"`
	Status       models.ShipmentStatus `json:"status"`
	SenderID     uint                  `json:"sender_id"`
	RecipientID  uint                  `json:"recipient_id"`
	DispatchedAt *time.Time            `json:"dispatched_at"`
	RecalledAt   *time.Time            `json:"recalled_at,omitempty"`
	DistanceInKm *float64              `json:"distance_in_km"`
	Origin       *Coordinates          `json:"origin,omitempty"`
	Destination  *Coordinates          `json:"destination,omitempty"`
	TravelTimeMs int64                 `json:"travel_time_ms"`
	ArrivalAt    *time.Time            `json:"arrival_at,omitempty"`
	ReturnTimeMs *int64                `json:"return_time_ms,omitempty"`
	ReturnAt     *time.Time            `json:"return_at,omitempty"`
}

// Character is one messenger as seen by one user.
type Character struct {
	ID             uint                   `json:"id"`
	ConnectionID   uint                   `json:"connection_id"`
	Name           string                 `json:"name"`
	Skin           skins.Skin             `json:"skin"`
	Status         models.MessengerStatus `json:"status"`
	DisplayStatus  string                 `json:"display_status"`
	CanSend        bool                   `json:"can_send"`
	IsHolder       bool                   `json:"is_holder"`
	Revealed       bool                   `json:"revealed"`
	Partner        Partner                `json:"partner"`
	Coordinates    *Coordinates           `json:"coordinates,omitempty"`
	ShipmentData   *ShipmentData          `json:"shipment_data,omitempty"`
	FormulaVersion string                 `json:"formula_version"`
}

// Tracking is a messenger's live position at one instant.
type Tracking struct {
	MessengerID   uint                   `json:"messenger_id"`
	Status        models.MessengerStatus `json:"status"`
	DisplayStatus string                 `json:"display_status"`
	Progress      float64                `json:"progress"`
	Position      *Coordinates           `json:"position,omitempty"`
	RemainingMs   int64                  `json:"remaining_ms"`
	ETA           string                 `json:"eta,omitempty"`
	ShipmentData  *ShipmentData          `json:"shipment_data,omitempty"`
	At            time.Time              `json:"at"`
}

// MessengerViewService builds the per-user messenger projection.
type MessengerViewService struct {
	store    repository.Store
	sync     *SyncService
	catalog  *skins.Catalog
	now      func() time.Time
	cacheTTL time.Duration
}

// NewMessengerViewService returns a new MessengerViewService. A zero
// cacheTTL disables the projection cache.
func NewMessengerViewService(store repository.Store, sync *SyncService, catalog *skins.Catalog, cacheTTL time.Duration) *MessengerViewService {
	return &MessengerViewService{
		store:    store,
		sync:     sync,
		catalog:  catalog,
		now:      sync.transit.Now,
		cacheTTL: cacheTTL,
	}
}

// ListMessengersForUser syncs the user's shipments, then projects every
// messenger the user shares.
func (s *MessengerViewService) ListMessengersForUser(ctx context.Context, userID uint) ([]Character, error) {
	span, ctx := observability.NewSpan(ctx, "view.list_messengers", attribute.Int64("user.id", int64(userID)))
	defer span.End()

	s.syncQuietly(ctx, userID)

	var characters []Character
	err := cache.CacheAsideGuarded(ctx, cache.CharactersKey(userID), cache.CharactersGenerationKey(userID), &characters, s.cacheTTL, func() error {
		var err error
		characters, err = s.project(ctx, userID)
		return err
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return characters, nil
}

// syncQuietly runs both sweeps. A failed sweep is logged and retried on the next read.
func (s *MessengerViewService) syncQuietly(ctx context.Context, userID uint) {
	if _, _, err := s.sync.SyncAll(ctx, userID); err != nil {
		middleware.Logger.WarnContext(ctx, "messenger sync failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MessengerViewService) project(ctx context.Context, userID uint) ([]Character, error) {
	conns, err := s.store.Connections().ListWithMessengers(ctx, userID)
	if err != nil {
		return nil, err
	}

	var shipmentIDs []uint
	for _, conn := range conns {
		if conn.Messenger != nil && conn.Messenger.CurrentShipmentID != nil {
			shipmentIDs = append(shipmentIDs, *conn.Messenger.CurrentShipmentID)
		}
	}
	shipments, err := s.store.Shipments().GetByIDs(ctx, shipmentIDs)
	if err != nil {
		return nil, err
	}

	characters := make([]Character, 0, len(conns))
	for i := range conns {
		conn := &conns[i]
		if conn.Messenger == nil {
			continue
		}
		var shipment *models.Shipment
		if conn.Messenger.CurrentShipmentID != nil {
			shipment = shipments[*conn.Messenger.CurrentShipmentID]
		}
		characters = append(characters, s.character(userID, conn, shipment))
	}
	return characters, nil
}

func (s *MessengerViewService) character(userID uint, conn *models.Connection, shipment *models.Shipment) Character {
	m := conn.Messenger
	partner := conn.Partner(userID)

	c := Character{
		ID:            m.ID,
		ConnectionID:  conn.ID,
		Name:          m.Name,
		Skin:          s.catalog.GetOrDefault(m.SkinID),
		Status:        m.Status,
		DisplayStatus: DisplayStatus(m.Status),
		CanSend:       m.CanSend(userID),
		IsHolder:      m.HeldBy(userID),
		Revealed:      revealedTo(conn, m, userID),
		Partner: Partner{
			ID:          partner.ID,
			Name:        partner.DisplayName(),
			Coordinates: coordinatesOf(partner.Latitude, partner.Longitude),
		},
		FormulaVersion: geo.FormulaVersion,
	}

	if shipment != nil {
		c.ShipmentData = shipmentData(shipment)
	}

	switch m.Status {
	case models.MessengerStatusInTransit, models.MessengerStatusReturning:
		// position is interpolated along ShipmentData's route
	case models.MessengerStatusWaiting:
		if shipment != nil {
			c.Coordinates = coordinatesOf(shipment.DestinationLat, shipment.DestinationLng)
		}
		if c.Coordinates == nil {
			c.Coordinates = holderCoordinates(conn, m)
		}
	default:
		c.Coordinates = holderCoordinates(conn, m)
	}
	return c
}

func revealedTo(conn *models.Connection, m *models.Messenger, userID uint) bool {
	if conn.InitiatorID == userID {
		return m.RevealedToInitiator
	}
	return m.RevealedToRecipient
}

func holderCoordinates(conn *models.Connection, m *models.Messenger) *Coordinates {
	if m.CurrentHolderID == nil {
		return nil
	}
	switch *m.CurrentHolderID {
	case conn.InitiatorID:
		return coordinatesOf(conn.Initiator.Latitude, conn.Initiator.Longitude)
	case conn.RecipientID:
		return coordinatesOf(conn.Recipient.Latitude, conn.Recipient.Longitude)
	}
	return nil
}

func shipmentData(sh *models.Shipment) *ShipmentData {
	d := &ShipmentData{
		ShipmentID:   sh.ID,
		Status:       sh.Status,
		SenderID:     sh.SenderID,
		RecipientID:  sh.RecipientID,
		DispatchedAt: sh.DispatchedAt,
		RecalledAt:   sh.RecalledAt,
		DistanceInKm: sh.DistanceInKm,
		Origin:       coordinatesOf(sh.OriginLat, sh.OriginLng),
		Destination:  coordinatesOf(sh.DestinationLat, sh.DestinationLng),
		TravelTimeMs: geo.TravelTime(sh.DistanceInKm).Milliseconds(),
	}
	if sh.DispatchedAt != nil {
		arrival := geo.ArrivalTime(*sh.DispatchedAt, sh.DistanceInKm)
		d.ArrivalAt = &arrival
		if sh.RecalledAt != nil {
			returnMs := geo.ReturnTime(*sh.DispatchedAt, *sh.RecalledAt, geo.TravelTime(sh.DistanceInKm)).Milliseconds()
			home := geo.ReturnArrivalTime(*sh.DispatchedAt, *sh.RecalledAt, sh.DistanceInKm)
			d.ReturnTimeMs = &returnMs
			d.ReturnAt = &home
		}
	}
	return d
}

// TrackMessenger syncs, then computes where the messenger is right now.
func (s *MessengerViewService) TrackMessenger(ctx context.Context, userID, messengerID uint) (*Tracking, error) {
	span, ctx := observability.NewSpan(ctx, "view.track_messenger", attribute.Int64("messenger.id", int64(messengerID)))
	defer span.End()

	conn, err := s.authorizeMessenger(ctx, userID, messengerID)
	if err != nil {
		return nil, err
	}

	s.syncQuietly(ctx, userID)

	// re-read after the sweep
	conn, err = s.store.Connections().GetByID(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	m := conn.Messenger

	var shipment *models.Shipment
	if m.CurrentShipmentID != nil {
		shipment, err = s.store.Shipments().GetByID(ctx, *m.CurrentShipmentID)
		if err != nil && !models.HasCode(err, models.CodeNotFound) {
			return nil, err
		}
	}

	return track(s.now(), conn, m, shipment), nil
}

func track(now time.Time, conn *models.Connection, m *models.Messenger, shipment *models.Shipment) *Tracking {
	t := &Tracking{
		MessengerID:   m.ID,
		Status:        m.Status,
		DisplayStatus: DisplayStatus(m.Status),
		At:            now,
	}
	if shipment != nil {
		t.ShipmentData = shipmentData(shipment)
	}

	inFlight := shipment != nil && shipment.DispatchedAt != nil
	switch {
	case m.Status == models.MessengerStatusInTransit && inFlight:
		travel := geo.TravelTime(shipment.DistanceInKm)
		t.Progress = geo.OutboundProgress(now, *shipment.DispatchedAt, travel)
		remaining := geo.RemainingOutbound(now, *shipment.DispatchedAt, shipment.DistanceInKm)
		t.RemainingMs = remaining.Milliseconds()
		t.ETA = geo.FormatETA(remaining)
		t.Position = outboundPosition(t.ShipmentData, t.Progress)

	case m.Status == models.MessengerStatusReturning && inFlight && shipment.RecalledAt != nil:
		travel := geo.TravelTime(shipment.DistanceInKm)
		t.Progress = geo.ReturnProgress(now, *shipment.DispatchedAt, *shipment.RecalledAt, travel)
		remaining := geo.RemainingReturn(now, *shipment.DispatchedAt, *shipment.RecalledAt, shipment.DistanceInKm)
		t.RemainingMs = remaining.Milliseconds()
		t.ETA = geo.FormatETA(remaining)
		turnaround := geo.OutboundProgress(*shipment.RecalledAt, *shipment.DispatchedAt, travel)
		t.Position = returnPosition(t.ShipmentData, turnaround, t.Progress)

	case m.Status == models.MessengerStatusWaiting:
		t.Progress = 100
		if shipment != nil {
			t.Position = coordinatesOf(shipment.DestinationLat, shipment.DestinationLng)
		}
		if t.Position == nil {
			t.Position = holderCoordinates(conn, m)
		}

	default:
		t.Position = holderCoordinates(conn, m)
	}
	return t
}

func outboundPosition(d *ShipmentData, progress float64) *Coordinates {
	if d.Origin == nil || d.Destination == nil {
		return nil
	}
	path := geo.GreatCirclePath(*d.Origin.point(), *d.Destination.point(), geo.DefaultPathSamples)
	p := geo.PositionAlongPath(path, progress)
	return &Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// returnPosition flies from the recall point back to the origin.
func returnPosition(d *ShipmentData, turnaroundProgress, progress float64) *Coordinates {
	turnaround := outboundPosition(d, turnaroundProgress)
	if turnaround == nil {
		return nil
	}
	path := geo.GreatCirclePath(*turnaround.point(), *d.Origin.point(), geo.DefaultPathSamples)
	p := geo.PositionAlongPath(path, progress)
	return &Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// authorizeMessenger loads the messenger's connection and checks userID is a party.
func (s *MessengerViewService) authorizeMessenger(ctx context.Context, userID, messengerID uint) (*models.Connection, error) {
	m, err := s.store.Messengers().GetByID(ctx, messengerID)
	if err != nil {
		return nil, err
	}
	conn, err := s.store.Connections().GetByID(ctx, m.ConnectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Involves(userID) {
		return nil, models.NewUnauthorizedError("you are not part of this connection")
	}
	return conn, nil
}

// ShipmentHistory lists a messenger's trips, newest first.
func (s *MessengerViewService) ShipmentHistory(ctx context.Context, userID, messengerID uint, limit, offset int) ([]models.Shipment, error) {
	if _, err := s.authorizeMessenger(ctx, userID, messengerID); err != nil {
		return nil, err
	}
	return s.store.Shipments().ListByMessenger(ctx, messengerID, limit, offset)
}

// GetShipment returns a shipment with its items to either party.
func (s *MessengerViewService) GetShipment(ctx context.Context, userID, shipmentID uint) (*models.Shipment, error) {
	shipment, err := s.store.Shipments().GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if !shipment.IsParty(userID) {
		return nil, models.NewUnauthorizedError("you are not part of this shipment")
	}
	return shipment, nil
}

// MarkRevealed records that userID has seen the messenger's introduction.
func (s *MessengerViewService) MarkRevealed(ctx context.Context, userID, messengerID uint) error {
	conn, err := s.authorizeMessenger(ctx, userID, messengerID)
	if err != nil {
		return err
	}
	if err := s.store.Messengers().SetRevealed(ctx, messengerID, conn.InitiatorID == userID); err != nil {
		return err
	}
	cache.InvalidateCharacters(ctx, userID)
	return nil
}
