// Package service holds the courier business logic: the transit state
// machine, lazy reconciliation and the per-user messenger projection.
package service

import (
	"context"
	"fmt"
	"time"

	"courier/internal/cache"
	"courier/internal/geo"
	"courier/internal/middleware"
	"courier/internal/models"
	"courier/internal/observability"
	"courier/internal/repository"
	"courier/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Transition triggers recorded in the audit log.
const (
	TriggerManual = "manual"
	TriggerSync   = "sync"
)

// GiftItemInput is one item of a dispatch request, already uploaded if it is a file.
type GiftItemInput struct {
	Type    models.GiftItemType `json:"type"`
	Content string              `json:"content"`
}

// ArriveResult reports an arrive call. AlreadyArrived is set when the
// shipment had reached ARRIVED or OPENED before this call.
type ArriveResult struct {
	Shipment       *models.Shipment `json:"shipment"`
	AlreadyArrived bool             `json:"already_arrived"`
}

// CompleteReturnResult reports a completeReturn call. AlreadyCompleted is
// set when the messenger was already home.
type CompleteReturnResult struct {
	Shipment         *models.Shipment `json:"shipment"`
	AlreadyCompleted bool             `json:"already_completed"`
}

// TransitService applies the shipment/messenger transitions. Every method
// runs in one store transaction and writes through compare-and-set updates,
// so concurrent callers cannot double-apply a transition.
type TransitService struct {
	store repository.Store
	now   func() time.Time
	audit *observability.TransitionLogger
}

// NewTransitService returns a new TransitService.
func NewTransitService(store repository.Store) *TransitService {
	return &TransitService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		audit: observability.NewTransitionLogger(middleware.Logger),
	}
}

// WithClock replaces the wall clock, for tests and the CLI.
func (s *TransitService) WithClock(now func() time.Time) *TransitService {
	s.now = now
	return s
}

// Now is the service's current time.
func (s *TransitService) Now() time.Time {
	return s.now()
}

// Dispatch sends the messenger shared by caller and recipient carrying items.
func (s *TransitService) Dispatch(ctx context.Context, callerID, recipientID uint, items []GiftItemInput) (*models.Shipment, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "transit.dispatch",
		attribute.Int64("caller.id", int64(callerID)),
		attribute.Int64("recipient.id", int64(recipientID)),
	)
	defer span.End()

	if err := validateDispatch(callerID, recipientID, items); err != nil {
		observability.RecordTransition("dispatch", "rejected")
		return nil, err
	}

	now := s.now()
	var shipment *models.Shipment
	var fromStatus models.MessengerStatus

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		conn, err := tx.Connections().GetBetweenUsers(ctx, callerID, recipientID)
		if err != nil {
			return err
		}
		if conn == nil || conn.Status != models.ConnectionStatusAccepted {
			return models.NewNotFoundError("Connection with user", recipientID)
		}
		if conn.Messenger == nil {
			return models.NewNotFoundError("Messenger for connection", conn.ID)
		}

		messenger := conn.Messenger
		fromStatus = messenger.Status
		if messenger.Status != models.MessengerStatusAvailable && messenger.Status != models.MessengerStatusWaiting {
			return models.NewInvalidStateError("messenger is currently %s", messenger.Status)
		}
		if !messenger.CanSend(callerID) {
			return models.NewUnauthorizedError("messenger is currently with the other user")
		}

		sender, err := tx.Users().GetByID(ctx, callerID)
		if err != nil {
			return err
		}
		recipient, err := tx.Users().GetByID(ctx, recipientID)
		if err != nil {
			return err
		}

		shipment = &models.Shipment{
			MessengerID:    messenger.ID,
			SenderID:       callerID,
			RecipientID:    recipientID,
			Status:         models.ShipmentStatusInTransit,
			DispatchedAt:   &now,
			OriginLat:      sender.Latitude,
			OriginLng:      sender.Longitude,
			DestinationLat: recipient.Latitude,
			DestinationLng: recipient.Longitude,
			DistanceInKm: geo.DistanceKm(
				geo.NewPoint(sender.Latitude, sender.Longitude),
				geo.NewPoint(recipient.Latitude, recipient.Longitude),
			),
			Items: make([]models.GiftItem, 0, len(items)),
		}
		for _, item := range items {
			shipment.Items = append(shipment.Items, models.GiftItem{Type: item.Type, Content: item.Content})
		}
		if err := tx.Shipments().Create(ctx, shipment); err != nil {
			return err
		}

		ok, err := tx.Messengers().MarkDispatched(ctx, messenger.ID, callerID, shipment.ID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidStateError("messenger is no longer available")
		}
		return nil
	})

	t := observability.Transition{
		Operation:     "dispatch",
		MessengerFrom: string(fromStatus),
		MessengerTo:   string(models.MessengerStatusInTransit),
		ShipmentTo:    string(models.ShipmentStatusInTransit),
		Trigger:       TriggerManual,
	}
	if err != nil {
		s.fail(ctx, span, t, err)
		return nil, err
	}

	t.ShipmentID, t.MessengerID = shipment.ID, shipment.MessengerID
	s.applied(ctx, t, callerID, recipientID)
	return shipment, nil
}

func validateDispatch(callerID, recipientID uint, items []GiftItemInput) error {
	if callerID == recipientID {
		return models.NewValidationError("cannot send a messenger to yourself")
	}
	if len(items) == 0 {
		return models.NewValidationError("a shipment needs at least one gift item")
	}
	if len(items) > validation.MaxGiftItems {
		return models.NewValidationError(fmt.Sprintf("a shipment can carry at most %d gift items", validation.MaxGiftItems))
	}
	for _, item := range items {
		if !item.Type.Valid() {
			return models.NewValidationError("unknown gift item type " + string(item.Type))
		}
		if err := validation.ValidateGiftContent(string(item.Type), item.Content); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

// Arrive moves an IN_TRANSIT shipment to ARRIVED and hands the messenger to
// the recipient. It does not check the clock; see ArriveAsParty.
func (s *TransitService) Arrive(ctx context.Context, shipmentID uint) (ArriveResult, error) {
	return s.arrive(ctx, shipmentID, TriggerManual)
}

// ArriveAsParty is Arrive for a user request: the caller must be a party
// and the computed arrival time must have passed.
func (s *TransitService) ArriveAsParty(ctx context.Context, callerID, shipmentID uint) (ArriveResult, error) {
	shipment, err := s.store.Shipments().GetByID(ctx, shipmentID)
	if err != nil {
		return ArriveResult{}, err
	}
	if !shipment.IsParty(callerID) {
		return ArriveResult{}, models.NewUnauthorizedError("you are not part of this shipment")
	}
	if shipment.Status == models.ShipmentStatusInTransit && shipment.DispatchedAt != nil {
		arrival := geo.ArrivalTime(*shipment.DispatchedAt, shipment.DistanceInKm)
		if s.now().Before(arrival) {
			return ArriveResult{}, models.NewInvalidStateError("shipment is still in transit until %s", arrival.Format(time.RFC3339))
		}
	}
	return s.arrive(ctx, shipmentID, TriggerManual)
}

func (s *TransitService) arrive(ctx context.Context, shipmentID uint, trigger string) (ArriveResult, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "transit.arrive",
		attribute.Int64("shipment.id", int64(shipmentID)),
		attribute.String("trigger", trigger),
	)
	defer span.End()

	now := s.now()
	var result ArriveResult

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		shipment, err := tx.Shipments().GetByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		result.Shipment = shipment

		switch shipment.Status {
		case models.ShipmentStatusArrived, models.ShipmentStatusOpened:
			result.AlreadyArrived = true
			return nil
		case models.ShipmentStatusInTransit:
		default:
			return models.NewInvalidStateError("cannot arrive a shipment that is %s", shipment.Status)
		}

		ok, err := tx.Shipments().MarkArrived(ctx, shipment.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			// another caller won; report its outcome
			current, err := tx.Shipments().GetByID(ctx, shipment.ID)
			if err != nil {
				return err
			}
			result.Shipment = current
			if current.Status == models.ShipmentStatusArrived || current.Status == models.ShipmentStatusOpened {
				result.AlreadyArrived = true
				return nil
			}
			return models.NewInvalidStateError("cannot arrive a shipment that is %s", current.Status)
		}

		ok, err = tx.Messengers().MarkArrived(ctx, shipment.MessengerID, shipment.ID, shipment.RecipientID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidStateError("messenger %d is not in transit with shipment %d", shipment.MessengerID, shipment.ID)
		}

		shipment.Status = models.ShipmentStatusArrived
		shipment.ArrivedAt = &now
		return nil
	})

	t := observability.Transition{
		Operation:     "arrive",
		ShipmentID:    shipmentID,
		ShipmentFrom:  string(models.ShipmentStatusInTransit),
		ShipmentTo:    string(models.ShipmentStatusArrived),
		MessengerFrom: string(models.MessengerStatusInTransit),
		MessengerTo:   string(models.MessengerStatusWaiting),
		Trigger:       trigger,
	}
	if err != nil {
		s.fail(ctx, span, t, err)
		return ArriveResult{}, err
	}

	t.MessengerID = result.Shipment.MessengerID
	if result.AlreadyArrived {
		s.noop(ctx, t, "already arrived")
		return result, nil
	}
	s.applied(ctx, t, result.Shipment.SenderID, result.Shipment.RecipientID)
	return result, nil
}

// Open lets the recipient open an ARRIVED shipment. The messenger stays
// WAITING with the recipient but no longer points at the shipment.
func (s *TransitService) Open(ctx context.Context, callerID, shipmentID uint) (*models.Shipment, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "transit.open", attribute.Int64("shipment.id", int64(shipmentID)))
	defer span.End()

	now := s.now()
	var shipment *models.Shipment

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		shipment, err = tx.Shipments().GetByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.RecipientID != callerID {
			return models.NewUnauthorizedError("only the recipient can open this shipment")
		}
		if shipment.Status != models.ShipmentStatusArrived {
			return models.NewInvalidStateError("cannot open a shipment that is %s", shipment.Status)
		}

		ok, err := tx.Shipments().MarkOpened(ctx, shipment.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidStateError("shipment was opened concurrently")
		}

		// false when the recipient already replied with this messenger
		if _, err := tx.Messengers().ReleaseShipment(ctx, shipment.MessengerID, shipment.ID); err != nil {
			return err
		}

		shipment.Status = models.ShipmentStatusOpened
		shipment.OpenedAt = &now
		return nil
	})

	t := observability.Transition{
		Operation:    "open",
		ShipmentID:   shipmentID,
		ShipmentFrom: string(models.ShipmentStatusArrived),
		ShipmentTo:   string(models.ShipmentStatusOpened),
		Trigger:      TriggerManual,
	}
	if err != nil {
		s.fail(ctx, span, t, err)
		return nil, err
	}

	t.MessengerID = shipment.MessengerID
	s.applied(ctx, t, shipment.SenderID, shipment.RecipientID)
	return shipment, nil
}

// Recall turns an IN_TRANSIT messenger around. Only the sender may recall.
// A shipment whose arrival time has passed is arrived first, like any other
// read would, so the recall then sees ARRIVED and is refused.
func (s *TransitService) Recall(ctx context.Context, callerID, shipmentID uint) (*models.Shipment, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "transit.recall", attribute.Int64("shipment.id", int64(shipmentID)))
	defer span.End()

	now := s.now()
	var shipment *models.Shipment

	err := s.arriveIfDue(ctx, callerID, shipmentID, now)
	if err == nil {
		err = s.store.Transaction(ctx, func(tx repository.Store) error {
			var err error
			shipment, err = tx.Shipments().GetByID(ctx, shipmentID)
			if err != nil {
				return err
			}
			if shipment.SenderID != callerID {
				return models.NewUnauthorizedError("only the sender can recall this shipment")
			}
			if shipment.Status != models.ShipmentStatusInTransit {
				return models.NewInvalidStateError("cannot recall a shipment that is %s", shipment.Status)
			}

			ok, err := tx.Shipments().MarkRecalled(ctx, shipment.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				return models.NewInvalidStateError("shipment is no longer in transit")
			}

			ok, err = tx.Messengers().MarkReturning(ctx, shipment.MessengerID, shipment.ID)
			if err != nil {
				return err
			}
			if !ok {
				return models.NewInvalidStateError("messenger %d is not in transit with shipment %d", shipment.MessengerID, shipment.ID)
			}

			shipment.Status = models.ShipmentStatusRecalled
			shipment.RecalledAt = &now
			return nil
		})
	}

	t := observability.Transition{
		Operation:     "recall",
		ShipmentID:    shipmentID,
		ShipmentFrom:  string(models.ShipmentStatusInTransit),
		ShipmentTo:    string(models.ShipmentStatusRecalled),
		MessengerFrom: string(models.MessengerStatusInTransit),
		MessengerTo:   string(models.MessengerStatusReturning),
		Trigger:       TriggerManual,
	}
	if err != nil {
		s.fail(ctx, span, t, err)
		return nil, err
	}

	t.MessengerID = shipment.MessengerID
	s.applied(ctx, t, shipment.SenderID, shipment.RecipientID)
	return shipment, nil
}

// arriveIfDue applies a due arrival on behalf of the sender before a recall.
func (s *TransitService) arriveIfDue(ctx context.Context, callerID, shipmentID uint, now time.Time) error {
	shipment, err := s.store.Shipments().GetByID(ctx, shipmentID)
	if err != nil {
		return err
	}
	if shipment.SenderID != callerID || shipment.Status != models.ShipmentStatusInTransit || shipment.DispatchedAt == nil {
		return nil
	}
	if now.Before(geo.ArrivalTime(*shipment.DispatchedAt, shipment.DistanceInKm)) {
		return nil
	}
	_, err = s.arrive(ctx, shipmentID, TriggerSync)
	return err
}

// CompleteReturn brings a RETURNING messenger home to the sender. It does
// not check the clock; see CompleteReturnAsSender.
func (s *TransitService) CompleteReturn(ctx context.Context, callerID, shipmentID uint) (CompleteReturnResult, error) {
	return s.completeReturn(ctx, callerID, shipmentID, TriggerManual)
}

// CompleteReturnAsSender is CompleteReturn for a user request: the return
// leg must have elapsed.
func (s *TransitService) CompleteReturnAsSender(ctx context.Context, callerID, shipmentID uint) (CompleteReturnResult, error) {
	shipment, err := s.store.Shipments().GetByID(ctx, shipmentID)
	if err != nil {
		return CompleteReturnResult{}, err
	}
	if shipment.SenderID != callerID {
		return CompleteReturnResult{}, models.NewUnauthorizedError("only the sender can complete this return")
	}
	if shipment.Status == models.ShipmentStatusRecalled && shipment.DispatchedAt != nil && shipment.RecalledAt != nil {
		home := geo.ReturnArrivalTime(*shipment.DispatchedAt, *shipment.RecalledAt, shipment.DistanceInKm)
		if s.now().Before(home) {
			return CompleteReturnResult{}, models.NewInvalidStateError("messenger is still returning until %s", home.Format(time.RFC3339))
		}
	}
	return s.completeReturn(ctx, callerID, shipmentID, TriggerManual)
}

func (s *TransitService) completeReturn(ctx context.Context, callerID, shipmentID uint, trigger string) (CompleteReturnResult, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "transit.complete_return",
		attribute.Int64("shipment.id", int64(shipmentID)),
		attribute.String("trigger", trigger),
	)
	defer span.End()

	var result CompleteReturnResult

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		shipment, err := tx.Shipments().GetByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		result.Shipment = shipment

		if shipment.SenderID != callerID {
			return models.NewUnauthorizedError("only the sender can complete this return")
		}
		if shipment.Status != models.ShipmentStatusRecalled {
			return models.NewInvalidStateError("cannot complete the return of a shipment that is %s", shipment.Status)
		}

		messenger, err := tx.Messengers().GetByID(ctx, shipment.MessengerID)
		if err != nil {
			return err
		}
		if messenger.Status != models.MessengerStatusReturning ||
			messenger.CurrentShipmentID == nil || *messenger.CurrentShipmentID != shipment.ID {
			// home already, possibly out again on a later trip
			result.AlreadyCompleted = true
			return nil
		}

		ok, err := tx.Messengers().MarkReturned(ctx, messenger.ID, shipment.ID, shipment.SenderID)
		if err != nil {
			return err
		}
		if !ok {
			result.AlreadyCompleted = true
		}
		return nil
	})

	t := observability.Transition{
		Operation:     "complete_return",
		ShipmentID:    shipmentID,
		MessengerFrom: string(models.MessengerStatusReturning),
		MessengerTo:   string(models.MessengerStatusAvailable),
		Trigger:       trigger,
	}
	if err != nil {
		s.fail(ctx, span, t, err)
		return CompleteReturnResult{}, err
	}

	t.MessengerID = result.Shipment.MessengerID
	if result.AlreadyCompleted {
		s.noop(ctx, t, "already completed")
		return result, nil
	}
	s.applied(ctx, t, result.Shipment.SenderID, result.Shipment.RecipientID)
	return result, nil
}

func (s *TransitService) applied(ctx context.Context, t observability.Transition, parties ...uint) {
	observability.RecordTransition(t.Operation, "applied")
	s.audit.Applied(ctx, t)
	cache.InvalidateCharacters(ctx, parties...)
}

func (s *TransitService) noop(ctx context.Context, t observability.Transition, reason string) {
	observability.RecordTransition(t.Operation, "noop")
	s.audit.Noop(ctx, t, reason)
}

func (s *TransitService) fail(ctx context.Context, span *observability.Span, t observability.Transition, err error) {
	outcome := "rejected"
	if !models.HasCode(err, models.CodeInvalidState) &&
		!models.HasCode(err, models.CodeUnauthorized) &&
		!models.HasCode(err, models.CodeNotFound) &&
		!models.HasCode(err, models.CodeValidation) {
		outcome = "failed"
		span.SetError(err)
	}
	observability.RecordTransition(t.Operation, outcome)
	s.audit.Failed(ctx, t, err)
}
