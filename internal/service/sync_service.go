package service

import (
	"context"
	"log/slog"

	"courier/internal/geo"
	"courier/internal/middleware"
	"courier/internal/observability"
	"courier/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// SyncResult lists the shipments a sweep advanced.
type SyncResult struct {
	ShipmentIDs []uint `json:"shipment_ids"`
}

// SyncService advances time-triggered transitions lazily, on read. There is
// no scheduler: arrivals and completed returns are applied the next time one
// of the parties looks at their messengers.
type SyncService struct {
	store   repository.Store
	transit *TransitService
}

// NewSyncService returns a new SyncService.
func NewSyncService(store repository.Store, transit *TransitService) *SyncService {
	return &SyncService{store: store, transit: transit}
}

// SyncInTransit arrives every IN_TRANSIT shipment involving userID whose
// arrival time has passed. Shipments with no recorded distance use the
// default distance, matching the projection.
func (s *SyncService) SyncInTransit(ctx context.Context, userID uint) (SyncResult, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "sync.in_transit", attribute.Int64("user.id", int64(userID)))
	defer span.End()
	observability.SyncSweepsTotal.WithLabelValues("in_transit").Inc()

	shipments, err := s.store.Shipments().ListInTransitForUser(ctx, userID)
	if err != nil {
		span.SetError(err)
		return SyncResult{}, err
	}

	now := s.transit.Now()
	result := SyncResult{ShipmentIDs: []uint{}}
	for _, shipment := range shipments {
		if shipment.DispatchedAt == nil {
			continue
		}
		if now.Before(geo.ArrivalTime(*shipment.DispatchedAt, shipment.DistanceInKm)) {
			continue
		}

		res, err := s.transit.arrive(ctx, shipment.ID, TriggerSync)
		if err != nil {
			// retried on the next read
			observability.SyncFailuresTotal.WithLabelValues("in_transit").Inc()
			middleware.Logger.WarnContext(ctx, "sync arrive failed",
				slog.Uint64("shipment_id", uint64(shipment.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !res.AlreadyArrived {
			result.ShipmentIDs = append(result.ShipmentIDs, shipment.ID)
		}
	}

	observability.SyncAdvancedTotal.WithLabelValues("in_transit").Add(float64(len(result.ShipmentIDs)))
	span.AddAttributes(attribute.Int("sync.advanced", len(result.ShipmentIDs)))
	return result, nil
}

// SyncReturning completes every return leg flown by userID's messengers
// whose return time has passed.
func (s *SyncService) SyncReturning(ctx context.Context, userID uint) (SyncResult, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "sync.returning", attribute.Int64("user.id", int64(userID)))
	defer span.End()
	observability.SyncSweepsTotal.WithLabelValues("returning").Inc()

	shipments, err := s.store.Shipments().ListReturningForSender(ctx, userID)
	if err != nil {
		span.SetError(err)
		return SyncResult{}, err
	}

	now := s.transit.Now()
	result := SyncResult{ShipmentIDs: []uint{}}
	for _, shipment := range shipments {
		if shipment.DispatchedAt == nil || shipment.RecalledAt == nil {
			continue
		}
		if now.Before(geo.ReturnArrivalTime(*shipment.DispatchedAt, *shipment.RecalledAt, shipment.DistanceInKm)) {
			continue
		}

		res, err := s.transit.completeReturn(ctx, shipment.SenderID, shipment.ID, TriggerSync)
		if err != nil {
			observability.SyncFailuresTotal.WithLabelValues("returning").Inc()
			middleware.Logger.WarnContext(ctx, "sync complete-return failed",
				slog.Uint64("shipment_id", uint64(shipment.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !res.AlreadyCompleted {
			result.ShipmentIDs = append(result.ShipmentIDs, shipment.ID)
		}
	}

	observability.SyncAdvancedTotal.WithLabelValues("returning").Add(float64(len(result.ShipmentIDs)))
	span.AddAttributes(attribute.Int("sync.advanced", len(result.ShipmentIDs)))
	return result, nil
}

// SyncAll runs both sweeps. A failing sweep does not stop the other; the
// first error is returned alongside whatever was advanced.
func (s *SyncService) SyncAll(ctx context.Context, userID uint) (arrived, completed SyncResult, err error) {
	arrived, err = s.SyncInTransit(ctx, userID)
	completed, returnErr := s.SyncReturning(ctx, userID)
	if err == nil {
		err = returnErr
	}
	if arrived.ShipmentIDs == nil {
		arrived.ShipmentIDs = []uint{}
	}
	if completed.ShipmentIDs == nil {
		completed.ShipmentIDs = []uint{}
	}
	return arrived, completed, err
}
