package service

import (
	"context"
	"log/slog"
	"strings"

	"courier/internal/cache"
	"courier/internal/middleware"
	"courier/internal/models"
	"courier/internal/repository"
	"courier/internal/skins"
	"courier/internal/validation"
)

// DefaultMessengerName is the name a new messenger starts with.
const DefaultMessengerName = "Messenger"

// ConnectionService runs the connection request workflow. Accepting a
// request creates the pair's messenger.
type ConnectionService struct {
	store    repository.Store
	pickSkin func() string
}

// NewConnectionService returns a new ConnectionService drawing skins from catalog.
func NewConnectionService(store repository.Store, catalog *skins.Catalog) *ConnectionService {
	return &ConnectionService{store: store, pickSkin: catalog.RandomID}
}

// WithSkinPicker replaces the random skin choice.
func (s *ConnectionService) WithSkinPicker(pick func() string) *ConnectionService {
	s.pickSkin = pick
	return s
}

// RequestConnection sends a PENDING request from callerID to the user with recipientEmail.
func (s *ConnectionService) RequestConnection(ctx context.Context, callerID uint, recipientEmail string) (*models.Connection, error) {
	recipientEmail = strings.TrimSpace(recipientEmail)
	if err := validation.ValidateEmail(recipientEmail); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	recipient, err := s.store.Users().GetByEmail(ctx, recipientEmail)
	if err != nil {
		return nil, err
	}
	if recipient.ID == callerID {
		return nil, models.NewValidationError("You cannot send a friend request to yourself")
	}

	var conn *models.Connection
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.Connections().GetBetweenUsers(ctx, callerID, recipient.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			switch {
			case existing.Status == models.ConnectionStatusAccepted:
				return models.NewInvalidStateError("You are already connected with this user")
			case existing.InitiatorID == callerID:
				return models.NewInvalidStateError("You already sent a friend request to this user")
			default:
				return models.NewInvalidStateError("This user already sent you a friend request")
			}
		}

		conn = &models.Connection{
			InitiatorID: callerID,
			RecipientID: recipient.ID,
			Status:      models.ConnectionStatusPending,
		}
		return tx.Connections().Create(ctx, conn)
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "connection requested",
		slog.Uint64("connection_id", uint64(conn.ID)),
		slog.Uint64("recipient_id", uint64(recipient.ID)),
	)
	return conn, nil
}

// ListRequests returns the PENDING requests addressed to userID.
func (s *ConnectionService) ListRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.store.Connections().ListPendingForRecipient(ctx, userID)
}

// Accept accepts a request addressed to callerID and creates the messenger,
// which starts out with the accepting user.
func (s *ConnectionService) Accept(ctx context.Context, callerID, connectionID uint) (*models.Connection, error) {
	var conn *models.Connection
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		conn, err = s.pending(ctx, tx, connectionID)
		if err != nil {
			return err
		}
		if conn.RecipientID != callerID {
			return models.NewUnauthorizedError("You cannot accept this friend request")
		}

		ok, err := tx.Connections().Accept(ctx, conn.ID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidStateError("This friend request has already been processed")
		}

		holder := callerID
		messenger := &models.Messenger{
			ConnectionID:    conn.ID,
			Name:            DefaultMessengerName,
			SkinID:          s.pickSkin(),
			Status:          models.MessengerStatusAvailable,
			CurrentHolderID: &holder,
		}
		if err := tx.Messengers().Create(ctx, messenger); err != nil {
			return err
		}

		conn.Status = models.ConnectionStatusAccepted
		conn.Messenger = messenger
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateCharacters(ctx, conn.InitiatorID, conn.RecipientID)
	middleware.Logger.InfoContext(ctx, "connection accepted",
		slog.Uint64("connection_id", uint64(conn.ID)),
		slog.Uint64("messenger_id", uint64(conn.Messenger.ID)),
		slog.String("skin_id", conn.Messenger.SkinID),
	)
	return conn, nil
}

// Decline deletes a request addressed to callerID.
func (s *ConnectionService) Decline(ctx context.Context, callerID, connectionID uint) error {
	return s.deletePending(ctx, connectionID, func(conn *models.Connection) error {
		if conn.RecipientID != callerID {
			return models.NewUnauthorizedError("You cannot decline this friend request")
		}
		return nil
	})
}

// Cancel withdraws a request callerID sent.
func (s *ConnectionService) Cancel(ctx context.Context, callerID, connectionID uint) error {
	return s.deletePending(ctx, connectionID, func(conn *models.Connection) error {
		if conn.InitiatorID != callerID {
			return models.NewUnauthorizedError("You cannot cancel this friend request")
		}
		return nil
	})
}

func (s *ConnectionService) deletePending(ctx context.Context, connectionID uint, authorize func(*models.Connection) error) error {
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		conn, err := s.pending(ctx, tx, connectionID)
		if err != nil {
			return err
		}
		if err := authorize(conn); err != nil {
			return err
		}
		ok, err := tx.Connections().DeletePending(ctx, conn.ID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidStateError("This friend request has already been processed")
		}
		return nil
	})
}

func (s *ConnectionService) pending(ctx context.Context, tx repository.Store, connectionID uint) (*models.Connection, error) {
	conn, err := tx.Connections().GetByID(ctx, connectionID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewNotFoundError("Friend request", connectionID)
		}
		return nil, err
	}
	if conn.Status != models.ConnectionStatusPending {
		return nil, models.NewInvalidStateError("This friend request has already been processed")
	}
	return conn, nil
}
