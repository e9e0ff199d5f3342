package models

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func uintPtr(v uint) *uint { return &v }

func TestMessenger_CanSend(t *testing.T) {
	tests := []struct {
		name     string
		status   MessengerStatus
		holder   *uint
		caller   uint
		expected bool
	}{
		{"available unheld", MessengerStatusAvailable, nil, 1, true},
		{"available held by caller", MessengerStatusAvailable, uintPtr(1), 1, true},
		{"available held by partner", MessengerStatusAvailable, uintPtr(2), 1, false},
		{"waiting held by caller (reply)", MessengerStatusWaiting, uintPtr(1), 1, true},
		{"waiting held by partner", MessengerStatusWaiting, uintPtr(2), 1, false},
		{"loading", MessengerStatusLoading, uintPtr(1), 1, false},
		{"in transit", MessengerStatusInTransit, uintPtr(1), 1, false},
		{"returning", MessengerStatusReturning, nil, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Messenger{Status: tt.status, CurrentHolderID: tt.holder}
			assert.Equal(t, tt.expected, m.CanSend(tt.caller))
		})
	}
}

func TestConnection_Partner(t *testing.T) {
	c := &Connection{
		InitiatorID: 1,
		RecipientID: 2,
		Initiator:   User{ID: 1, FirstName: "Ada"},
		Recipient:   User{ID: 2, Email: "bob@example.com"},
	}

	assert.True(t, c.Involves(1))
	assert.False(t, c.Involves(3))
	assert.Equal(t, uint(2), c.PartnerID(1))
	assert.Equal(t, uint(1), c.PartnerID(2))
	p1, p2 := c.Partner(1), c.Partner(2)
	assert.Equal(t, "bob@example.com", p1.DisplayName())
	assert.Equal(t, "Ada", p2.DisplayName())
}

func TestGiftItemType(t *testing.T) {
	assert.True(t, GiftItemTypeDrawing.Valid())
	assert.False(t, GiftItemType("VIDEO").Valid())
	assert.False(t, GiftItemTypeText.IsURL())
	assert.True(t, GiftItemTypeLink.IsURL())
}

func TestNewStoreError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, CodeTransient},
		{"deadlock", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), CodeTransient},
		{"connection failure", &pgconn.PgError{Code: "08006"}, CodeTransient},
		{"unique violation", &pgconn.PgError{Code: "23505"}, CodeInternal},
		{"bad conn", driver.ErrBadConn, CodeTransient},
		{"deadline", context.DeadlineExceeded, CodeTransient},
		{"sqlite busy", errors.New("database is locked"), CodeTransient},
		{"plain", errors.New("boom"), CodeInternal},
		{"app error passes through", NewInvalidStateError("nope"), CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := NewStoreError(tt.err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantCode == CodeTransient, appErr.Retryable)
		})
	}

	assert.Nil(t, NewStoreError(nil))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(NewNotFoundError("Shipment", 1)))
	assert.Equal(t, http.StatusForbidden, StatusFor(NewUnauthorizedError("no")))
	assert.Equal(t, http.StatusConflict, StatusFor(NewInvalidStateError("messenger is not sendable: currently %s", MessengerStatusReturning)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(NewValidationError("bad")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(NewTransientError(errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("x")))
	assert.Equal(t, http.StatusConflict, StatusFor(fmt.Errorf("wrapped: %w", NewInvalidStateError("x"))))

	assert.True(t, HasCode(fmt.Errorf("wrapped: %w", NewNotFoundError("Messenger", 3)), CodeNotFound))
	assert.False(t, HasCode(errors.New("x"), CodeNotFound))
}
