package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"courier/internal/cache"
	"courier/internal/geo"
	"courier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayStatus(t *testing.T) {
	tests := map[models.MessengerStatus]string{
		models.MessengerStatusAvailable: DisplayReady,
		models.MessengerStatusLoading:   DisplayReady,
		models.MessengerStatusInTransit: DisplayEnRoute,
		models.MessengerStatusWaiting:   DisplayWaiting,
		models.MessengerStatusReturning: DisplayReturning,
	}
	for status, want := range tests {
		assert.Equal(t, want, DisplayStatus(status), status)
	}
}

func TestListMessengersForUser_Available(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bobView, err := e.view.ListMessengersForUser(ctx, e.bob.ID)
	require.NoError(t, err)
	require.Len(t, bobView, 1)

	c := bobView[0]
	assert.Equal(t, e.messenger.ID, c.ID)
	assert.Equal(t, e.conn.ID, c.ConnectionID)
	assert.Equal(t, "mochi", c.Skin.ID)
	assert.Equal(t, DisplayReady, c.DisplayStatus)
	assert.True(t, c.CanSend)
	assert.True(t, c.IsHolder)
	assert.False(t, c.Revealed)
	assert.Equal(t, e.alice.ID, c.Partner.ID)
	assert.Equal(t, "Alice", c.Partner.Name)
	require.NotNil(t, c.Coordinates)
	assert.InDelta(t, 48.8566, c.Coordinates.Lat, 1e-9)
	assert.Nil(t, c.ShipmentData)
	assert.Equal(t, geo.FormulaVersion, c.FormulaVersion)

	aliceView, err := e.view.ListMessengersForUser(ctx, e.alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceView, 1)
	assert.False(t, aliceView[0].CanSend)
	assert.False(t, aliceView[0].IsHolder)
	assert.Equal(t, e.bob.ID, aliceView[0].Partner.ID)
}

func TestListMessengersForUser_SyncsBeforeProjecting(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	shipment := e.dispatchFromBob(t)
	travel := geo.TravelTime(shipment.DistanceInKm)

	view, err := e.view.ListMessengersForUser(ctx, e.alice.ID)
	require.NoError(t, err)
	require.Len(t, view, 1)
	c := view[0]
	assert.Equal(t, models.MessengerStatusInTransit, c.Status)
	assert.Equal(t, DisplayEnRoute, c.DisplayStatus)
	assert.Nil(t, c.Coordinates)
	require.NotNil(t, c.ShipmentData)
	assert.Equal(t, shipment.ID, c.ShipmentData.ShipmentID)
	assert.Equal(t, travel.Milliseconds(), c.ShipmentData.TravelTimeMs)
	require.NotNil(t, c.ShipmentData.ArrivalAt)
	assert.WithinDuration(t, epoch.Add(travel), *c.ShipmentData.ArrivalAt, time.Millisecond)
	assert.Nil(t, c.ShipmentData.ReturnAt)

	e.clock.Advance(travel)
	view, err = e.view.ListMessengersForUser(ctx, e.alice.ID)
	require.NoError(t, err)
	c = view[0]
	assert.Equal(t, models.MessengerStatusWaiting, c.Status)
	assert.True(t, c.CanSend)
	assert.True(t, c.IsHolder)
	require.NotNil(t, c.Coordinates)
	assert.InDelta(t, 51.5074, c.Coordinates.Lat, 1e-9)
	require.NotNil(t, c.ShipmentData)
	assert.Equal(t, models.ShipmentStatusArrived, c.ShipmentData.Status)
}

func TestListMessengersForUser_CachesUntilTransition(t *testing.T) {
	e := newEnv(t)
	mr := withRedis(t)
	ctx := context.Background()
	key := cache.CharactersKey(e.bob.ID)

	first, err := e.view.ListMessengersForUser(ctx, e.bob.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	var cached []Character
	raw, err := mr.Get(key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, first[0].ID, cached[0].ID)

	// a renamed messenger is not visible while the projection is cached
	require.NoError(t, e.db.Model(&models.Messenger{}).Where("id = ?", e.messenger.ID).Update("name", "Pip").Error)
	second, err := e.view.ListMessengersForUser(ctx, e.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Messenger", second[0].Name)

	e.dispatchFromBob(t)
	assert.False(t, mr.Exists(key))

	third, err := e.view.ListMessengersForUser(ctx, e.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pip", third[0].Name)
	assert.Equal(t, models.MessengerStatusInTransit, third[0].Status)
}

func TestListMessengersForUser_SkipsPending(t *testing.T) {
	e := newEnv(t)
	carol := models.User{Email: "carol@courier.test"}
	require.NoError(t, e.db.Create(&carol).Error)
	pending := models.Connection{InitiatorID: carol.ID, RecipientID: e.bob.ID, Status: models.ConnectionStatusPending}
	require.NoError(t, e.db.Omit("Initiator", "Recipient", "Messenger").Create(&pending).Error)

	view, err := e.view.ListMessengersForUser(context.Background(), e.bob.ID)
	require.NoError(t, err)
	assert.Len(t, view, 1)

	view, err = e.view.ListMessengersForUser(context.Background(), carol.ID)
	require.NoError(t, err)
	assert.Empty(t, view)
}

func TestTrackMessenger_Outbound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	shipment := e.dispatchFromBob(t)
	travel := geo.TravelTime(shipment.DistanceInKm)

	var last float64
	for _, step := range []time.Duration{0, travel / 4, travel / 2, travel - time.Second} {
		e.clock.Set(epoch.Add(step))
		tr, err := e.view.TrackMessenger(ctx, e.alice.ID, e.messenger.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessengerStatusInTransit, tr.Status)
		assert.GreaterOrEqual(t, tr.Progress, last)
		last = tr.Progress
		require.NotNil(t, tr.Position)
		assert.Equal(t, (travel - step).Milliseconds(), tr.RemainingMs)
	}

	e.clock.Set(epoch.Add(travel / 2))
	tr, err := e.view.TrackMessenger(ctx, e.bob.ID, e.messenger.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, tr.Progress, 0.01)
	assert.Greater(t, tr.Position.Lat, 48.8566)
	assert.Less(t, tr.Position.Lat, 51.5074)
	assert.NotEmpty(t, tr.ETA)

	e.clock.Set(epoch.Add(travel))
	tr, err = e.view.TrackMessenger(ctx, e.bob.ID, e.messenger.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessengerStatusWaiting, tr.Status)
	assert.Equal(t, float64(100), tr.Progress)
	assert.InDelta(t, 51.5074, tr.Position.Lat, 1e-9)
	assert.Zero(t, tr.RemainingMs)
}

func TestTrackMessenger_Returning(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	shipment := e.dispatchFromBob(t)
	e.setDistance(t, shipment.ID, 1000.0/3)

	e.clock.Advance(20 * time.Minute)
	_, err := e.transit.Recall(ctx, e.bob.ID, shipment.ID)
	require.NoError(t, err)

	tr, err := e.view.TrackMessenger(ctx, e.bob.ID, e.messenger.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessengerStatusReturning, tr.Status)
	assert.Zero(t, tr.Progress)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), tr.RemainingMs)
	require.NotNil(t, tr.ShipmentData.ReturnTimeMs)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), *tr.ShipmentData.ReturnTimeMs)

	// turnaround is halfway along the route
	require.NotNil(t, tr.Position)
	assert.Greater(t, tr.Position.Lat, 48.8566)

	e.clock.Advance(5 * time.Minute)
	tr, err = e.view.TrackMessenger(ctx, e.bob.ID, e.messenger.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessengerStatusAvailable, tr.Status)
	require.NotNil(t, tr.Position)
	assert.InDelta(t, 48.8566, tr.Position.Lat, 1e-9)
}

func TestTrackMessenger_NotAParty(t *testing.T) {
	e := newEnv(t)
	carol := models.User{Email: "carol@courier.test"}
	require.NoError(t, e.db.Create(&carol).Error)

	_, err := e.view.TrackMessenger(context.Background(), carol.ID, e.messenger.ID)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	_, err = e.view.TrackMessenger(context.Background(), e.bob.ID, 4040)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestShipmentHistoryAndGetShipment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	carol := models.User{Email: "carol@courier.test"}
	require.NoError(t, e.db.Create(&carol).Error)

	first := e.dispatchFromBob(t)
	_, err := e.transit.Arrive(ctx, first.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	second, err := e.transit.Dispatch(ctx, e.alice.ID, e.bob.ID, textItems("one", "two"))
	require.NoError(t, err)

	history, err := e.view.ShipmentHistory(ctx, e.bob.ID, e.messenger.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Len(t, history[0].Items, 2)

	page, err := e.view.ShipmentHistory(ctx, e.bob.ID, e.messenger.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	_, err = e.view.ShipmentHistory(ctx, carol.ID, e.messenger.ID, 10, 0)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	got, err := e.view.GetShipment(ctx, e.alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Items[0].Content)

	_, err = e.view.GetShipment(ctx, carol.ID, first.ID)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
}

func TestMarkRevealed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.view.MarkRevealed(ctx, e.bob.ID, e.messenger.ID))
	m := e.reloadMessenger(t)
	assert.True(t, m.RevealedToRecipient)
	assert.False(t, m.RevealedToInitiator)

	view, err := e.view.ListMessengersForUser(ctx, e.bob.ID)
	require.NoError(t, err)
	assert.True(t, view[0].Revealed)
	view, err = e.view.ListMessengersForUser(ctx, e.alice.ID)
	require.NoError(t, err)
	assert.False(t, view[0].Revealed)

	require.NoError(t, e.view.MarkRevealed(ctx, e.alice.ID, e.messenger.ID))
	assert.True(t, e.reloadMessenger(t).RevealedToInitiator)
}
