package events

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/models"
)

func TestBusDeliversStatusChanges(t *testing.T) {
	bus := NewBus(NewLogrusAdapter(logrus.New()), nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	seat := "S-001"
	app := &models.Application{ID: 7, UserID: 3, RouteID: 2, Status: models.StatusAllocated, SeatNumber: &seat}
	require.NoError(t, bus.PublishStatusChanged(ctx, NewPassStatusChanged(app)))

	select {
	case evt := <-ch:
		assert.Equal(t, uint(7), evt.ApplicationID)
		assert.Equal(t, uint(3), evt.UserID)
		assert.Equal(t, models.StatusAllocated, evt.Status)
		require.NotNil(t, evt.SeatNumber)
		assert.Equal(t, "S-001", *evt.SeatNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("status event not delivered")
	}
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(NewLogrusAdapter(logrus.New()), nil)
	defer bus.Close()

	app := &models.Application{ID: 1, Status: models.StatusPaid}
	assert.NoError(t, bus.PublishStatusChanged(context.Background(), NewPassStatusChanged(app)))
}
