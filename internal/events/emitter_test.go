package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movemobility/dispatch/pkg/eventbus"
	"github.com/movemobility/dispatch/pkg/models"
	"github.com/movemobility/dispatch/pkg/websocket"
)

type fakeBus struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeBus) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeBus) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

type fakeHub struct {
	mu       sync.Mutex
	messages map[string][]*websocket.Message
}

func newFakeHub() *fakeHub {
	return &fakeHub{messages: make(map[string][]*websocket.Message)}
}

func (f *fakeHub) SendToUser(userID string, msg *websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[userID] = append(f.messages[userID], msg)
}

func (f *fakeHub) messagesFor(userID string) []*websocket.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*websocket.Message(nil), f.messages[userID]...)
}

type fakePush struct {
	mu    sync.Mutex
	sends []uuid.UUID
	err   error
}

func (f *fakePush) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, userID)
	return f.err
}

func (f *fakePush) sentTo() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.sends...)
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:            uuid.New(),
		RiderID:       uuid.New(),
		Status:        models.BookingStatusSearchingDriver,
		PickupAddress: "12 Main St",
		Fare:          15,
	}
}

func TestEmitter_OfferExtendedReachesAllSinks(t *testing.T) {
	bus := &fakeBus{}
	hub := newFakeHub()
	push := &fakePush{}
	e := NewEmitter(bus, hub, push)

	booking := testBooking()
	offer := &models.RideOffer{
		ID:        uuid.New(),
		BookingID: booking.ID,
		DriverID:  uuid.New(),
		ExpiresAt: time.Now().Add(20 * time.Second),
	}

	e.OfferExtended(booking, offer)
	e.Close()

	assert.Equal(t, []string{eventbus.SubjectOfferExtended}, bus.published())

	msgs := hub.messagesFor(offer.DriverID.String())
	require.Len(t, msgs, 1)
	assert.Equal(t, websocket.TypeOfferExtended, msgs[0].Type)
	assert.Equal(t, booking.ID.String(), msgs[0].BookingID)

	assert.Equal(t, []uuid.UUID{offer.DriverID}, push.sentTo())
}

func TestEmitter_RideCancelledFansOut(t *testing.T) {
	bus := &fakeBus{}
	hub := newFakeHub()
	push := &fakePush{}
	e := NewEmitter(bus, hub, push)

	booking := testBooking()
	assigned := uuid.New()
	offered := []uuid.UUID{uuid.New(), uuid.New()}

	e.RideCancelled(booking, &assigned, offered)
	e.Close()

	assert.Equal(t, []string{eventbus.SubjectBookingCancelled}, bus.published())
	assert.Equal(t, []uuid.UUID{assigned}, push.sentTo())
	for _, driverID := range offered {
		msgs := hub.messagesFor(driverID.String())
		require.Len(t, msgs, 1)
		assert.Equal(t, websocket.TypeOfferExpired, msgs[0].Type)
	}
}

func TestEmitter_NilSinksAreSkipped(t *testing.T) {
	e := NewEmitter(nil, nil, nil)

	booking := testBooking()
	e.BookingRequested(booking)
	e.NoDriverFound(booking, 10)
	e.Close()
}

func TestEmitter_PushFailureDoesNotStopOthers(t *testing.T) {
	bus := &fakeBus{}
	hub := newFakeHub()
	push := &fakePush{err: errors.New("fcm down")}
	e := NewEmitter(bus, hub, push)

	booking := testBooking()
	e.NoDriverFound(booking, 3)
	e.Close()

	assert.Equal(t, []string{eventbus.SubjectBookingNoDriver}, bus.published())
	assert.NotEmpty(t, hub.messagesFor(booking.RiderID.String()))
}

func TestEmitter_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	block := make(chan struct{})
	slowHub := &blockingHub{release: block}
	e := newEmitter(nil, slowHub, nil, 1)

	booking := testBooking()

	// First event occupies the drain goroutine, second fills the queue,
	// the rest must be dropped without blocking this test goroutine.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			e.BookingProgress(booking)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter blocked on a full queue")
	}

	close(block)
	e.Close()
}

type blockingHub struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingHub) SendToUser(userID string, msg *websocket.Message) {
	b.once.Do(func() { <-b.release })
}

func TestResilientSink_OpensAfterConsecutiveFailures(t *testing.T) {
	failing := &fakePush{err: errors.New("always fails")}
	sink := NewResilientSink(failing)

	userID := uuid.New()
	for i := 0; i < 6; i++ {
		_ = sink.Send(context.Background(), userID, "t", "b", nil)
	}

	before := len(failing.sentTo())
	_ = sink.Send(context.Background(), userID, "t", "b", nil)
	after := len(failing.sentTo())

	// Breaker is open: the inner sink is no longer called.
	assert.Equal(t, before, after)
}
