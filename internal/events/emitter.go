package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/eventbus"
	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/models"
	"github.com/movemobility/dispatch/pkg/websocket"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 10 * time.Second
)

// PushSink delivers a push notification to all of a user's devices.
type PushSink interface {
	Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
}

// BusPublisher publishes events to the message bus.
type BusPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// SocketHub pushes messages to connected WebSocket clients.
type SocketHub interface {
	SendToUser(userID string, msg *websocket.Message)
}

// Emitter fans dispatch state transitions out to the bus, the WebSocket hub
// and the push sink. Emission never blocks the caller: deliveries are queued
// and a full queue discards the new item with a warning. Dispatch correctness
// never depends on a delivery.
type Emitter struct {
	bus  BusPublisher
	hub  SocketHub
	push PushSink

	queue chan func(ctx context.Context)
	wg    sync.WaitGroup
	once  sync.Once
}

// NewEmitter creates an emitter and starts its delivery goroutine. Any sink
// may be nil; deliveries to nil sinks are skipped.
func NewEmitter(bus BusPublisher, hub SocketHub, push PushSink) *Emitter {
	return newEmitter(bus, hub, push, defaultQueueSize)
}

func newEmitter(bus BusPublisher, hub SocketHub, push PushSink, queueSize int) *Emitter {
	e := &Emitter{
		bus:   bus,
		hub:   hub,
		push:  push,
		queue: make(chan func(ctx context.Context), queueSize),
	}
	e.wg.Add(1)
	go e.drain()
	return e
}

func (e *Emitter) drain() {
	defer e.wg.Done()
	for deliver := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		deliver(ctx)
		cancel()
	}
}

// Close stops accepting events and waits for queued deliveries to finish.
func (e *Emitter) Close() {
	e.once.Do(func() {
		close(e.queue)
	})
	e.wg.Wait()
}

func (e *Emitter) enqueue(name string, deliver func(ctx context.Context)) {
	select {
	case e.queue <- deliver:
	default:
		logger.Warn("event queue full, dropping event", zap.String("event", name))
	}
}

func (e *Emitter) publish(ctx context.Context, subject string, payload interface{}) {
	if e.bus == nil {
		return
	}
	event, err := eventbus.NewEvent(subject, "dispatch", payload)
	if err != nil {
		logger.Error("failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, subject, event); err != nil {
		logger.Warn("failed to publish event",
			zap.String("subject", subject), zap.Error(err))
	}
}

func (e *Emitter) sendSocket(userID uuid.UUID, msg *websocket.Message) {
	if e.hub == nil {
		return
	}
	msg.Timestamp = time.Now()
	e.hub.SendToUser(userID.String(), msg)
}

func (e *Emitter) sendPush(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) {
	if e.push == nil {
		return
	}
	if err := e.push.Send(ctx, userID, title, body, data); err != nil {
		logger.Warn("push delivery failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// BookingRequested fires when a booking enters dispatch.
func (e *Emitter) BookingRequested(b *models.Booking) {
	e.enqueue("booking.requested", func(ctx context.Context) {
		e.publish(ctx, eventbus.SubjectBookingRequested, eventbus.BookingRequestedEvent{
			BookingID:       b.ID,
			RiderID:         b.RiderID,
			PickupLatitude:  b.PickupLatitude,
			PickupLongitude: b.PickupLongitude,
			RequestedAt:     b.CreatedAt,
		})
	})
}

// OfferExtended fires when the dispatcher creates a pending offer. The
// offered driver gets a push and a socket message with the decision deadline.
func (e *Emitter) OfferExtended(b *models.Booking, offer *models.RideOffer) {
	e.enqueue("offer.extended", func(ctx context.Context) {
		e.publish(ctx, eventbus.SubjectOfferExtended, eventbus.OfferExtendedEvent{
			OfferID:    offer.ID,
			BookingID:  offer.BookingID,
			DriverID:   offer.DriverID,
			OfferOrder: offer.OfferOrder,
			ExpiresAt:  offer.ExpiresAt,
		})
		e.sendSocket(offer.DriverID, &websocket.Message{
			Type:      websocket.TypeOfferExtended,
			BookingID: offer.BookingID.String(),
			Data: map[string]interface{}{
				"offer_id":       offer.ID.String(),
				"pickup_address": b.PickupAddress,
				"distance_km":    offer.DistanceKm,
				"fare":           b.Fare,
				"expires_at":     offer.ExpiresAt,
			},
		})
		e.sendPush(ctx, offer.DriverID, "New ride offer",
			"Pickup at "+b.PickupAddress, map[string]string{
				"type":       "offer_extended",
				"offer_id":   offer.ID.String(),
				"booking_id": offer.BookingID.String(),
			})
	})
}

// DriverAssigned fires when a driver accepts an offer. The rider learns
// about the assignment, the driver gets a ride confirmation.
func (e *Emitter) DriverAssigned(b *models.Booking, offer *models.RideOffer) {
	e.enqueue("driver.assigned", func(ctx context.Context) {
		e.publish(ctx, eventbus.SubjectBookingAssigned, eventbus.BookingAssignedEvent{
			BookingID:  b.ID,
			RiderID:    b.RiderID,
			DriverID:   offer.DriverID,
			AcceptedAt: time.Now().UTC(),
		})
		e.sendSocket(b.RiderID, &websocket.Message{
			Type:      websocket.TypeDriverAssign,
			BookingID: b.ID.String(),
			Data: map[string]interface{}{
				"driver_id": offer.DriverID.String(),
			},
		})
		e.sendPush(ctx, b.RiderID, "Driver assigned",
			"A driver accepted your ride.", map[string]string{
				"type":       "driver_assigned",
				"booking_id": b.ID.String(),
			})
		e.sendSocket(offer.DriverID, &websocket.Message{
			Type:      websocket.TypeBookingStatus,
			BookingID: b.ID.String(),
			Data: map[string]interface{}{
				"status":         string(models.BookingStatusDriverAssigned),
				"pickup_address": b.PickupAddress,
			},
		})
	})
}

// BookingProgress fires on driver_arrived and in_progress transitions.
func (e *Emitter) BookingProgress(b *models.Booking) {
	status := string(b.Status)
	e.enqueue("booking.progress", func(ctx context.Context) {
		e.sendSocket(b.RiderID, &websocket.Message{
			Type:      websocket.TypeBookingStatus,
			BookingID: b.ID.String(),
			Data:      map[string]interface{}{"status": status},
		})
	})
}

// RideCompleted fires when a ride finishes.
func (e *Emitter) RideCompleted(b *models.Booking) {
	e.enqueue("ride.completed", func(ctx context.Context) {
		driverID := uuid.Nil
		if b.DriverID != nil {
			driverID = *b.DriverID
		}
		completedAt := time.Now().UTC()
		if b.CompletedAt != nil {
			completedAt = *b.CompletedAt
		}
		e.publish(ctx, eventbus.SubjectBookingCompleted, eventbus.BookingCompletedEvent{
			BookingID:   b.ID,
			RiderID:     b.RiderID,
			DriverID:    driverID,
			CompletedAt: completedAt,
		})
		e.sendSocket(b.RiderID, &websocket.Message{
			Type:      websocket.TypeBookingStatus,
			BookingID: b.ID.String(),
			Data:      map[string]interface{}{"status": string(models.BookingStatusCompleted)},
		})
	})
}

// RideCancelled fires on rider cancellation. The assigned driver, if any,
// gets a push; drivers with cancelled pending offers get a socket message.
func (e *Emitter) RideCancelled(b *models.Booking, assignedDriver *uuid.UUID, offeredDrivers []uuid.UUID) {
	e.enqueue("ride.cancelled", func(ctx context.Context) {
		e.publish(ctx, eventbus.SubjectBookingCancelled, eventbus.BookingCancelledEvent{
			BookingID:   b.ID,
			RiderID:     b.RiderID,
			DriverID:    assignedDriver,
			CancelledAt: time.Now().UTC(),
		})

		if assignedDriver != nil {
			e.sendPush(ctx, *assignedDriver, "Ride cancelled",
				"The rider cancelled the ride.", map[string]string{
					"type":       "ride_cancelled",
					"booking_id": b.ID.String(),
				})
			e.sendSocket(*assignedDriver, &websocket.Message{
				Type:      websocket.TypeBookingStatus,
				BookingID: b.ID.String(),
				Data:      map[string]interface{}{"status": string(models.BookingStatusCancelled)},
			})
		}

		for _, driverID := range offeredDrivers {
			e.sendSocket(driverID, &websocket.Message{
				Type:      websocket.TypeOfferExpired,
				BookingID: b.ID.String(),
				Data:      map[string]interface{}{"reason": "booking_cancelled"},
			})
		}
	})
}

// NoDriverFound fires when dispatch exhausts its candidates.
func (e *Emitter) NoDriverFound(b *models.Booking, offersMade int) {
	e.enqueue("booking.no_driver_found", func(ctx context.Context) {
		e.publish(ctx, eventbus.SubjectBookingNoDriver, eventbus.BookingNoDriverEvent{
			BookingID:    b.ID,
			RiderID:      b.RiderID,
			OffersMade:   offersMade,
			TerminatedAt: time.Now().UTC(),
		})
		e.sendSocket(b.RiderID, &websocket.Message{
			Type:      websocket.TypeBookingStatus,
			BookingID: b.ID.String(),
			Data: map[string]interface{}{
				"status":      string(models.BookingStatusNoDriverFound),
				"offers_made": strconv.Itoa(offersMade),
			},
		})
		e.sendPush(ctx, b.RiderID, "No drivers available",
			"We could not find a driver for your ride. Please try again.", map[string]string{
				"type":       "no_driver_found",
				"booking_id": b.ID.String(),
			})
	})
}
