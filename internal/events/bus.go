package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTokenDiscovered  EventType = "TOKEN_DISCOVERED"
	EventTokenScreened    EventType = "TOKEN_SCREENED"
	EventTrendSignal      EventType = "TREND_SIGNAL"
	EventTokenWatchlisted EventType = "TOKEN_WATCHLISTED"
	EventWatchlistRemoved EventType = "WATCHLIST_REMOVED"
	EventPositionOpened   EventType = "POSITION_OPENED"
	EventPositionClosed   EventType = "POSITION_CLOSED"
	EventPositionUpdate   EventType = "POSITION_UPDATE"
	EventTradeExecuted    EventType = "TRADE_EXECUTED"
	EventBalanceUpdate    EventType = "BALANCE_UPDATE"
	EventCycleComplete    EventType = "CYCLE_COMPLETE"
	EventBotStarted       EventType = "BOT_STARTED"
	EventBotStopped       EventType = "BOT_STOPPED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeExecuted publishes a trade executed event
func (eb *EventBus) PublishTradeExecuted(tokenAddress, poolAddress, side, inputAmount, outputAmount string) {
	eb.Publish(Event{
		Type: EventTradeExecuted,
		Data: map[string]interface{}{
			"token_address": tokenAddress,
			"pool_address":  poolAddress,
			"side":          side,
			"input_amount":  inputAmount,
			"output_amount": outputAmount,
		},
	})
}

// PublishPositionOpened publishes a position opened event
func (eb *EventBus) PublishPositionOpened(tokenAddress, poolAddress, inputAmount string) {
	eb.Publish(Event{
		Type: EventPositionOpened,
		Data: map[string]interface{}{
			"token_address": tokenAddress,
			"pool_address":  poolAddress,
			"input_amount":  inputAmount,
		},
	})
}

// PublishPositionClosed publishes a position closed event
func (eb *EventBus) PublishPositionClosed(tokenAddress, poolAddress, reason string, currentROI, expectedROI float64) {
	eb.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"token_address": tokenAddress,
			"pool_address":  poolAddress,
			"reason":        reason,
			"current_roi":   currentROI,
			"expected_roi":  expectedROI,
		},
	})
}

// PublishWatchlisted publishes a token watchlisted event
func (eb *EventBus) PublishWatchlisted(tokenAddress, poolAddress, baseValue string) {
	eb.Publish(Event{
		Type: EventTokenWatchlisted,
		Data: map[string]interface{}{
			"token_address": tokenAddress,
			"pool_address":  poolAddress,
			"base_value":    baseValue,
		},
	})
}

// PublishWatchlistRemoved publishes a watchlist removal event
func (eb *EventBus) PublishWatchlistRemoved(tokenAddress, poolAddress, reason string) {
	eb.Publish(Event{
		Type: EventWatchlistRemoved,
		Data: map[string]interface{}{
			"token_address": tokenAddress,
			"pool_address":  poolAddress,
			"reason":        reason,
		},
	})
}

// PublishCycleComplete publishes a trading cycle summary event
func (eb *EventBus) PublishCycleComplete(cycle int, discovered, tasks, watchlistLen, positions int, took time.Duration) {
	eb.Publish(Event{
		Type: EventCycleComplete,
		Data: map[string]interface{}{
			"cycle":      cycle,
			"discovered": discovered,
			"tasks":      tasks,
			"watchlist":  watchlistLen,
			"positions":  positions,
			"took_ms":    took.Milliseconds(),
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
