package service

// EventType defines the type of event
type EventType string

const (
	EventLayerPrepared      EventType = "layer_prepared"
	EventLayerValidated     EventType = "layer_validated"
	EventNodeDeployStarted  EventType = "node_deploy_started"
	EventNodeDeployFinished EventType = "node_deploy_finished"
	EventNodeDeployFailed   EventType = "node_deploy_failed"
	EventNodeRemoved        EventType = "node_removed"
	EventVerifyStarted      EventType = "verify_started"
	EventCheckResult        EventType = "check_result"
	EventVerifyComplete     EventType = "verify_complete"
)

// Event represents an event that occurred in the application layer
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
