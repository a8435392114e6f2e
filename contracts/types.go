package contracts

import (
	"time"
)

// Validation bounds for product fields. These are input constraints only;
// records are stored as variable-length JSON.
const (
	MaxSerialNumberLen = 50
	MaxDescriptionLen  = 200
	MaxStageNameLen    = 50
	MaxStages          = 10
)

// Product is the lifecycle record of one tracked item. It is keyed by the
// creating organization plus a caller-chosen serial number, so two
// organizations may reuse the same serial without colliding.
type Product struct {
	ID                string        `json:"id"`
	Owner             string        `json:"owner"` // MSP ID authorized to act next
	SerialNumber      string        `json:"serialNumber"`
	Description       string        `json:"description"`
	Status            ProductStatus `json:"status"`
	CreatedAt         time.Time     `json:"createdAt"`
	EventsCounter     uint64        `json:"eventsCounter"`
	Stages            []Stage       `json:"stages"`
	CurrentStageIndex int           `json:"currentStageIndex"`
}

// Stage is one ordered custody segment of a product's journey. A stage with
// an Owner is restricted to that organization; an open stage accepts events
// from anyone. Completed is set once and never reset.
type Stage struct {
	Name      string `json:"name"`
	Owner     string `json:"owner,omitempty"`
	Completed bool   `json:"completed"`
}

// StageInput is the caller-facing shape accepted by InitializeProduct.
type StageInput struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

// ProductEvent is an immutable audit-log entry. Exactly one is written per
// committed LogEvent or CompleteStage call, keyed by (product, index) where
// index is the product's events counter at creation time.
type ProductEvent struct {
	ProductID   string    `json:"productId"`
	EventType   EventType `json:"eventType"`
	Description string    `json:"description"`
	StageName   string    `json:"stageName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	EventIndex  uint64    `json:"eventIndex"`
}

type ProductStatus string

const (
	ProductStatusCreated     ProductStatus = "CREATED"
	ProductStatusInTransit   ProductStatus = "IN_TRANSIT"
	ProductStatusReceived    ProductStatus = "RECEIVED"
	ProductStatusDelivered   ProductStatus = "DELIVERED"
	ProductStatusTransferred ProductStatus = "TRANSFERRED"
)

type EventType string

const (
	EventTypeCreated   EventType = "CREATED"
	EventTypeShipped   EventType = "SHIPPED"
	EventTypeReceived  EventType = "RECEIVED"
	EventTypeDelivered EventType = "DELIVERED"
	EventTypeOngoing   EventType = "ONGOING"
	EventTypeComplete  EventType = "COMPLETE"
)

// StatusPolicy selects how LogEvent maps event types onto product status.
// A deployment picks exactly one; the two policies are never mixed.
type StatusPolicy string

const (
	// StatusPolicyTyped drives status from the event type: SHIPPED moves the
	// product to IN_TRANSIT, RECEIVED to RECEIVED, DELIVERED to DELIVERED,
	// and every other event type leaves the status unchanged.
	StatusPolicyTyped StatusPolicy = "typed"

	// StatusPolicyStaged drives status from stage progression: any
	// non-terminal event marks the product IN_TRANSIT, a stage handoff marks
	// it TRANSFERRED, and completing the final stage marks it DELIVERED.
	StatusPolicyStaged StatusPolicy = "staged"
)
