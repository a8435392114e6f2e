package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// ProvenanceContract tracks physical items through a multi-party custody
// chain. Every mutation is authorized against the caller's MSP ID, appends
// one immutable audit event, and commits atomically with the product update
// through the transaction's write set.
//
// StatusPolicy and LazyStages are deployment configuration, set once at
// chaincode start; see main.go.
type ProvenanceContract struct {
	contractapi.Contract
	StatusPolicy StatusPolicy
	LazyStages   bool
}

// World-state keys are composite so caller-chosen segments (MSP IDs, serial
// numbers) cannot run into each other or into a neighboring product's event
// namespace. The event index attribute is zero-padded so a partial-key scan
// over a product's events returns them in audit order.
const (
	productKeyType = "product"
	eventKeyType   = "event"
)

// productAttributes recovers the (creator, serial number) attributes from a
// product ID so event keys can be scoped to the same pair.
func productAttributes(ctx contractapi.TransactionContextInterface,
	productID string) ([]string, error) {

	objectType, attributes, err := ctx.GetStub().SplitCompositeKey(productID)
	if err != nil {
		return nil, fmt.Errorf("invalid product ID: %v", err)
	}
	if objectType != productKeyType || len(attributes) != 2 {
		return nil, fmt.Errorf("invalid product ID %q", productID)
	}
	return attributes, nil
}

func eventKey(ctx contractapi.TransactionContextInterface,
	productID string, index uint64) (string, error) {

	attributes, err := productAttributes(ctx, productID)
	if err != nil {
		return "", err
	}
	return ctx.GetStub().CreateCompositeKey(eventKeyType,
		append(attributes, fmt.Sprintf("%020d", index)))
}

// InitializeProduct registers a new product owned by the calling
// organization and returns its ID. The product is keyed by (caller, serial
// number), so a serial number can be registered once per organization.
// stagesJSON optionally declares the custody stages up front as a JSON
// array of {"name": ..., "owner": ...}; an empty string selects the
// non-staged flow. Initialization emits no audit event.
func (c *ProvenanceContract) InitializeProduct(ctx contractapi.TransactionContextInterface,
	serialNumber string, description string, stagesJSON string) (string, error) {

	if err := validateSerialNumber(serialNumber); err != nil {
		return "", err
	}
	if err := validateDescription(description); err != nil {
		return "", err
	}

	var stageInputs []StageInput
	if stagesJSON != "" {
		if err := json.Unmarshal([]byte(stagesJSON), &stageInputs); err != nil {
			return "", fmt.Errorf("invalid stages: %v", err)
		}
	}
	if err := validateStages(stageInputs); err != nil {
		return "", err
	}

	creator, err := callerID(ctx)
	if err != nil {
		return "", err
	}

	id, err := ctx.GetStub().CreateCompositeKey(productKeyType, []string{creator, serialNumber})
	if err != nil {
		return "", fmt.Errorf("failed to build product key: %v", err)
	}
	existing, err := ctx.GetStub().GetState(id)
	if err != nil {
		return "", fmt.Errorf("failed to read product: %v", err)
	}
	if existing != nil {
		return "", fmt.Errorf("product %s: %w", id, ErrProductAlreadyExists)
	}

	createdAt, err := txTimestamp(ctx)
	if err != nil {
		return "", err
	}

	stages := make([]Stage, 0, len(stageInputs))
	for _, input := range stageInputs {
		stages = append(stages, Stage{Name: input.Name, Owner: input.Owner})
	}

	product := Product{
		ID:                id,
		Owner:             creator,
		SerialNumber:      serialNumber,
		Description:       description,
		Status:            ProductStatusCreated,
		CreatedAt:         createdAt,
		EventsCounter:     0,
		Stages:            stages,
		CurrentStageIndex: 0,
	}

	productJSON, err := json.Marshal(product)
	if err != nil {
		return "", err
	}
	if err := ctx.GetStub().PutState(id, productJSON); err != nil {
		return "", err
	}
	if err := ctx.GetStub().SetEvent("ProductInitialized", productJSON); err != nil {
		return "", err
	}

	return id, nil
}

// LogEvent appends an audit event to a product and advances its lifecycle,
// returning the event's index. For staged products the caller must own the
// current stage (open stages accept anyone); a COMPLETE event finishes the
// stage and hands custody to the next stage's owner when one is declared.
// For non-staged products only the product owner may log. stageName is only
// consulted in lazy-stage deployments, where it names a stage to append.
func (c *ProvenanceContract) LogEvent(ctx contractapi.TransactionContextInterface,
	productID string, eventType string, description string, stageName string) (uint64, error) {

	et, err := parseEventType(eventType)
	if err != nil {
		return 0, err
	}

	caller, err := callerID(ctx)
	if err != nil {
		return 0, err
	}

	product, err := c.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	recordedStage, err := product.applyLogEvent(caller, et, description, stageName,
		c.statusPolicy(), c.LazyStages)
	if err != nil {
		return 0, err
	}

	index, err := product.nextEventIndex()
	if err != nil {
		return 0, err
	}

	timestamp, err := txTimestamp(ctx)
	if err != nil {
		return 0, err
	}

	event := ProductEvent{
		ProductID:   productID,
		EventType:   et,
		Description: description,
		StageName:   recordedStage,
		Timestamp:   timestamp,
		EventIndex:  index,
	}

	eventJSON, err := c.commitProductAndEvent(ctx, product, &event)
	if err != nil {
		return 0, err
	}
	if err := ctx.GetStub().SetEvent("EventLogged", eventJSON); err != nil {
		return 0, err
	}

	return index, nil
}

// CompleteStage is the owner-only shortcut for finishing the current stage
// without logging a domain event body. It records a COMPLETE audit event so
// the trail stays gap-free across both progression paths. Completing the
// final stage delivers the product.
func (c *ProvenanceContract) CompleteStage(ctx contractapi.TransactionContextInterface,
	productID string) error {

	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	product, err := c.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	stageName, err := product.applyCompleteStage(caller)
	if err != nil {
		return err
	}

	index, err := product.nextEventIndex()
	if err != nil {
		return err
	}

	timestamp, err := txTimestamp(ctx)
	if err != nil {
		return err
	}

	event := ProductEvent{
		ProductID:   productID,
		EventType:   EventTypeComplete,
		Description: fmt.Sprintf("stage %q completed", stageName),
		StageName:   stageName,
		Timestamp:   timestamp,
		EventIndex:  index,
	}

	eventJSON, err := c.commitProductAndEvent(ctx, product, &event)
	if err != nil {
		return err
	}
	return ctx.GetStub().SetEvent("StageCompleted", eventJSON)
}

// TransferOwnership hands custody of a product to another organization,
// independent of the stage mechanism. The transfer is permanent: the caller
// keeps no authorization over the product afterwards.
func (c *ProvenanceContract) TransferOwnership(ctx contractapi.TransactionContextInterface,
	productID string, newOwner string) error {

	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	product, err := c.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	if err := product.applyTransferOwnership(caller, newOwner); err != nil {
		return err
	}

	productJSON, err := json.Marshal(product)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(product.ID, productJSON); err != nil {
		return err
	}
	return ctx.GetStub().SetEvent("OwnershipTransferred", productJSON)
}

// GetProduct retrieves a product by ID.
func (c *ProvenanceContract) GetProduct(ctx contractapi.TransactionContextInterface,
	productID string) (*Product, error) {

	productJSON, err := ctx.GetStub().GetState(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %v", err)
	}
	if productJSON == nil {
		return nil, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}

	var product Product
	if err := json.Unmarshal(productJSON, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductExists checks if a product exists.
func (c *ProvenanceContract) ProductExists(ctx contractapi.TransactionContextInterface,
	productID string) (bool, error) {

	productJSON, err := ctx.GetStub().GetState(productID)
	if err != nil {
		return false, fmt.Errorf("failed to read product: %v", err)
	}
	return productJSON != nil, nil
}

// GetEvent retrieves one audit event by product ID and index.
func (c *ProvenanceContract) GetEvent(ctx contractapi.TransactionContextInterface,
	productID string, index uint64) (*ProductEvent, error) {

	key, err := eventKey(ctx, productID, index)
	if err != nil {
		return nil, err
	}
	eventJSON, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %v", err)
	}
	if eventJSON == nil {
		return nil, fmt.Errorf("event %d of product %s: %w", index, productID, ErrEventNotFound)
	}

	var event ProductEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetProductEvents returns a product's full audit trail in index order.
func (c *ProvenanceContract) GetProductEvents(ctx contractapi.TransactionContextInterface,
	productID string) ([]*ProductEvent, error) {

	attributes, err := productAttributes(ctx, productID)
	if err != nil {
		return nil, err
	}
	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(eventKeyType, attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %v", err)
	}
	defer resultsIterator.Close()

	var events []*ProductEvent
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var event ProductEvent
		if err := json.Unmarshal(queryResponse.Value, &event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}

	return events, nil
}

// GetAllProducts returns every registered product.
func (c *ProvenanceContract) GetAllProducts(ctx contractapi.TransactionContextInterface) ([]*Product, error) {
	return c.filterProducts(ctx, func(*Product) bool { return true })
}

// QueryProductsByOwner returns the products currently owned by an organization.
func (c *ProvenanceContract) QueryProductsByOwner(ctx contractapi.TransactionContextInterface,
	owner string) ([]*Product, error) {

	return c.filterProducts(ctx, func(p *Product) bool { return p.Owner == owner })
}

// QueryProductsByStatus returns the products currently in the given status.
func (c *ProvenanceContract) QueryProductsByStatus(ctx contractapi.TransactionContextInterface,
	status string) ([]*Product, error) {

	return c.filterProducts(ctx, func(p *Product) bool { return p.Status == ProductStatus(status) })
}

// GetProductHistory returns the ledger history of a product record.
func (c *ProvenanceContract) GetProductHistory(ctx contractapi.TransactionContextInterface,
	productID string) ([]map[string]interface{}, error) {

	resultsIterator, err := ctx.GetStub().GetHistoryForKey(productID)
	if err != nil {
		return nil, err
	}
	defer resultsIterator.Close()

	var history []map[string]interface{}
	for resultsIterator.HasNext() {
		response, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		record := map[string]interface{}{
			"txId":      response.TxId,
			"timestamp": response.Timestamp,
			"isDelete":  response.IsDelete,
		}

		if !response.IsDelete {
			var product Product
			if err := json.Unmarshal(response.Value, &product); err != nil {
				return nil, err
			}
			record["value"] = product
		}

		history = append(history, record)
	}

	return history, nil
}

// commitProductAndEvent stages the updated product together with its new
// audit event. Both writes land in the same transaction, so they commit or
// fail as a unit. The event key is create-only: a collision means the
// counter invariant was broken elsewhere, and the whole operation aborts.
func (c *ProvenanceContract) commitProductAndEvent(ctx contractapi.TransactionContextInterface,
	product *Product, event *ProductEvent) ([]byte, error) {

	key, err := eventKey(ctx, event.ProductID, event.EventIndex)
	if err != nil {
		return nil, err
	}
	existing, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %v", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("event %d of product %s: %w", event.EventIndex, event.ProductID, ErrEventAlreadyExists)
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if err := ctx.GetStub().PutState(key, eventJSON); err != nil {
		return nil, err
	}

	productJSON, err := json.Marshal(product)
	if err != nil {
		return nil, err
	}
	if err := ctx.GetStub().PutState(product.ID, productJSON); err != nil {
		return nil, err
	}

	return eventJSON, nil
}

func (c *ProvenanceContract) filterProducts(ctx contractapi.TransactionContextInterface,
	keep func(*Product) bool) ([]*Product, error) {

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(productKeyType, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %v", err)
	}
	defer resultsIterator.Close()

	var products []*Product
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, err
		}

		var product Product
		if err := json.Unmarshal(queryResponse.Value, &product); err != nil {
			return nil, err
		}
		if keep(&product) {
			products = append(products, &product)
		}
	}

	return products, nil
}

func (c *ProvenanceContract) statusPolicy() StatusPolicy {
	if c.StatusPolicy == StatusPolicyTyped {
		return StatusPolicyTyped
	}
	return StatusPolicyStaged
}

func parseEventType(eventType string) (EventType, error) {
	switch EventType(eventType) {
	case EventTypeCreated, EventTypeShipped, EventTypeReceived,
		EventTypeDelivered, EventTypeOngoing, EventTypeComplete:
		return EventType(eventType), nil
	default:
		return "", fmt.Errorf("unknown event type %q", eventType)
	}
}

func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	caller, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %v", err)
	}
	return caller, nil
}

func txTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %v", err)
	}
	return ts.AsTime().UTC(), nil
}
