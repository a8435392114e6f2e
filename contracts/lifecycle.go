package contracts

import (
	"math"
)

// This file holds the pure lifecycle rules: input validation, authorization
// against a caller principal, stage progression and status transitions. No
// function here touches the ledger, the clock or the identity service, so
// the full rule set is exercisable in plain unit tests. Contract methods in
// provenance.go load state, resolve the caller and persist the results.

func validateSerialNumber(serialNumber string) error {
	if len(serialNumber) == 0 || len(serialNumber) > MaxSerialNumberLen {
		return ErrInvalidSerialNumber
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) == 0 || len(description) > MaxDescriptionLen {
		return ErrInvalidDescription
	}
	return nil
}

func validateStageName(name string) error {
	if len(name) == 0 || len(name) > MaxStageNameLen {
		return ErrInvalidStageName
	}
	return nil
}

func validateStages(stages []StageInput) error {
	if len(stages) > MaxStages {
		return ErrTooManyStages
	}
	for _, stage := range stages {
		if err := validateStageName(stage.Name); err != nil {
			return err
		}
	}
	return nil
}

// applyLogEvent validates and applies one audit event to the product,
// mutating it in place. It returns the stage name to record on the event
// (empty for the non-staged flow). Preconditions are checked in a fixed
// order and the first violation aborts before any field changes.
func (p *Product) applyLogEvent(caller string, eventType EventType, description string,
	stageName string, policy StatusPolicy, lazyStages bool) (string, error) {

	if err := validateDescription(description); err != nil {
		return "", err
	}
	if p.Status == ProductStatusDelivered {
		return "", ErrProductAlreadyDelivered
	}

	recordedStage := ""
	completesStage := false

	switch {
	case len(p.Stages) == 0 && lazyStages && stageName != "":
		// The first stage is created from the event itself; the caller
		// becomes its owner.
		if err := p.appendLazyStage(caller, eventType, stageName); err != nil {
			return "", err
		}
		recordedStage = stageName

	case len(p.Stages) == 0:
		// Non-staged flow: only the product owner may log events.
		if caller != p.Owner {
			return "", ErrUnauthorizedAccess
		}

	default:
		if p.CurrentStageIndex >= len(p.Stages) {
			return "", ErrInvalidStageIndex
		}
		current := p.Stages[p.CurrentStageIndex]
		if current.Completed {
			// In lazy mode a completed final stage is extended with a new
			// caller-owned stage instead of rejecting the event.
			if lazyStages && stageName != "" && p.CurrentStageIndex == len(p.Stages)-1 {
				if err := p.appendLazyStage(caller, eventType, stageName); err != nil {
					return "", err
				}
				recordedStage = stageName
				break
			}
			return "", ErrStageAlreadyCompleted
		}
		// A stage without an owner is open: anyone may act on it.
		if current.Owner != "" && caller != current.Owner {
			return "", ErrUnauthorizedAccess
		}
		recordedStage = current.Name
		completesStage = eventType == EventTypeComplete
	}

	p.applyStatusPolicy(policy, eventType)
	if completesStage {
		p.advanceStage(policy, lazyStages)
	}
	return recordedStage, nil
}

// applyCompleteStage is the owner-only shortcut for advancing the stage
// walk. It keeps progression identical to a COMPLETE event: mark the
// current stage done, hand custody to the next stage's owner if one is
// declared, and deliver the product after the final stage.
func (p *Product) applyCompleteStage(caller string) (string, error) {
	if p.Status == ProductStatusDelivered {
		return "", ErrProductAlreadyDelivered
	}
	if caller != p.Owner {
		return "", ErrUnauthorizedAccess
	}
	if len(p.Stages) == 0 {
		return "", ErrNoStages
	}
	if p.CurrentStageIndex >= len(p.Stages) {
		return "", ErrInvalidStageIndex
	}

	index := p.CurrentStageIndex
	name := p.Stages[index].Name
	p.Stages[index].Completed = true

	if index+1 < len(p.Stages) {
		next := p.Stages[index+1]
		if next.Owner != "" {
			p.Owner = next.Owner
			p.Status = ProductStatusTransferred
		}
		p.CurrentStageIndex = index + 1
	} else {
		p.Status = ProductStatusDelivered
	}
	return name, nil
}

// applyTransferOwnership hands custody to newOwner unconditionally and
// permanently; the previous owner keeps no authorization.
func (p *Product) applyTransferOwnership(caller string, newOwner string) error {
	if p.Status == ProductStatusDelivered {
		return ErrProductAlreadyDelivered
	}
	if caller != p.Owner {
		return ErrUnauthorizedAccess
	}
	if newOwner == "" {
		return ErrInvalidOwner
	}
	p.Owner = newOwner
	p.Status = ProductStatusTransferred
	return nil
}

// nextEventIndex reserves the next audit-trail slot. Indices form the
// gap-free sequence 0..EventsCounter-1; the counter never decreases.
func (p *Product) nextEventIndex() (uint64, error) {
	if p.EventsCounter == math.MaxUint64 {
		return 0, ErrCounterOverflow
	}
	index := p.EventsCounter
	p.EventsCounter++
	return index, nil
}

func (p *Product) appendLazyStage(caller string, eventType EventType, name string) error {
	if err := validateStageName(name); err != nil {
		return err
	}
	if len(p.Stages) >= MaxStages {
		return ErrTooManyStages
	}
	p.Stages = append(p.Stages, Stage{
		Name:      name,
		Owner:     caller,
		Completed: eventType == EventTypeComplete,
	})
	p.CurrentStageIndex = len(p.Stages) - 1
	return nil
}

func (p *Product) applyStatusPolicy(policy StatusPolicy, eventType EventType) {
	switch policy {
	case StatusPolicyTyped:
		switch eventType {
		case EventTypeShipped:
			p.Status = ProductStatusInTransit
		case EventTypeReceived:
			p.Status = ProductStatusReceived
		case EventTypeDelivered:
			p.Status = ProductStatusDelivered
		}
		// All other event types leave the status unchanged.
	default:
		p.Status = ProductStatusInTransit
	}
}

// advanceStage moves the stage walk forward after a COMPLETE event. When a
// next stage declares an owner, custody transfers to it implicitly. Under
// the staged policy, completing the final declared stage delivers the
// product; with lazy stages the list is open-ended, so the last stage is
// merely marked completed and a later event may extend the walk.
func (p *Product) advanceStage(policy StatusPolicy, lazyStages bool) {
	index := p.CurrentStageIndex
	p.Stages[index].Completed = true

	if index+1 < len(p.Stages) {
		next := p.Stages[index+1]
		if next.Owner != "" {
			p.Owner = next.Owner
			p.Status = ProductStatusTransferred
		}
		p.CurrentStageIndex = index + 1
	} else if policy != StatusPolicyTyped && !lazyStages {
		p.Status = ProductStatusDelivered
	}
}
