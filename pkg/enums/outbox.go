package enums

// OutboxEventType enumerates domain events emitted through the outbox.
type OutboxEventType string

const (
	EventContractSent      OutboxEventType = "contract.sent"
	EventContractCompleted OutboxEventType = "contract.completed"
	EventContractDeclined  OutboxEventType = "contract.declined"
	EventContractExpired   OutboxEventType = "contract.expired"
	EventContractCancelled OutboxEventType = "contract.cancelled"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateContract OutboxAggregateType = "contract"
)
