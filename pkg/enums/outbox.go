package enums

// OutboxAggregateType is the aggregate an outbox event belongs to. Events of
// one aggregate share an ordering key.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

func (a OutboxAggregateType) IsValid() bool {
	return oneOf(a, []OutboxAggregateType{AggregateOrder, AggregatePayment})
}

// OutboxEventType is the event_type column of outbox_events and the
// event_type attribute of published messages.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderCanceled      OutboxEventType = "order_canceled"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventPaymentSucceeded   OutboxEventType = "payment_succeeded"
	EventPaymentFailed      OutboxEventType = "payment_failed"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCanceled,
	EventOrderStatusChanged,
	EventPaymentSucceeded,
	EventPaymentFailed,
}

func (e OutboxEventType) IsValid() bool { return oneOf(e, outboxEventTypes) }

// OutboxDLQErrorReason records why a row was moved to outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return oneOf(r, []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable})
}
