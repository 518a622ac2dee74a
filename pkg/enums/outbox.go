package enums

// OutboxAggregateType identifies the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateLoan  OutboxAggregateType = "loan"
)

func (a OutboxAggregateType) String() string { return string(a) }

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateOrder, AggregateLoan:
		return true
	}
	return false
}

// OutboxEventType names the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventOrderShipped   OutboxEventType = "order_shipped"
	EventOrderDelivered OutboxEventType = "order_delivered"
	EventOrderCancelled OutboxEventType = "order_cancelled"

	EventLoanReserved   OutboxEventType = "loan_reserved"
	EventLoanCheckedOut OutboxEventType = "loan_checked_out"
	EventLoanReturned   OutboxEventType = "loan_returned"
	EventLoanOverdue    OutboxEventType = "loan_overdue"
	EventLoanLost       OutboxEventType = "loan_lost"
	EventLoanCancelled  OutboxEventType = "loan_cancelled"
)

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool {
	switch e {
	case EventOrderCreated, EventOrderPaid, EventOrderShipped, EventOrderDelivered, EventOrderCancelled,
		EventLoanReserved, EventLoanCheckedOut, EventLoanReturned, EventLoanOverdue, EventLoanLost, EventLoanCancelled:
		return true
	}
	return false
}

// Aggregate returns the aggregate type an event type is emitted for.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventOrderCreated, EventOrderPaid, EventOrderShipped, EventOrderDelivered, EventOrderCancelled:
		return AggregateOrder
	default:
		return AggregateLoan
	}
}
