package domain

// Kind classifies a verified gateway event by its effect on an order.
type Kind string

const (
	KindSucceeded Kind = "succeeded"
	KindFailed    Kind = "failed"
	KindIgnored   Kind = "ignored"
)

// Event is a verified, provider-neutral payment notification.
type Event struct {
	ID   string
	Type string
	Kind Kind
	// OrderID comes from client_reference_id or metadata and may be empty.
	OrderID    string
	SessionID  string
	PaymentRef string
}
