package domain

type LineItem struct {
	Name           string
	UnitPriceCents int64
	Quantity       int
}

type CheckoutRequest struct {
	OrderID     string
	UserID      string
	Currency    string
	AmountCents int64
	Items       []LineItem
}

type Session struct {
	ID  string
	URL string
}
