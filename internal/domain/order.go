package domain

// Order is a single limit order to be submitted to the exchange. Quantity is
// signed: positive buys, negative sells. A zero-quantity order is legal on
// the wire but the engine suppresses them before emission.
type Order struct {
	Symbol   string `json:"symbol"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

// IsBuy reports whether the order adds long exposure.
func (o Order) IsBuy() bool { return o.Quantity > 0 }

// IsSell reports whether the order adds short exposure.
func (o Order) IsSell() bool { return o.Quantity < 0 }
