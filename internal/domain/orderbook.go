package domain

// PriceLevel is a single price+quantity entry on one side of an order book.
// Quantity is always a positive magnitude; the side carries the sign.
type PriceLevel struct {
	Price    int `json:"price"`
	Quantity int `json:"quantity"`
}

// BookSnapshot is the order book for one instrument as supplied by the host
// at the start of a tick. Bids are sorted by descending price and asks by
// ascending price. A snapshot is captured once per tick and never mutated or
// re-sorted during evaluation.
type BookSnapshot struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// ExternalQuote is an OTC reference quote for a convertible instrument,
// including the cost components of trading through the external venue.
// Sunlight and Humidity are environment readings passed through for
// record-keeping only; they are never used in pricing.
type ExternalQuote struct {
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	TransportFee float64 `json:"transport_fee"`
	ImportTariff float64 `json:"import_tariff"`
	ExportTariff float64 `json:"export_tariff"`
	Sunlight     float64 `json:"sunlight"`
	Humidity     float64 `json:"humidity"`
}
