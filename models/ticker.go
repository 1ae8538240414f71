package models

// OrderBook carries the truncated top of book for one symbol. Buy orders are
// sorted by descending price, sell orders ascending.
type OrderBook struct {
	BuyOrders  []Level `json:"buy_orders"`
	SellOrders []Level `json:"sell_orders"`
}

// TickerUpdate is the normalized per-symbol snapshot pushed to subscribers
// and held in the snapshot cache. Timestamp is ISO-8601.
type TickerUpdate struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	HighPrice        float64   `json:"high_price"`
	LowPrice         float64   `json:"low_price"`
	PercentageChange string    `json:"percentage_change"`
	Volume24h        float64   `json:"volume_24h"`
	OrderBook        OrderBook `json:"order_book"`
	Timestamp        string    `json:"timestamp"`
}
