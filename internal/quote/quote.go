package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTransactionID is used when a caller does not supply a correlation id.
const DefaultTransactionID = "1"

// Quote is the price of one symbol as reported by the quote server.
// Values are built once from a wire exchange (or read back from a cache)
// and never modified afterwards.
type Quote struct {
	Symbol        string          `json:"symbol"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ServerTime    time.Time       `json:"server_time"`
	CryptoKey     string          `json:"crypto_key"`
	UserID        string          `json:"user_id"`
	TransactionID string          `json:"transaction_id"`
}

// TransactionIDOrDefault returns id, or DefaultTransactionID when id is empty.
func TransactionIDOrDefault(id string) string {
	if id == "" {
		return DefaultTransactionID
	}
	return id
}
