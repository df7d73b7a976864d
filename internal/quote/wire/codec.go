package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockquote/internal/quote"
)

// responseFields is the number of comma separated fields in a response line:
// price,symbol,userID,timestampMillis,cryptoKey
const responseFields = 5

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// Sanitize strips line terminators so user input cannot inject extra request lines.
func Sanitize(s string) string {
	return lineBreaks.Replace(s)
}

// RequestLine builds the single line sent to the quote server, terminator included.
func RequestLine(symbol, userID string) string {
	return Sanitize(symbol) + "," + Sanitize(userID) + "\n"
}

// Response is a parsed quote server reply.
type Response struct {
	Price      decimal.Decimal
	Symbol     string
	UserID     string
	ServerTime time.Time
	CryptoKey  string
}

// Quote turns the response into a Quote for the requesting user.
// The symbol is the one that was asked for, not the echoed field.
func (r Response) Quote(userID, symbol, transactionID string) quote.Quote {
	return quote.Quote{
		Symbol:        symbol,
		UnitPrice:     r.Price,
		ServerTime:    r.ServerTime,
		CryptoKey:     r.CryptoKey,
		UserID:        userID,
		TransactionID: quote.TransactionIDOrDefault(transactionID),
	}
}

// ParseResponse parses one response line. The trailing terminator is optional.
// The crypto key is everything after the fourth comma and is not interpreted.
func ParseResponse(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Response{}, quote.NewError(quote.KindProtocol, "parse", errors.New("empty response line"))
	}
	parts := strings.SplitN(line, ",", responseFields)
	if len(parts) < responseFields {
		return Response{}, quote.NewError(quote.KindProtocol, "parse",
			fmt.Errorf("want %d fields, got %d in %q", responseFields, len(parts), line))
	}

	price, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return Response{}, quote.NewError(quote.KindProtocol, "parse", fmt.Errorf("price %q: %w", parts[0], err))
	}
	if price.IsNegative() {
		return Response{}, quote.NewError(quote.KindProtocol, "parse", fmt.Errorf("negative price %s", price))
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64)
	if err != nil {
		return Response{}, quote.NewError(quote.KindProtocol, "parse", fmt.Errorf("timestamp %q: %w", parts[3], err))
	}

	return Response{
		Price:      price,
		Symbol:     strings.TrimSpace(parts[1]),
		UserID:     strings.TrimSpace(parts[2]),
		ServerTime: time.UnixMilli(millis).UTC(),
		CryptoKey:  strings.TrimSpace(parts[4]),
	}, nil
}
