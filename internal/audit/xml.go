package audit

import (
	"encoding/xml"
	"io"
	"strconv"
)

type xmlEntry struct {
	XMLName         xml.Name
	Timestamp       int64  `xml:"timestamp"`
	Server          string `xml:"server"`
	TransactionNum  string `xml:"transactionNum"`
	Command         string `xml:"command,omitempty"`
	Price           string `xml:"price,omitempty"`
	Username        string `xml:"username,omitempty"`
	StockSymbol     string `xml:"stockSymbol,omitempty"`
	Filename        string `xml:"filename,omitempty"`
	QuoteServerTime string `xml:"quoteServerTime,omitempty"`
	CryptoKey       string `xml:"cryptokey,omitempty"`
	Action          string `xml:"action,omitempty"`
	Funds           string `xml:"funds,omitempty"`
	ErrorMessage    string `xml:"errorMessage,omitempty"`
	DebugMessage    string `xml:"debugMessage,omitempty"`
}

// WriteXML renders entries as the <log> document produced by DUMPLOG.
// Money is printed with two decimals, times as epoch milliseconds.
func WriteXML(w io.Writer, entries []Entry) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	start := xml.StartElement{Name: xml.Name{Local: "log"}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, e := range entries {
		if err := enc.Encode(toXML(e)); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return enc.Flush()
}

func toXML(e Entry) xmlEntry {
	name := string(e.Type)
	if !e.Type.Valid() {
		name = string(TypeErrorEvent)
	}
	x := xmlEntry{
		XMLName:        xml.Name{Local: name},
		Timestamp:      e.Timestamp.UnixMilli(),
		Server:         e.Server,
		TransactionNum: e.TransactionNum,
		Command:        string(e.Command),
		Username:       e.User,
		StockSymbol:    e.Symbol,
		Filename:       e.Filename,
		CryptoKey:      e.CryptoKey,
		Action:         e.Action,
	}
	if e.Funds.Valid {
		x.Funds = e.Funds.Decimal.StringFixed(2)
	}
	if e.Price.Valid {
		x.Price = e.Price.Decimal.StringFixed(2)
	}
	if !e.QuoteTime.IsZero() {
		x.QuoteServerTime = strconv.FormatInt(e.QuoteTime.UnixMilli(), 10)
	}
	switch e.Type {
	case TypeDebugEvent:
		x.DebugMessage = e.Message
	case TypeErrorEvent:
		x.ErrorMessage = e.Message
	default:
		if !e.Type.Valid() {
			x.ErrorMessage = "Logging Error - Invalid Log Type"
		}
	}
	return x
}
