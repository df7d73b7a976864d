package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// LogType tells which kind of record an Entry is.
type LogType string

const (
	TypeUserCommand        LogType = "userCommand"
	TypeQuoteServer        LogType = "quoteServer"
	TypeAccountTransaction LogType = "accountTransaction"
	TypeSystemEvent        LogType = "systemEvent"
	TypeErrorEvent         LogType = "errorEvent"
	TypeDebugEvent         LogType = "debugEvent"
)

// Valid reports whether t is one of the known log types.
func (t LogType) Valid() bool {
	switch t {
	case TypeUserCommand, TypeQuoteServer, TypeAccountTransaction,
		TypeSystemEvent, TypeErrorEvent, TypeDebugEvent:
		return true
	}
	return false
}

// CommandType is the user command an entry relates to.
type CommandType string

const (
	CmdAdd            CommandType = "ADD"
	CmdQuote          CommandType = "QUOTE"
	CmdBuy            CommandType = "BUY"
	CmdCommitBuy      CommandType = "COMMIT_BUY"
	CmdCancelBuy      CommandType = "CANCEL_BUY"
	CmdSell           CommandType = "SELL"
	CmdCommitSell     CommandType = "COMMIT_SELL"
	CmdCancelSell     CommandType = "CANCEL_SELL"
	CmdSetBuyAmount   CommandType = "SET_BUY_AMOUNT"
	CmdCancelSetBuy   CommandType = "CANCEL_SET_BUY"
	CmdSetBuyTrigger  CommandType = "SET_BUY_TRIGGER"
	CmdSetSellAmount  CommandType = "SET_SELL_AMOUNT"
	CmdSetSellTrigger CommandType = "SET_SELL_TRIGGER"
	CmdCancelSetSell  CommandType = "CANCEL_SET_SELL"
	CmdDumpLog        CommandType = "DUMPLOG"
	CmdDisplaySummary CommandType = "DISPLAY_SUMMARY"
)

// QuoteServerName is the server stamped on every quote-server entry.
const QuoteServerName = "QSRV"

// Event carries the fields shared by command, system, error and debug
// entries. Unused fields stay zero.
type Event struct {
	User          string
	TransactionID string
	Command       CommandType
	Symbol        string
	Filename      string
	Funds         decimal.NullDecimal
}

// Entry is one stored audit record.
type Entry struct {
	ID             int64               `json:"id,omitempty"`
	Type           LogType             `json:"type"`
	Timestamp      time.Time           `json:"timestamp"`
	Server         string              `json:"server"`
	TransactionNum string              `json:"transaction_num"`
	Command        CommandType         `json:"command,omitempty"`
	User           string              `json:"user,omitempty"`
	Symbol         string              `json:"symbol,omitempty"`
	Filename       string              `json:"filename,omitempty"`
	Funds          decimal.NullDecimal `json:"funds"`
	Price          decimal.NullDecimal `json:"price"`
	QuoteTime      time.Time           `json:"quote_server_time,omitzero"`
	CryptoKey      string              `json:"crypto_key,omitempty"`
	Action         string              `json:"action,omitempty"`
	Message        string              `json:"message,omitempty"`
}

// Filter narrows List results. Zero fields match everything; Limit <= 0
// means no limit.
type Filter struct {
	User  string
	Type  LogType
	Limit int
}

// Match reports whether e passes the User and Type constraints.
func (f Filter) Match(e Entry) bool {
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return true
}
