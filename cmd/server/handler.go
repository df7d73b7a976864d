package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stockquote/internal/audit"
	"stockquote/internal/quote"
)

type quoter interface {
	GetQuote(ctx context.Context, userID, symbol, transactionID string) (quote.Quote, error)
}

type commandLogger interface {
	LogCommand(ctx context.Context, ev audit.Event)
}

type logLister interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

type handler struct {
	quotes  quoter
	audit   commandLogger
	logs    logLister
	timeout time.Duration
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /quote/{symbol}", h.getQuote)
	mux.HandleFunc("GET /logs", h.listLogs)
	mux.HandleFunc("GET /logs/dump", h.dumpLogs)
	return mux
}

// user is the authenticated caller; the gateway in front of us sets X-User.
func user(r *http.Request) string {
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return r.URL.Query().Get("user")
}

func (h *handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *handler) getQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	userID := user(r)
	if strings.TrimSpace(userID) == "" {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	txID := r.URL.Query().Get("transactionId")

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	q, err := h.quotes.GetQuote(ctx, userID, symbol, txID)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Str("user", userID).Msg("quote request failed")
		http.Error(w, "quote unavailable", http.StatusBadRequest)
		return
	}
	h.audit.LogCommand(ctx, audit.Event{
		User:          userID,
		TransactionID: txID,
		Command:       audit.CmdQuote,
		Symbol:        symbol,
	})

	// price goes out as a JSON number with the server's precision
	resp := map[string]json.RawMessage{symbol: json.RawMessage(q.UnitPrice.String())}
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func (h *handler) filter(r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	f := audit.Filter{User: q.Get("user"), Type: audit.LogType(q.Get("type"))}
	if f.Type != "" && !f.Type.Valid() {
		return f, false
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, false
		}
		f.Limit = n
	}
	return f, true
}

func (h *handler) listLogs(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(r)
	if !ok {
		http.Error(w, "invalid filter", http.StatusBadRequest)
		return
	}
	entries, err := h.logs.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("list audit log")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(entries)
}

// dumpLogs serves DUMPLOG: the whole trail, or one user's, as XML.
func (h *handler) dumpLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("user")
	h.audit.LogCommand(r.Context(), audit.Event{
		User:          user(r),
		TransactionID: q.Get("transactionId"),
		Command:       audit.CmdDumpLog,
		Filename:      q.Get("filename"),
	})
	entries, err := h.logs.List(r.Context(), audit.Filter{User: target})
	if err != nil {
		log.Error().Err(err).Msg("dump audit log")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if name := q.Get("filename"); name != "" {
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	}
	w.WriteHeader(http.StatusOK)
	if err := audit.WriteXML(w, entries); err != nil {
		log.Error().Err(err).Msg("write audit xml")
	}
}
