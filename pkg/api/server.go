package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/oceandex/oceandex/pkg/exchange"
)

// Server exposes the exchange ledger over REST plus a WebSocket event feed.
type Server struct {
	ledger *exchange.Ledger
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server
func NewServer(ledger *exchange.Ledger, hub *Hub) *Server {
	s := &Server{
		ledger: ledger,
		router: mux.NewRouter(),
		hub:    hub,
	}

	s.setupRoutes()
	return s
}

// Hub returns the server's WebSocket hub (wired into the ledger as its
// event sink).
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order lifecycle
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetOrderState).Methods("GET")

	// Matching
	api.HandleFunc("/matches", s.handleMatchOrders).Methods("POST")

	// Admin
	api.HandleFunc("/admin", s.handleAdmin).Methods("POST")

	// Node status
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// Handler returns the routed handler (for tests).
func (s *Server) Handler() http.Handler { return s.router }

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.readTransaction(w, r, exchange.TxTypeSubmit)
	if !ok {
		return
	}

	order, err := tx.Submit.Order.ToOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := exchange.DecodeSignature(tx.Submit.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// REST callers are anonymous; authenticity comes from the maker
	// signature, so no caller identity is claimed here.
	hash, err := s.ledger.Submit(order, sig, common.Address{})
	if err != nil {
		writeExchangeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		OrderHash: hash.Hex(),
		State:     s.ledger.StateOf(hash).String(),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.readTransaction(w, r, exchange.TxTypeCancel)
	if !ok {
		return
	}

	sig, err := exchange.DecodeSignature(tx.Cancel.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	hash := common.HexToHash(tx.Cancel.OrderHash)
	if err := s.ledger.Cancel(hash, sig, common.Address{}); err != nil {
		writeExchangeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OrderStateResponse{
		OrderHash: hash.Hex(),
		State:     s.ledger.StateOf(hash).String(),
	})
}

func (s *Server) handleMatchOrders(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.readTransaction(w, r, exchange.TxTypeMatch)
	if !ok {
		return
	}

	pairs, err := tx.Match.ToPairs()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.ledger.MatchOrders(pairs)
	if err != nil {
		writeExchangeError(w, err)
		return
	}

	resp := MatchResponse{Filled: make([]string, 0, len(result.Filled))}
	for _, h := range result.Filled {
		resp.Filled = append(resp.Filled, h.Hex())
	}
	if len(result.Attestation) > 0 {
		resp.Attestation = "0x" + common.Bytes2Hex(result.Attestation)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOrderState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash := common.HexToHash(vars["hash"])

	writeJSON(w, http.StatusOK, OrderStateResponse{
		OrderHash: hash.Hex(),
		State:     s.ledger.StateOf(hash).String(),
	})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.readTransaction(w, r, exchange.TxTypeAdmin)
	if !ok {
		return
	}

	if err := s.ledger.ApplyAdmin(tx.Admin); err != nil {
		writeExchangeError(w, err)
		return
	}

	s.writeStatus(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w)
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	resp := StatusResponse{
		Halted:        s.ledger.Halted(),
		FeeRecipient:  s.ledger.FeeTo().Hex(),
		TrackedOrders: s.ledger.OrderCount(),
	}
	if pk := s.ledger.AttestationPubkey(); len(pk) > 0 {
		resp.AttestationPubkey = "0x" + common.Bytes2Hex(pk)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func (s *Server) readTransaction(w http.ResponseWriter, r *http.Request, want exchange.TxType) (*exchange.SignedTransaction, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}

	tx, err := exchange.ParseTransaction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	if tx.Type != want {
		writeError(w, http.StatusBadRequest, errors.New("wrong transaction type for endpoint"))
		return nil, false
	}
	return tx, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// writeExchangeError maps core failure kinds to HTTP statuses.
func writeExchangeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, exchange.ErrDuplicateOrder), errors.Is(err, exchange.ErrNotOpen):
		status = http.StatusConflict
	case errors.Is(err, exchange.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrEmergencyHalted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, exchange.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	writeError(w, status, err)
}
