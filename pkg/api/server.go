package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperbid/pkg/app/nft"
)

// maxTxBytes bounds a submitted transaction body
const maxTxBytes = 64 << 10

// Backend is the read/submit surface the server needs from the app
type Backend interface {
	Status() nft.ChainStatus
	Params() auction.Params
	Account(addr common.Address) *ledger.Account
	Item(id uint64) (*item.Item, bool)
	Items(owner *common.Address) []*item.Item
	Order(id uint64) (*nft.OrderView, bool)
	Orders(openOnly bool) []*nft.OrderView
	PreviewSplit(orderID uint64, price ledger.Balance) (auction.Split, error)
	Receipt(hash string) (*nft.Receipt, bool)
	PushTx(raw []byte) (string, error)
}

// Server handles REST API and WebSocket connections
type Server struct {
	backend Backend
	router  *mux.Router
	hub     *Hub
	logger  *zap.SugaredLogger

	// AllowedOrigins for CORS; empty allows the local dev frontends
	AllowedOrigins []string
	// OnSubmit is called with every admitted tx (p2p gossip hook)
	OnSubmit func(raw []byte)
}

// NewServer creates a new API server
func NewServer(b Backend, logger *zap.SugaredLogger) *Server {
	s := &Server{
		backend: b,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")
	api.HandleFunc("/params", s.handleGetParams).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/items", s.handleGetAccountItems).Methods("GET")

	// Item endpoints
	api.HandleFunc("/items", s.handleGetItems).Methods("GET")
	api.HandleFunc("/items/{id:[0-9]+}", s.handleGetItem).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/bid", s.handleGetBid).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/stakes", s.handleGetStakes).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/split", s.handleGetSplit).Methods("GET")

	// Transaction submission
	api.HandleFunc("/tx", s.handleSubmitTx).Methods("POST")
	api.HandleFunc("/tx/{hash}", s.handleGetReceipt).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in CORS
func (s *Server) Handler() http.Handler {
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if s.logger != nil {
		s.logger.Infow("api_listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.backend.Status())
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, paramsInfo(s.backend.Params()))
}

func parseAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", addressStr)
		return common.Address{}, false
	}
	return common.HexToAddress(addressStr), true
}

func parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id", err.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	respondJSON(w, accountInfo(s.backend.Account(addr)))
}

func (s *Server) handleGetAccountItems(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	respondJSON(w, s.backend.Items(&addr))
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	var owner *common.Address
	if o := r.URL.Query().Get("owner"); o != "" {
		if !common.IsHexAddress(o) {
			respondError(w, http.StatusBadRequest, "invalid owner", o)
			return
		}
		addr := common.HexToAddress(o)
		owner = &addr
	}
	respondJSON(w, s.backend.Items(owner))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	it, found := s.backend.Item(id)
	if !found {
		respondError(w, http.StatusNotFound, "item not found", "")
		return
	}
	respondJSON(w, it)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	switch state := r.URL.Query().Get("state"); state {
	case "", "all":
		respondJSON(w, s.backend.Orders(false))
	case "open":
		respondJSON(w, s.backend.Orders(true))
	default:
		respondError(w, http.StatusBadRequest, "invalid state filter", state)
	}
}

func (s *Server) order(w http.ResponseWriter, r *http.Request) (*nft.OrderView, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}
	o, found := s.backend.Order(id)
	if !found {
		respondError(w, http.StatusNotFound, "order not found", "")
		return nil, false
	}
	return o, true
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if o, ok := s.order(w, r); ok {
		respondJSON(w, o)
	}
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	o, ok := s.order(w, r)
	if !ok {
		return
	}
	if o.HighBid == nil {
		respondError(w, http.StatusNotFound, "no bid", "")
		return
	}
	respondJSON(w, o.HighBid)
}

func (s *Server) handleGetStakes(w http.ResponseWriter, r *http.Request) {
	if o, ok := s.order(w, r); ok {
		respondJSON(w, o.Stakes)
	}
}

// handleGetSplit previews the payout at ?price=, or at the current high bid
func (s *Server) handleGetSplit(w http.ResponseWriter, r *http.Request) {
	o, ok := s.order(w, r)
	if !ok {
		return
	}

	var price ledger.Balance
	if p := r.URL.Query().Get("price"); p != "" {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, "invalid price", p)
			return
		}
		price = v
	} else if o.HighBid != nil {
		price = o.HighBid.Amount
	} else {
		respondError(w, http.StatusBadRequest, "price required", "order has no bid")
		return
	}

	split, err := s.backend.PreviewSplit(o.ID, price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "split preview failed", err.Error())
		return
	}
	respondJSON(w, split)
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTxBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	if len(body) > maxTxBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "transaction too large", "")
		return
	}

	hash, err := s.backend.PushTx(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, nft.ErrDuplicateTx) {
			status = http.StatusConflict
		}
		respondError(w, status, "transaction rejected", err.Error())
		return
	}

	if s.logger != nil {
		s.logger.Infow("tx_submitted", "hash", hash, "bytes", len(body))
	}
	if s.OnSubmit != nil {
		s.OnSubmit(body)
	}

	respondJSONStatus(w, http.StatusAccepted, SubmitTxResponse{Status: "submitted", TxHash: hash})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.backend.Receipt(mux.Vars(r)["hash"])
	if !ok {
		respondError(w, http.StatusNotFound, "receipt not found", "pending or unknown")
		return
	}
	respondJSON(w, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the app)
// ==============================

// BroadcastEvent pushes a committed event to "events" and to the order,
// item and account channels it concerns
func (s *Server) BroadcastEvent(ev auction.Event) {
	msg := WSMessage{Type: string(ev.Type), Data: ev}

	channels := []string{"events"}
	if ev.IsItemEvent() {
		channels = append(channels, "item:"+strconv.FormatUint(ev.ItemID, 10))
	} else {
		channels = append(channels, "order:"+strconv.FormatUint(ev.OrderID, 10))
	}
	if ev.Account != (common.Address{}) {
		channels = append(channels, "account:"+ev.Account.Hex())
	}
	if ev.Counterparty != (common.Address{}) && ev.Counterparty != ev.Account {
		channels = append(channels, "account:"+ev.Counterparty.Hex())
	}

	for _, ch := range channels {
		msg.Channel = ch
		s.hub.BroadcastToChannel(ch, msg)
	}
}

// BroadcastBlock pushes a block summary to "blocks"
func (s *Server) BroadcastBlock(height uint64, receipts []*nft.Receipt) {
	info := BlockInfo{Height: height, Txs: len(receipts)}
	for _, r := range receipts {
		if !r.OK {
			info.Failed++
		}
	}
	s.hub.BroadcastToChannel("blocks", WSMessage{Channel: "blocks", Type: "block", Data: info})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
