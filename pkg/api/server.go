// Package api exposes the order book over HTTP: order submission, book and
// trade queries, account lookup, and a WebSocket trade feed. It is a thin
// consumer of the exchange core and holds no matching logic.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"tickerbook/pkg/exchange"
	"tickerbook/pkg/exchange/account"
	"tickerbook/pkg/stockinfo"
)

// Server handles REST API and WebSocket connections. The book is
// single-threaded by design, so every mutating request takes mu.
type Server struct {
	mu       sync.Mutex
	book     *exchange.Book
	accounts account.Manager
	stocks   *stockinfo.StockInfo
	router   *mux.Router
	hub      *Hub
	log      *zap.Logger

	allowedOrigins []string
}

func NewServer(book *exchange.Book, accounts account.Manager, stocks *stockinfo.StockInfo, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		book:           book,
		accounts:       accounts,
		stocks:         stocks,
		router:         mux.NewRouter(),
		hub:            NewHub(),
		log:            logger,
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/book/{ticker}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/book/{ticker}/best", s.handleGetBestPrice).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/stocks", s.handleGetStocks).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var side exchange.Side
	if err := side.UnmarshalText([]byte(req.Action)); err != nil {
		respondError(w, http.StatusBadRequest, "invalid action", err.Error())
		return
	}
	var orderType exchange.OrderType
	if err := orderType.UnmarshalText([]byte(req.OrderType)); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, SubmitOrderResponse{
			Status: "rejected",
			Reason: exchange.RejectInvalidOrderType.String(),
		})
		return
	}

	order := exchange.Order{
		AccountID: req.AccountID,
		Ticker:    req.Ticker,
		Side:      side,
		Type:      orderType,
		Quantity:  req.Quantity,
	}
	if req.Price != nil {
		order.Price = *req.Price
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.book.Add(order, s.accounts); err != nil {
		if rej := exchange.AsRejection(err); rej != nil {
			respondJSON(w, http.StatusUnprocessableEntity, SubmitOrderResponse{
				Status: "rejected",
				Reason: rej.Reason.String(),
			})
			return
		}
		s.log.Error("order add failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to add order", err.Error())
		return
	}

	trades, err := s.book.Match(order.Ticker, s.accounts)
	if err != nil {
		s.log.Error("matching failed", zap.String("ticker", order.Ticker), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "matching failed", err.Error())
		return
	}

	infos := make([]TradeInfo, len(trades))
	for i, t := range trades {
		infos[i] = tradeInfo(t)
		s.hub.Broadcast(infos[i])
	}
	respondJSON(w, http.StatusOK, SubmitOrderResponse{Status: "accepted", Trades: infos})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	s.mu.Lock()
	buys := s.book.BuyOrders(ticker)
	sells := s.book.SellOrders(ticker)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, BookResponse{
		Ticker:     ticker,
		BuyOrders:  orderInfos(buys),
		SellOrders: orderInfos(sells),
	})
}

func (s *Server) handleGetBestPrice(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	s.mu.Lock()
	bid, ask, hasBid, hasAsk := s.book.BestBidAsk(ticker)
	last, hasLast := s.book.LastTradePrice(ticker)
	s.mu.Unlock()

	resp := BestPriceResponse{Ticker: ticker}
	if hasBid {
		resp.BestBid = &bid
	}
	if hasAsk {
		resp.BestAsk = &ask
	}
	if hasLast {
		resp.Last = &last
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.book.TradeHistory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read trades", err.Error())
		return
	}

	ticker := r.URL.Query().Get("ticker")
	infos := make([]TradeInfo, 0, len(trades))
	for _, t := range trades {
		if ticker != "" && t.Ticker != ticker {
			continue
		}
		infos = append(infos, tradeInfo(t))
	}
	respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	acc, err := s.accounts.GetAccount(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load account", err.Error())
		return
	}
	cp := acc.Clone()
	respondJSON(w, http.StatusOK, AccountResponse{
		AccountID: id,
		Balance:   cp.Balance,
		Positions: cp.Positions,
	})
}

func (s *Server) handleGetStocks(w http.ResponseWriter, r *http.Request) {
	if s.stocks == nil {
		respondJSON(w, http.StatusOK, []StockInfoResponse{})
		return
	}
	resp := make([]StockInfoResponse, 0)
	for _, ticker := range s.stocks.Tickers() {
		st, _ := s.stocks.Get(ticker)
		resp = append(resp, StockInfoResponse{
			Ticker:        ticker,
			Price:         st.Price,
			MarketCap:     st.MarketCap,
			DividendYield: st.DividendYield,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func tradeInfo(t exchange.Trade) TradeInfo {
	return TradeInfo{
		TradeID:       t.ID,
		Ticker:        t.Ticker,
		Price:         t.Price,
		Quantity:      t.Quantity,
		BuyAccountID:  t.BuyAccountID,
		SellAccountID: t.SellAccountID,
		Timestamp:     t.Timestamp.Format(time.RFC3339Nano),
	}
}

func orderInfos(orders []exchange.Order) []OrderInfo {
	infos := make([]OrderInfo, len(orders))
	for i, o := range orders {
		infos[i] = OrderInfo{
			AccountID: o.AccountID,
			Ticker:    o.Ticker,
			Action:    o.Side.String(),
			OrderType: o.Type.String(),
			Quantity:  o.Quantity,
			Price:     o.Price,
			Timestamp: o.Timestamp.Format(time.RFC3339Nano),
		}
	}
	return infos
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg, details string) {
	respondJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
