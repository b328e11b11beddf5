package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendchain/core/state"
	"lendchain/crypto"
	"lendchain/native/lending"
	"lendchain/observability"
	"lendchain/services/lendingd/config"
)

// SlotClock reports the current execution slot.
type SlotClock func() uint64

// Server exposes the lending engine over HTTP. The engine is single-threaded
// by contract, so every mutating handler serializes through one mutex and
// pins the slot immediately before dispatch.
type Server struct {
	engine  *lending.Engine
	store   *state.LendingStore
	clock   SlotClock
	logger  *slog.Logger
	metrics *observability.LendingMetrics
	hub     *EventHub
	tracer  trace.Tracer

	mu     sync.Mutex
	router http.Handler
}

// New constructs the HTTP API around an already wired engine.
func New(engine *lending.Engine, store *state.LendingStore, clock SlotClock, hub *EventHub, logger *slog.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: observability.Lending(),
		hub:     hub,
		tracer:  otel.Tracer("lendchain/services/lendingd"),
	}

	auth := NewAuthenticator(cfg.Auth)
	limiter := NewRateLimiter(cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/markets/{market}", s.handleGetMarket)
		r.Get("/reserves/{reserve}", s.handleGetReserve)
		r.Get("/obligations/{obligation}", s.handleGetObligation)
		if s.hub != nil {
			r.Get("/events/ws", s.hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(limiter.Middleware)

			r.Post("/markets", s.handleInitMarket)
			r.Post("/markets/{market}/owner", s.handleSetMarketOwner)
			r.Post("/markets/{market}/reserves", s.handleInitReserve)
			r.Post("/markets/{market}/obligations", s.handleInitObligation)
			r.Post("/reserves/{reserve}/refresh", s.handleRefreshReserve)
			r.Post("/reserves/{reserve}/deposit", s.handleDepositLiquidity)
			r.Post("/reserves/{reserve}/redeem", s.handleRedeemCollateral)
			r.Post("/obligations/{obligation}/refresh", s.handleRefreshObligation)
			r.Post("/obligations/{obligation}/collateral/deposit", s.handleDepositCollateral)
			r.Post("/obligations/{obligation}/collateral/withdraw", s.handleWithdrawCollateral)
			r.Post("/obligations/{obligation}/borrow", s.handleBorrow)
			r.Post("/obligations/{obligation}/repay", s.handleRepay)
			r.Post("/obligations/{obligation}/liquidate", s.handleLiquidate)
		})
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// dispatch pins the current slot and runs op with exclusive engine access.
func (s *Server) dispatch(ctx context.Context, operation string, op func() error) error {
	_, span := s.tracer.Start(ctx, operation, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	s.mu.Lock()
	slot := s.clock()
	s.engine.SetSlot(slot)
	err := op()
	s.mu.Unlock()
	span.SetAttributes(attribute.Int64("lending.slot", int64(slot)))
	s.metrics.ObserveRequest(operation, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("operation rejected", "operation", operation, "error", err)
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "slot": s.clock()})
}

type initMarketRequest struct {
	Owner         string `json:"owner"`
	QuoteCurrency string `json:"quote_currency"`
}

func (s *Server) handleInitMarket(w http.ResponseWriter, r *http.Request) {
	var req initMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	quote, err := parseQuoteCurrency(req.QuoteCurrency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var market *lending.LendingMarket
	if err := s.dispatch(r.Context(), "init_market", func() error {
		var opErr error
		market, opErr = s.engine.InitLendingMarket(owner, quote)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, marketView(market))
}

type setOwnerRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new_owner"`
}

func (s *Server) handleSetMarketOwner(w http.ResponseWriter, r *http.Request) {
	marketAddr, err := parseAddress(chi.URLParam(r, "market"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req setOwnerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	newOwner, err := parseAddress(req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.dispatch(r.Context(), "set_market_owner", func() error {
		return s.engine.SetMarketOwner(marketAddr, caller, newOwner)
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": newOwner.String()})
}

type initReserveRequest struct {
	Caller          string                `json:"caller"`
	LiquidityMint   string                `json:"liquidity_mint"`
	MintDecimals    uint8                 `json:"mint_decimals"`
	OracleFeed      string                `json:"oracle_feed"`
	LiquidityAmount string                `json:"liquidity_amount"`
	Config          lending.ReserveConfig `json:"config"`
}

func (s *Server) handleInitReserve(w http.ResponseWriter, r *http.Request) {
	marketAddr, err := parseAddress(chi.URLParam(r, "market"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req initReserveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mint, err := parseAddress(req.LiquidityMint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	feed, err := parseFeed(req.OracleFeed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.LiquidityAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var (
		reserve    *lending.Reserve
		collateral uint64
	)
	if err := s.dispatch(r.Context(), "init_reserve", func() error {
		var opErr error
		reserve, collateral, opErr = s.engine.InitReserve(marketAddr, caller, mint, req.MintDecimals, feed, req.Config, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"reserve":           reserveView(reserve),
		"collateral_minted": strconv.FormatUint(collateral, 10),
	})
}

type initObligationRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) handleInitObligation(w http.ResponseWriter, r *http.Request) {
	marketAddr, err := parseAddress(chi.URLParam(r, "market"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req initObligationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var obligation *lending.Obligation
	if err := s.dispatch(r.Context(), "init_obligation", func() error {
		var opErr error
		obligation, opErr = s.engine.InitObligation(marketAddr, owner)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, obligationView(obligation))
}

func (s *Server) handleRefreshReserve(w http.ResponseWriter, r *http.Request) {
	reserveAddr, err := parseAddress(chi.URLParam(r, "reserve"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.dispatch(r.Context(), "refresh_reserve", func() error {
		return s.engine.RefreshReserve(reserveAddr)
	})
	s.metrics.ObserveRefresh("reserve", err)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	s.publishReserveGauges(reserveAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// publishReserveGauges samples the freshly accrued reserve into the
// per-reserve Prometheus gauges. Gauge publication never fails a request.
func (s *Server) publishReserveGauges(addr crypto.Address) {
	reserve, err := s.store.GetReserve(addr)
	if err != nil || reserve == nil {
		return
	}
	utilization, err := reserve.UtilizationRate()
	if err != nil {
		return
	}
	borrowRate, err := reserve.BorrowRate()
	if err != nil {
		return
	}
	s.metrics.ObserveReserveState(
		addr.String(),
		wadFloat(utilization),
		wadFloat(borrowRate),
		wadFloat(reserve.Liquidity.CumulativeBorrowRateWads),
		reserve.Liquidity.AvailableAmount,
		wadFloat(reserve.Liquidity.BorrowedAmountWads),
	)
}

func wadFloat(z *uint256.Int) float64 {
	if z == nil {
		return 0
	}
	return z.Float64() / 1e18
}

type refreshObligationRequest struct {
	Reserves []string `json:"reserves"`
}

func (s *Server) handleRefreshObligation(w http.ResponseWriter, r *http.Request) {
	obligationAddr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req refreshObligationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reserves := make([]crypto.Address, len(req.Reserves))
	for i, raw := range req.Reserves {
		if reserves[i], err = parseAddress(raw); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	err = s.dispatch(r.Context(), "refresh_obligation", func() error {
		return s.engine.RefreshObligation(obligationAddr, reserves)
	})
	s.metrics.ObserveRefresh("obligation", err)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

type flowRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleDepositLiquidity(w http.ResponseWriter, r *http.Request) {
	reserveAddr, err := parseAddress(chi.URLParam(r, "reserve"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req flowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, amount, err := parseFlow(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var collateral uint64
	if err := s.dispatch(r.Context(), "deposit_liquidity", func() error {
		var opErr error
		collateral, opErr = s.engine.DepositReserveLiquidity(reserveAddr, caller, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"collateral_minted": strconv.FormatUint(collateral, 10)})
}

func (s *Server) handleRedeemCollateral(w http.ResponseWriter, r *http.Request) {
	reserveAddr, err := parseAddress(chi.URLParam(r, "reserve"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req flowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, amount, err := parseFlow(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var liquidity uint64
	if err := s.dispatch(r.Context(), "redeem_collateral", func() error {
		var opErr error
		liquidity, opErr = s.engine.RedeemReserveCollateral(reserveAddr, caller, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"liquidity_returned": strconv.FormatUint(liquidity, 10)})
}

type collateralRequest struct {
	Reserve string `json:"reserve"`
	Caller  string `json:"caller"`
	Amount  string `json:"amount"`
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, r *http.Request) {
	obligationAddr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req collateralRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reserveAddr, caller, amount, err := parseCollateralRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.dispatch(r.Context(), "deposit_collateral", func() error {
		return s.engine.DepositObligationCollateral(obligationAddr, reserveAddr, caller, amount)
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, r *http.Request) {
	obligationAddr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req collateralRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reserveAddr, caller, amount, err := parseCollateralRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var withdrawn uint64
	if err := s.dispatch(r.Context(), "withdraw_collateral", func() error {
		var opErr error
		withdrawn, opErr = s.engine.WithdrawObligationCollateral(obligationAddr, reserveAddr, caller, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": strconv.FormatUint(withdrawn, 10)})
}

type borrowRequest struct {
	Reserve         string `json:"reserve"`
	Caller          string `json:"caller"`
	Amount          string `json:"amount"`
	HostFeeReceiver string `json:"host_fee_receiver,omitempty"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	obligationAddr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req borrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reserveAddr, err := parseAddress(req.Reserve)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var host crypto.Address
	if strings.TrimSpace(req.HostFeeReceiver) != "" {
		if host, err = parseAddress(req.HostFeeReceiver); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	var received uint64
	if err := s.dispatch(r.Context(), "borrow", func() error {
		var opErr error
		received, opErr = s.engine.BorrowObligationLiquidity(obligationAddr, reserveAddr, caller, host, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"received": strconv.FormatUint(received, 10)})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	obligationAddr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req collateralRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reserveAddr, caller, amount, err := parseCollateralRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var repaid uint64
	if err := s.dispatch(r.Context(), "repay", func() error {
		var opErr error
		repaid, opErr = s.engine.RepayObligationLiquidity(obligationAddr, reserveAddr, caller, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"repaid": strconv.FormatUint(repaid, 10)})
}

type liquidateRequest struct {
	RepayReserve    string `json:"repay_reserve"`
	WithdrawReserve string `json:"withdraw_reserve"`
	Liquidator      string `json:"liquidator"`
	Amount          string `json:"amount"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	obligationAddr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req liquidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	repayReserve, err := parseAddress(req.RepayReserve)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	withdrawReserve, err := parseAddress(req.WithdrawReserve)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	liquidator, err := parseAddress(req.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var repaid, seized uint64
	if err := s.dispatch(r.Context(), "liquidate", func() error {
		var opErr error
		repaid, seized, opErr = s.engine.LiquidateObligation(obligationAddr, repayReserve, withdrawReserve, liquidator, amount)
		return opErr
	}); err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"repaid": strconv.FormatUint(repaid, 10),
		"seized": strconv.FormatUint(seized, 10),
	})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "market"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	market, err := s.store.GetMarket(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if market == nil {
		writeError(w, http.StatusNotFound, lending.ErrMarketNotFound)
		return
	}
	writeJSON(w, http.StatusOK, marketView(market))
}

func (s *Server) handleGetReserve(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "reserve"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reserve, err := s.store.GetReserve(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if reserve == nil {
		writeError(w, http.StatusNotFound, lending.ErrReserveNotFound)
		return
	}
	writeJSON(w, http.StatusOK, reserveView(reserve))
}

func (s *Server) handleGetObligation(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "obligation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	obligation, err := s.store.GetObligation(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if obligation == nil {
		writeError(w, http.StatusNotFound, lending.ErrObligationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, obligationView(obligation))
}

func parseFlow(req flowRequest) (crypto.Address, uint64, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return crypto.Address{}, 0, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return crypto.Address{}, 0, err
	}
	return caller, amount, nil
}

func parseCollateralRequest(req collateralRequest) (crypto.Address, crypto.Address, uint64, error) {
	reserve, err := parseAddress(req.Reserve)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, 0, err
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, 0, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, 0, err
	}
	return reserve, caller, amount, nil
}

func parseAddress(raw string) (crypto.Address, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return crypto.DecodeHexAddress(raw)
	}
	return crypto.DecodeAddress(raw)
}

// parseAmount accepts a decimal token amount or "all" for the sentinel that
// means the whole position.
func parseAmount(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "all") {
		return lending.AmountAll, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// parseQuoteCurrency accepts a short ASCII symbol ("USD") or a 64-char hex
// feed id, left-justified into the 32-byte currency field.
func parseQuoteCurrency(raw string) ([32]byte, error) {
	var quote [32]byte
	raw = strings.TrimSpace(raw)
	if len(raw) == 64 {
		decoded, err := hex.DecodeString(raw)
		if err == nil {
			copy(quote[:], decoded)
			return quote, nil
		}
	}
	if len(raw) == 0 || len(raw) > 32 {
		return quote, lending.ErrInvalidQuoteCurrency
	}
	copy(quote[:], raw)
	return quote, nil
}

func parseFeed(raw string) ([32]byte, error) {
	var feed [32]byte
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "0x"))
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return feed, lending.ErrInvalidOracle
	}
	copy(feed[:], decoded)
	return feed, nil
}

func marketView(m *lending.LendingMarket) map[string]any {
	quote := strings.TrimRight(string(m.QuoteCurrency[:]), "\x00")
	return map[string]any{
		"address":        m.Address.String(),
		"owner":          m.Owner.String(),
		"authority":      m.Authority.Address.Hex(),
		"authority_bump": m.Authority.Bump,
		"quote_currency": quote,
	}
}

func reserveView(r *lending.Reserve) map[string]any {
	return map[string]any{
		"address":                     r.Address.String(),
		"market":                      r.Market.String(),
		"liquidity_mint":              r.Liquidity.Mint.String(),
		"mint_decimals":               r.Liquidity.MintDecimals,
		"available_amount":            strconv.FormatUint(r.Liquidity.AvailableAmount, 10),
		"borrowed_amount_wads":        r.Liquidity.BorrowedAmountWads.Dec(),
		"cumulative_borrow_rate_wads": r.Liquidity.CumulativeBorrowRateWads.Dec(),
		"market_price":                r.Liquidity.MarketPrice.Dec(),
		"collateral_mint":             r.Collateral.Mint.String(),
		"collateral_supply":           strconv.FormatUint(r.Collateral.MintTotalSupply, 10),
		"last_update_slot":            r.LastUpdateSlot,
		"stale":                       r.Stale,
	}
}

func obligationView(o *lending.Obligation) map[string]any {
	deposits := make([]map[string]any, 0, o.DepositsLen())
	for i := 0; i < o.DepositsLen(); i++ {
		rec, err := o.CollateralAt(i)
		if err != nil {
			continue
		}
		deposits = append(deposits, map[string]any{
			"reserve":          rec.DepositReserve.String(),
			"deposited_amount": strconv.FormatUint(rec.DepositedAmount, 10),
			"market_value":     rec.MarketValue.Dec(),
		})
	}
	borrows := make([]map[string]any, 0, o.BorrowsLen())
	for i := 0; i < o.BorrowsLen(); i++ {
		rec, err := o.LiquidityAt(i)
		if err != nil {
			continue
		}
		borrows = append(borrows, map[string]any{
			"reserve":                     rec.BorrowReserve.String(),
			"borrowed_amount_wads":        rec.BorrowedAmountWads.Dec(),
			"cumulative_borrow_rate_wads": rec.CumulativeBorrowRateWads.Dec(),
			"market_value":                rec.MarketValue.Dec(),
		})
	}
	return map[string]any{
		"address":                o.Address.String(),
		"market":                 o.Market.String(),
		"owner":                  o.Owner.String(),
		"deposited_value":        o.DepositedValue.Dec(),
		"borrowed_value":         o.BorrowedValue.Dec(),
		"allowed_borrow_value":   o.AllowedBorrowValue.Dec(),
		"unhealthy_borrow_value": o.UnhealthyBorrowValue.Dec(),
		"deposits":               deposits,
		"borrows":                borrows,
		"last_update_slot":       o.LastUpdateSlot,
		"stale":                  o.Stale,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
