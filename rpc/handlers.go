package rpc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hgigs/crypto"
	"hgigs/integrations/exports"
	"hgigs/native/marketplace"
	"hgigs/services/eventlog"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	root, err := s.engine.Root()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	out := statusJSON{
		Initialized: root.Initialized,
		Paused:      root.Paused,
		FeeBps:      root.FeeBps,
		Gigs:        root.GigSeq,
		Orders:      root.OrderSeq,
	}
	if root.Initialized {
		out.Owner = crypto.FromRaw(root.Admin).String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCustody(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = marketplace.NativeAsset
	}
	amount, err := s.engine.CustodyBalance(asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	normalized, _ := marketplace.NormalizeAsset(asset)
	writeJSON(w, http.StatusOK, balanceJSON{Asset: normalized, Amount: bigString(amount)})
}

func (s *Server) handleGetGig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "gigID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	gig, err := s.engine.GetGig(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gigFrom(gig))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	order, err := s.engine.GetOrder(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderFrom(order))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := crypto.ParsePrincipal(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = marketplace.NativeAsset
	}
	amount, err := s.engine.Balance(account, asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	normalized, _ := marketplace.NormalizeAsset(asset)
	writeJSON(w, http.StatusOK, balanceJSON{
		Account: crypto.FromRaw(account).String(),
		Asset:   normalized,
		Amount:  bigString(amount),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "event journal disabled")
		return
	}
	query := r.URL.Query()
	var after uint64
	if raw := query.Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "after must be an unsigned integer")
			return
		}
		after = parsed
	}
	limit := eventlog.DefaultPageSize
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	entries, err := s.journal.List(r.Context(), after, limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	next := after
	if len(entries) > 0 {
		next = entries[len(entries)-1].Seq
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": entries,
		"next":   next,
	})
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	var req createGigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PRICE", err.Error())
		return
	}
	id, err := s.engine.CreateGig(r.Context(), caller, req.Title, req.Description, price, req.Asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	gig, err := s.engine.GetGig(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gigFrom(gig))
}

func (s *Server) handleDeactivateGig(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id, err := pathID(r, "gigID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if err := s.engine.DeactivateGig(r.Context(), caller, id); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	gig, err := s.engine.GetGig(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gigFrom(gig))
}

// handleOrderGig opens an order. When the body carries an amount the order is
// opened and paid in one step.
func (s *Server) handleOrderGig(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	gigID, err := pathID(r, "gigID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	var req orderGigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	var orderID uint64
	if req.Amount != nil {
		amount, perr := parseAmount("amount", *req.Amount)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "INCORRECT_AMOUNT", perr.Error())
			return
		}
		orderID, err = s.engine.OrderGig(r.Context(), caller, gigID, amount)
	} else {
		orderID, err = s.engine.OpenOrder(r.Context(), caller, gigID)
	}
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeOrder(w, r, http.StatusCreated, orderID)
}

func (s *Server) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INCORRECT_AMOUNT", err.Error())
		return
	}
	if err := s.engine.PayOrder(r.Context(), caller, orderID, amount); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeOrder(w, r, http.StatusOK, orderID)
}

func (s *Server) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	s.orderAction(w, r, s.engine.CompleteOrder)
}

func (s *Server) handleReleasePayment(w http.ResponseWriter, r *http.Request) {
	s.orderAction(w, r, s.engine.ReleasePayment)
}

func (s *Server) orderAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, caller [20]byte, orderID uint64) error) {
	caller, _ := CallerFrom(r.Context())
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if err := action(r.Context(), caller, orderID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeOrder(w, r, http.StatusOK, orderID)
}

func (s *Server) writeOrder(w http.ResponseWriter, r *http.Request, status int, orderID uint64) {
	order, err := s.engine.GetOrder(orderID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, status, orderFrom(order))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	if err := s.engine.Pause(r.Context(), caller); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	if err := s.engine.Unpause(r.Context(), caller); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleTransferOwner(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	var req ownerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	next, err := crypto.ParsePrincipal(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", fmt.Sprintf("owner: %v", err))
		return
	}
	if err := s.engine.TransferAdministrator(r.Context(), caller, next); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	var req feeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if req.FeeBps == nil {
		writeError(w, http.StatusBadRequest, "INVALID_FEE", "feeBps required")
		return
	}
	if err := s.engine.SetFeeBps(r.Context(), caller, *req.FeeBps); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	account, err := crypto.ParsePrincipal(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	asset := req.Asset
	if strings.TrimSpace(asset) == "" {
		asset = marketplace.NativeAsset
	}
	if err := s.engine.Deposit(r.Context(), caller, account, asset, amount); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	balance, err := s.engine.Balance(account, asset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	normalized, _ := marketplace.NormalizeAsset(asset)
	writeJSON(w, http.StatusOK, balanceJSON{
		Account: crypto.FromRaw(account).String(),
		Asset:   normalized,
		Amount:  bigString(balance),
	})
}

func (s *Server) handleExportSettlements(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	if !s.engine.IsAdministrator(caller) {
		s.writeEngineError(w, r, marketplace.ErrUnauthorized)
		return
	}
	orders, err := s.engine.Settlements()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	data, sum, contentType, err := exports.Render(format, exports.FromOrders(orders))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if format == "" {
		format = exports.FormatCSV
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=settlements.%s", strings.ToLower(format)))
	w.Header().Set("X-Checksum-SHA256", sum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
