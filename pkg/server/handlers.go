package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/meridianxyz/distributor/pkg/distributor"
	"github.com/meridianxyz/distributor/pkg/merkle"
	"github.com/meridianxyz/distributor/pkg/metrics"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOperationError maps the core's error taxonomy onto HTTP statuses and
// stable error kinds, so clients can distinguish "get a better proof" from
// "wait for funding" from "nothing left to claim".
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, distributor.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, distributor.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, distributor.ErrShutdown):
		writeError(w, http.StatusConflict, "shutdown", err.Error())
	case errors.Is(err, distributor.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, distributor.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, distributor.ErrInvalidProof):
		writeError(w, http.StatusUnprocessableEntity, "invalid_proof", err.Error())
	case errors.Is(err, distributor.ErrProofTooLong):
		writeError(w, http.StatusUnprocessableEntity, "proof_too_long", err.Error())
	case errors.Is(err, distributor.ErrExists):
		writeError(w, http.StatusConflict, "exists", err.Error())
	default:
		s.log.Error("server: operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// errorKind labels an operation outcome for metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, distributor.ErrShutdown):
		return "shutdown"
	case errors.Is(err, distributor.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, distributor.ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, distributor.ErrProofTooLong):
		return "proof_too_long"
	case errors.Is(err, distributor.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, distributor.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, distributor.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type initializeRequest struct {
	Mint solana.PublicKey `json:"mint"`
	Root merkle.Hash      `json:"root"`
	// Funding is minted into the fresh vault, so a distribution can go
	// live in one call. Zero leaves the vault to be funded separately.
	Funding uint64 `json:"funding,omitempty"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	signer, ok := SignerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_signature", "caller identity not established")
		return
	}

	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to decode request body")
		return
	}

	dist, err := s.cfg.Distributor.Initialize(r.Context(), signer, req.Mint, req.Root)
	metrics.AdminOpsTotal.WithLabelValues("initialize", errorKind(err)).Inc()
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	if req.Funding > 0 {
		if err := s.cfg.Ledger.Mint(r.Context(), dist.TokenVault, req.Funding); err != nil {
			s.writeOperationError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, dist)
}

type statusResponse struct {
	distributor.Distribution
	VaultBalance uint64  `json:"vault_balance"`
	Claimed      *uint64 `json:"claimed,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dist, balance, err := s.cfg.Distributor.Status(r.Context(), id)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	resp := statusResponse{Distribution: dist, VaultBalance: balance}
	if claimantParam := r.URL.Query().Get("claimant"); claimantParam != "" {
		claimant, err := solana.PublicKeyFromBase58(claimantParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "claimant is not a valid public key")
			return
		}
		rec, err := s.cfg.Distributor.ClaimRecord(r.Context(), id, claimant)
		if err != nil {
			s.writeOperationError(w, err)
			return
		}
		resp.Claimed = &rec.Claimed
	}

	writeJSON(w, http.StatusOK, resp)
}

type claimRequest struct {
	TotalAmount uint64        `json:"total_amount"`
	Proof       []merkle.Hash `json:"proof"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	signer, ok := SignerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_signature", "caller identity not established")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to decode request body")
		return
	}

	id := chi.URLParam(r, "id")
	result, err := s.cfg.Distributor.Claim(r.Context(), id, signer, req.TotalAmount, req.Proof)
	metrics.ClaimsTotal.WithLabelValues(errorKind(err)).Inc()
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	metrics.ClaimedAmountTotal.Add(float64(result.Amount))

	writeJSON(w, http.StatusOK, result)
}

type updateRootRequest struct {
	NewRoot merkle.Hash `json:"new_root"`
}

func (s *Server) handleUpdateRoot(w http.ResponseWriter, r *http.Request) {
	signer, ok := SignerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_signature", "caller identity not established")
		return
	}

	var req updateRootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to decode request body")
		return
	}

	id := chi.URLParam(r, "id")
	err := s.cfg.Distributor.UpdateRoot(r.Context(), id, signer, req.NewRoot)
	metrics.AdminOpsTotal.WithLabelValues("update_root", errorKind(err)).Inc()
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"root": req.NewRoot.String()})
}

type setAdminRequest struct {
	NewAdmin solana.PublicKey `json:"new_admin"`
}

func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	signer, ok := SignerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_signature", "caller identity not established")
		return
	}

	var req setAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to decode request body")
		return
	}

	id := chi.URLParam(r, "id")
	err := s.cfg.Distributor.SetAdmin(r.Context(), id, signer, req.NewAdmin)
	metrics.AdminOpsTotal.WithLabelValues("set_admin", errorKind(err)).Inc()
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"admin": req.NewAdmin.String()})
}

type shutdownResponse struct {
	Swept uint64 `json:"swept"`
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	signer, ok := SignerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_signature", "caller identity not established")
		return
	}

	id := chi.URLParam(r, "id")
	swept, err := s.cfg.Distributor.Shutdown(r.Context(), id, signer)
	metrics.AdminOpsTotal.WithLabelValues("shutdown", errorKind(err)).Inc()
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shutdownResponse{Swept: swept})
}
