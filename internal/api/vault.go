package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/currency"
)

// ─── Vault Handlers ─────────────────────────────────────────────────────────

type vaultRequest struct {
	ActorID     uuid.UUID `json:"actor_id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
}

// GET /v1/guilds/{guildID}/vault
func (s *Server) handleVaultAccount(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	acct, err := s.engine.Account(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// POST /v1/guilds/{guildID}/vault/deposit
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.vaultMutation(w, r, s.engine.Deposit)
}

// POST /v1/guilds/{guildID}/vault/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.vaultMutation(w, r, s.engine.Withdraw)
}

func (s *Server) vaultMutation(w http.ResponseWriter, r *http.Request,
	apply func(actorID, guildID uuid.UUID, amount int64, description string) (int64, error)) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	var req vaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := apply(req.ActorID, guildID, req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// POST /v1/guilds/{guildID}/vault/join-fee
func (s *Server) handleJoinFee(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	var req vaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	balance, err := s.engine.CollectJoinFee(guildID, req.ActorID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// GET /v1/guilds/{guildID}/vault/transactions?limit=50
func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	history, err := s.engine.TransactionHistory(guildID, queryLimit(r, 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": history})
}

// GET /v1/guilds/{guildID}/vault/contributions
func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	contribs, err := s.engine.MemberContributions(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contributions": contribs})
}

// GET /v1/guilds/{guildID}/vault/reconcile
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	balance, err := s.engine.ReconcileBalance(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":    balance,
		"consistent": true,
	})
}

// POST /v1/vault/flush
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceFlush(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

// GET /v1/currency/units?amount=133
func (s *Server) handleToUnits(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "bad_request",
				"message": "invalid amount",
			},
		})
		return
	}
	units, err := s.engine.ToUnits(amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"units": units})
}

// POST /v1/currency/amount
func (s *Server) handleFromUnits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Units []currency.Unit `json:"units"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := s.engine.FromUnits(req.Units)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}
