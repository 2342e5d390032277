// Package api provides the HTTP server for the guildhall engine.
// Every facade operation is exposed as a JSON endpoint under /v1.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guildforge/guildhall/internal/domain"
	"github.com/guildforge/guildhall/internal/engine"
)

// Server is the guildhall HTTP API server.
type Server struct {
	engine         *engine.Engine
	metricsEnabled bool
}

// NewServer creates a new API server over the engine facade.
func NewServer(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		// Diplomacy
		r.Post("/relations/request", s.handleRequestAlliance)
		r.Post("/relations/respond", s.handleRespondAlliance)
		r.Post("/relations/cancel", s.handleCancelRequest)
		r.Post("/relations/break", s.handleBreakAlliance)
		r.Get("/relations/{guildA}/{guildB}", s.handleRelationType)

		r.Post("/wars/declare", s.handleDeclareWar)
		r.Post("/wars/{warID}/surrender", s.handleSurrender)
		r.Post("/wars/{warID}/peace/propose", s.handleProposePeace)
		r.Post("/wars/{warID}/peace/accept", s.handleAcceptPeace)
		r.Post("/wars/{warID}/peace/reject", s.handleRejectPeace)

		// Parties
		r.Post("/parties", s.handleCreateParty)
		r.Get("/parties/{partyID}", s.handleGetParty)
		r.Post("/parties/{partyID}/accept", s.handleAcceptInvite)
		r.Post("/parties/{partyID}/decline", s.handleDeclineInvite)
		r.Post("/parties/{partyID}/leave", s.handleLeaveParty)
		r.Post("/parties/{partyID}/dissolve", s.handleDissolveParty)

		// Per-guild views and vault
		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Delete("/", s.handleGuildDeleted)
			r.Get("/relations", s.handleRelationsFor)
			r.Get("/relations/pending", s.handlePendingRequests)
			r.Get("/wars", s.handleActiveWars)
			r.Get("/wars/history", s.handleWarHistory)
			r.Get("/wars/ratio", s.handleWinLossRatio)
			r.Get("/party", s.handlePartyOf)
			r.Get("/party-invites", s.handlePartyInvites)

			r.Get("/vault", s.handleVaultAccount)
			r.Post("/vault/deposit", s.handleDeposit)
			r.Post("/vault/withdraw", s.handleWithdraw)
			r.Post("/vault/join-fee", s.handleJoinFee)
			r.Get("/vault/transactions", s.handleTransactionHistory)
			r.Get("/vault/contributions", s.handleContributions)
			r.Get("/vault/reconcile", s.handleReconcile)
		})

		r.Post("/vault/flush", s.handleFlush)
		r.Get("/currency/units", s.handleToUnits)
		r.Post("/currency/amount", s.handleFromUnits)

		r.Post("/sweep/wars", s.handleSweepWars)
		r.Post("/sweep/parties", s.handleSweepParties)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and writes the JSON
// error body. The "code" field carries the taxonomy name so callers can
// branch without parsing messages.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]interface{}{
		"error": map[string]interface{}{
			"code":    errorCode(err),
			"message": err.Error(),
		},
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrNoPendingRequest),
		errors.Is(err, domain.ErrStillAllied),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAlreadyInParty),
		errors.Is(err, domain.ErrPartyInactive),
		errors.Is(err, domain.ErrNotPartyLeader),
		errors.Is(err, domain.ErrPartyFull):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	for code, sentinel := range map[string]error{
		"not_found":          domain.ErrNotFound,
		"permission_denied":  domain.ErrPermissionDenied,
		"invalid_amount":     domain.ErrInvalidAmount,
		"invalid_state":      domain.ErrInvalidState,
		"duplicate_request":  domain.ErrDuplicateRequest,
		"no_pending_request": domain.ErrNoPendingRequest,
		"still_allied":       domain.ErrStillAllied,
		"insufficient_funds": domain.ErrInsufficientFunds,
		"already_in_party":   domain.ErrAlreadyInParty,
		"party_inactive":     domain.ErrPartyInactive,
		"not_party_leader":   domain.ErrNotPartyLeader,
		"party_full":         domain.ErrPartyFull,
	} {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}

// decodeBody parses the request JSON into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "bad_request",
				"message": "malformed JSON body",
			},
		})
		return false
	}
	return true
}

// pathUUID parses a uuid path parameter; writes a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "bad_request",
				"message": "invalid " + name,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
