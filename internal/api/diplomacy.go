package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// ─── Diplomacy Handlers ─────────────────────────────────────────────────────

type relationRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	GuildID uuid.UUID `json:"guild_id"`
	OtherID uuid.UUID `json:"other_guild_id"`
	Accept  bool      `json:"accept,omitempty"`
}

// POST /v1/relations/request
func (s *Server) handleRequestAlliance(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rel, err := s.engine.RequestAlliance(req.ActorID, req.GuildID, req.OtherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// POST /v1/relations/respond
func (s *Server) handleRespondAlliance(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rel, err := s.engine.RespondAlliance(req.ActorID, req.GuildID, req.OtherID, req.Accept)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// POST /v1/relations/cancel
func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.CancelRequest(req.ActorID, req.GuildID, req.OtherID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// POST /v1/relations/break
func (s *Server) handleBreakAlliance(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.BreakAlliance(req.ActorID, req.GuildID, req.OtherID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broken"})
}

// GET /v1/relations/{guildA}/{guildB}
func (s *Server) handleRelationType(w http.ResponseWriter, r *http.Request) {
	a, ok := pathUUID(w, r, "guildA")
	if !ok {
		return
	}
	b, ok := pathUUID(w, r, "guildB")
	if !ok {
		return
	}
	typ, err := s.engine.RelationType(a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"type": string(typ)})
}

type warRequest struct {
	ActorID    uuid.UUID `json:"actor_id"`
	GuildID    uuid.UUID `json:"guild_id"`
	DefenderID uuid.UUID `json:"defender_guild_id,omitempty"`
}

// POST /v1/wars/declare
func (s *Server) handleDeclareWar(w http.ResponseWriter, r *http.Request) {
	var req warRequest
	if !decodeBody(w, r, &req) {
		return
	}
	war, err := s.engine.DeclareWar(req.ActorID, req.GuildID, req.DefenderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, war)
}

// POST /v1/wars/{warID}/surrender
func (s *Server) handleSurrender(w http.ResponseWriter, r *http.Request) {
	s.warAction(w, r, s.engine.Surrender)
}

// POST /v1/wars/{warID}/peace/propose
func (s *Server) handleProposePeace(w http.ResponseWriter, r *http.Request) {
	s.warAction(w, r, s.engine.ProposePeace)
}

// POST /v1/wars/{warID}/peace/accept
func (s *Server) handleAcceptPeace(w http.ResponseWriter, r *http.Request) {
	s.warAction(w, r, s.engine.AcceptPeace)
}

// POST /v1/wars/{warID}/peace/reject
func (s *Server) handleRejectPeace(w http.ResponseWriter, r *http.Request) {
	s.warAction(w, r, s.engine.RejectPeace)
}

// warAction handles the shared shape of the war sub-resource endpoints:
// parse the war id, decode the acting guild, run the transition.
func (s *Server) warAction(w http.ResponseWriter, r *http.Request,
	action func(actorID, guildID, warID uuid.UUID) (domain.War, error)) {
	warID, ok := pathUUID(w, r, "warID")
	if !ok {
		return
	}
	var req warRequest
	if !decodeBody(w, r, &req) {
		return
	}
	war, err := action(req.ActorID, req.GuildID, warID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, war)
}

// GET /v1/guilds/{guildID}/relations
func (s *Server) handleRelationsFor(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	rels, err := s.engine.RelationsFor(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"relations": rels})
}

// GET /v1/guilds/{guildID}/relations/pending
func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	pending, err := s.engine.PendingRequestsFor(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
}

// GET /v1/guilds/{guildID}/wars
func (s *Server) handleActiveWars(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	wars, err := s.engine.ActiveWars(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"wars": wars})
}

// GET /v1/guilds/{guildID}/wars/history?limit=20
func (s *Server) handleWarHistory(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	history, err := s.engine.WarHistory(guildID, queryLimit(r, 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"wars": history})
}

// GET /v1/guilds/{guildID}/wars/ratio
func (s *Server) handleWinLossRatio(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	ratio, err := s.engine.WinLossRatio(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"ratio": ratio})
}

// POST /v1/sweep/wars
func (s *Server) handleSweepWars(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.SweepWars(s.engine.Clock().Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// POST /v1/sweep/parties
func (s *Server) handleSweepParties(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.SweepParties(s.engine.Clock().Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// DELETE /v1/guilds/{guildID}
func (s *Server) handleGuildDeleted(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	if err := s.engine.OnGuildDeleted(guildID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
