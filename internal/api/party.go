package api

import (
	"net/http"

	"github.com/google/uuid"
)

// ─── Party Handlers ─────────────────────────────────────────────────────────

type createPartyRequest struct {
	ActorID       uuid.UUID   `json:"actor_id"`
	LeaderGuildID uuid.UUID   `json:"leader_guild_id"`
	Name          string      `json:"name,omitempty"`
	InviteeIDs    []uuid.UUID `json:"invitee_ids,omitempty"`
}

type partyActionRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	GuildID uuid.UUID `json:"guild_id"`
}

// POST /v1/parties
func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req createPartyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	party, err := s.engine.CreateParty(req.ActorID, req.LeaderGuildID, req.Name, req.InviteeIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, party)
}

// GET /v1/parties/{partyID}
func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	partyID, ok := pathUUID(w, r, "partyID")
	if !ok {
		return
	}
	party, err := s.engine.GetParty(partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// POST /v1/parties/{partyID}/accept
func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	partyID, ok := pathUUID(w, r, "partyID")
	if !ok {
		return
	}
	var req partyActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	party, err := s.engine.AcceptInvite(req.ActorID, req.GuildID, partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// POST /v1/parties/{partyID}/decline
func (s *Server) handleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	s.partyAction(w, r, s.engine.DeclineInvite, "declined")
}

// POST /v1/parties/{partyID}/leave
func (s *Server) handleLeaveParty(w http.ResponseWriter, r *http.Request) {
	s.partyAction(w, r, s.engine.LeaveParty, "left")
}

// POST /v1/parties/{partyID}/dissolve
func (s *Server) handleDissolveParty(w http.ResponseWriter, r *http.Request) {
	s.partyAction(w, r, s.engine.DissolveParty, "dissolved")
}

func (s *Server) partyAction(w http.ResponseWriter, r *http.Request,
	action func(actorID, guildID, partyID uuid.UUID) error, status string) {
	partyID, ok := pathUUID(w, r, "partyID")
	if !ok {
		return
	}
	var req partyActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := action(req.ActorID, req.GuildID, partyID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// GET /v1/guilds/{guildID}/party
func (s *Server) handlePartyOf(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	party, err := s.engine.PartyOf(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// GET /v1/guilds/{guildID}/party-invites
func (s *Server) handlePartyInvites(w http.ResponseWriter, r *http.Request) {
	guildID, ok := pathUUID(w, r, "guildID")
	if !ok {
		return
	}
	invites, err := s.engine.PartyInvitesFor(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invites": invites})
}
