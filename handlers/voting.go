// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/factcheck-votes/auth"
	"github.com/danielhkuo/factcheck-votes/cliparse"
	"github.com/danielhkuo/factcheck-votes/middleware"
	"github.com/danielhkuo/factcheck-votes/models"
	"github.com/danielhkuo/factcheck-votes/voting"
)

type VotingHandler struct {
	svc *voting.Service
	cfg cliparse.Config
}

func NewVotingHandler(svc *voting.Service, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{svc: svc, cfg: cfg}
}

// SubmitVote handles POST /items/{id}/votes
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if itemID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "item id is required")
		return
	}

	voterID, err := auth.VoterFromRequest(r, h.cfg.VoterTokenSalt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Parse request
	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := models.Validate(req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, `value must be "up" or "down"`)
		return
	}

	res, err := h.svc.SubmitVote(r.Context(), voterID, itemID, req.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, voteResponse(res))
}

// DeleteVote handles DELETE /items/{id}/votes
func (h *VotingHandler) DeleteVote(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if itemID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "item id is required")
		return
	}

	voterID, err := auth.VoterFromRequest(r, h.cfg.VoterTokenSalt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.svc.DeleteVote(r.Context(), voterID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, voteResponse(res))
}

// GetUserVote handles GET /items/{id}/votes/me
func (h *VotingHandler) GetUserVote(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if itemID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "item id is required")
		return
	}

	voterID, err := auth.VoterFromRequest(r, h.cfg.VoterTokenSalt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	v, err := h.svc.GetUserVote(r.Context(), voterID, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.UserVoteResponse{Value: votePtr(v)})
}

// GetStats handles GET /items/{id}/stats
// Store failures come back as 200 with degraded counts; only a bad id is a 400
func (h *VotingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if err := voting.ValidateItemID(itemID); err != nil {
		writeServiceError(w, err)
		return
	}

	res := h.svc.GetStats(r.Context(), itemID)
	if res.Status == voting.StatusDegraded {
		w.Header().Set("X-Stats-Degraded", "true")
	}

	middleware.JSONResponse(w, http.StatusOK, res.Stats)
}

// GetStatsBatch handles GET /stats?ids=a,b,c
func (h *VotingHandler) GetStatsBatch(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	stats, err := h.svc.GetStatsBatch(r.Context(), ids)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.StatsBatchResponse{Items: stats})
}

func voteResponse(res voting.SubmitResult) models.VoteResponse {
	return models.VoteResponse{
		Success:   true,
		Action:    res.Action,
		Vote:      votePtr(res.Vote),
		Aggregate: res.Stats,
	}
}

// votePtr maps "no vote" to JSON null
func votePtr(v models.Vote) *models.Vote {
	if v == models.VoteNone {
		return nil
	}
	return &v
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, voting.ErrValidation):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAuthRequired):
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-Token header required")
	case errors.Is(err, auth.ErrInvalidToken):
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid voter token")
	case errors.Is(err, voting.ErrStoreUnavailable):
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Vote store unavailable, try again")
	default:
		slog.Error("unhandled vote error", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}
