package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/oacdarts/tournament-engine/services"
)

type RatingHandler struct {
	ratingService services.RatingService
}

func NewRatingHandler(ratingService services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

func (h *RatingHandler) GetPlayerRatingHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.ratingService.GetPlayerRating(r.Context(), playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player_rating": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RatingHandler) ReplayPlayerHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var asOfYear *int
	if raw := r.URL.Query().Get("as_of_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid as_of_year %q", raw))
			return
		}
		asOfYear = &year
	}

	result, err := h.ratingService.ReplayPlayer(r.Context(), playerID, asOfYear)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"replay": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RatingHandler) ReplayAllHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.ratingService.ReplayAll(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"replay": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
