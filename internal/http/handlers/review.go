package handlers

import (
	"net/http"

	"stageportal/internal/app"
	"stageportal/internal/domain/application"
	"stageportal/internal/http/response"
)

type ReviewHandler struct {
	reviews *app.ReviewService
}

func NewReviewHandler(reviews *app.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type reviewResponse struct {
	applicationResponse
	IDCandidat int64  `json:"idCandidat"`
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	Email      string `json:"email"`
	Telephone  string `json:"telephone"`
}

type paginationResponse struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type reviewListResponse struct {
	Demandes   []reviewResponse   `json:"demandes"`
	Pagination paginationResponse `json:"pagination"`
}

type decisionRequest struct {
	DecisionRH string `json:"decisionRH"`
	MotifRejet string `json:"motifRejet"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		response.Error(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.Error(w, err)
		return
	}
	query := r.URL.Query()
	result, err := h.reviews.List(r.Context(), app.ReviewQuery{
		Statut:  query.Get("statut"),
		Domaine: query.Get("domaine"),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	resp := reviewListResponse{
		Demandes: make([]reviewResponse, 0, len(result.Items)),
		Pagination: paginationResponse{
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
		},
	}
	for _, item := range result.Items {
		resp.Demandes = append(resp.Demandes, toReviewResponse(item))
	}
	response.JSON(w, http.StatusOK, resp)
}

func (h *ReviewHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.reviews.RecordDecision(r.Context(), id, req.DecisionRH, req.MotifRejet); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "Décision mise à jour avec succès"})
}

func toReviewResponse(item application.ReviewItem) reviewResponse {
	return reviewResponse{
		applicationResponse: toApplicationResponse(item.Application),
		IDCandidat:          item.Candidate.ID,
		Nom:                 item.Candidate.Nom,
		Prenom:              item.Candidate.Prenom,
		Email:               item.Candidate.Email,
		Telephone:           item.Candidate.Telephone,
	}
}
