package handlers

import (
	"net/http"
	"strings"
	"time"

	"stageportal/internal/app"
	"stageportal/internal/common"
	"stageportal/internal/domain/application"
	"stageportal/internal/http/middleware"
	"stageportal/internal/http/response"
)

const timeLayout = time.RFC3339

type ApplicationHandler struct {
	applications *app.ApplicationService
}

func NewApplicationHandler(applications *app.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

type submitResponse struct {
	Message   string `json:"message"`
	IDDemande int64  `json:"idDemande"`
}

type applicationResponse struct {
	IDDemande     int64    `json:"idDemande"`
	DateDepot     string   `json:"dateDepot"`
	Statut        string   `json:"statut"`
	DecisionRH    *string  `json:"decisionRH"`
	MotifRejet    *string  `json:"motifRejet"`
	ScoreML       *float64 `json:"scoreML"`
	ExperienceML  *int     `json:"experienceML"`
	CompetencesML []string `json:"competencesML"`
	ScoringStatus string   `json:"scoringStatus"`
	Domaine       string   `json:"domaine"`
	Etablissement string   `json:"etablissement"`
	Niveau        string   `json:"niveau"`
	Description   *string  `json:"description"`
	CVURL         string   `json:"cvUrl"`
	LettreURL     string   `json:"lettreUrl"`
}

// Submit expects a multipart form with cv and lettre PDF parts.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.ProfileFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	if !isMultipart(r) {
		response.Error(w, common.NewValidationError("multipart form is required", map[string]string{
			"cv":     "required",
			"lettre": "required",
		}))
		return
	}
	cleanup, err := parseMultipart(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer cleanup()
	cv, cvFile, err := formUpload(r, "cv")
	if err != nil {
		response.Error(w, err)
		return
	}
	defer closeAll(cvFile)
	lettre, lettreFile, err := formUpload(r, "lettre")
	if err != nil {
		response.Error(w, err)
		return
	}
	defer closeAll(lettreFile)

	created, err := h.applications.Submit(r.Context(), profile.ID, app.SubmitInput{
		Domaine:       r.FormValue("domaine"),
		Etablissement: r.FormValue("etablissement"),
		Niveau:        r.FormValue("niveau"),
		Description:   r.FormValue("description"),
	}, cv, lettre)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, submitResponse{
		Message:   "Demande soumise avec succès. Analyse en cours...",
		IDDemande: created.ID,
	})
}

func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	profile, ok := middleware.ProfileFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized())
		return
	}
	items, err := h.applications.ListForCandidate(r.Context(), profile.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	resp := make([]applicationResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toApplicationResponse(item))
	}
	response.JSON(w, http.StatusOK, resp)
}

func toApplicationResponse(a application.Application) applicationResponse {
	resp := applicationResponse{
		IDDemande:     a.ID,
		DateDepot:     a.SubmittedAt.UTC().Format(timeLayout),
		Statut:        string(a.Status),
		MotifRejet:    a.RejectReason,
		ScoreML:       a.Score,
		ExperienceML:  a.Experience,
		CompetencesML: a.Skills,
		ScoringStatus: string(a.ScoringStatus),
		Domaine:       a.Domaine,
		Etablissement: a.Etablissement,
		Niveau:        a.Niveau,
		CVURL:         documentURL(a.CVRef),
		LettreURL:     documentURL(a.LetterRef),
	}
	if a.Decision != nil {
		decision := string(*a.Decision)
		resp.DecisionRH = &decision
	}
	if resp.CompetencesML == nil {
		resp.CompetencesML = []string{}
	}
	if description := strings.TrimSpace(a.Description); description != "" {
		resp.Description = &description
	}
	return resp
}
