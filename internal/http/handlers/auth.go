package handlers

import (
	"io"
	"net/http"
	"strings"

	"stageportal/internal/app"
	"stageportal/internal/domain/user"
	"stageportal/internal/http/response"
	"stageportal/internal/storage"
)

type AuthHandler struct {
	auth *app.AuthService
}

func NewAuthHandler(auth *app.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	Email         string `json:"email"`
	MotDePasse    string `json:"motDePasse"`
	Telephone     string `json:"telephone"`
	Adresse       string `json:"adresse"`
	Etablissement string `json:"etablissement"`
	Domaine       string `json:"domaine"`
	Niveau        string `json:"niveau"`
}

type registerResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type loginRequest struct {
	Email      string `json:"email"`
	MotDePasse string `json:"motDePasse"`
}

type profileResponse struct {
	ID            int64  `json:"id"`
	Role          string `json:"role"`
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom,omitempty"`
	Email         string `json:"email"`
	Etablissement string `json:"etablissement,omitempty"`
	Domaine       string `json:"domaine,omitempty"`
	Niveau        string `json:"niveau,omitempty"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	User      profileResponse  `json:"user"`
	Admin     *profileResponse `json:"admin,omitempty"`
	ExpiresIn int64            `json:"expiresIn"`
	ExpiresAt string           `json:"expiresAt"`
}

// Register accepts either a multipart form, optionally carrying cv and
// lettre files, or a JSON body.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var (
		req        registerRequest
		cv, lettre *storage.Upload
	)
	if isMultipart(r) {
		cleanup, err := parseMultipart(r)
		if err != nil {
			response.Error(w, err)
			return
		}
		defer cleanup()
		req = registerRequest{
			Nom:           r.FormValue("nom"),
			Prenom:        r.FormValue("prenom"),
			Email:         r.FormValue("email"),
			MotDePasse:    r.FormValue("motDePasse"),
			Telephone:     r.FormValue("telephone"),
			Adresse:       r.FormValue("adresse"),
			Etablissement: r.FormValue("etablissement"),
			Domaine:       r.FormValue("domaine"),
			Niveau:        r.FormValue("niveau"),
		}
		var cvFile, lettreFile io.Closer
		cv, cvFile, err = formUpload(r, "cv")
		if err != nil {
			response.Error(w, err)
			return
		}
		defer closeAll(cvFile)
		lettre, lettreFile, err = formUpload(r, "lettre")
		if err != nil {
			response.Error(w, err)
			return
		}
		defer closeAll(lettreFile)
	} else if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	created, err := h.auth.Register(r.Context(), app.RegisterInput{
		Nom:           req.Nom,
		Prenom:        req.Prenom,
		Email:         req.Email,
		Password:      req.MotDePasse,
		Telephone:     req.Telephone,
		Adresse:       req.Adresse,
		Etablissement: req.Etablissement,
		Domaine:       req.Domaine,
		Niveau:        req.Niveau,
	}, cv, lettre)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, registerResponse{Message: "Inscription réussie", ID: created.ID})
}

func (h *AuthHandler) LoginCandidate(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, user.RoleCandidate)
}

func (h *AuthHandler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, user.RoleAdmin)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, role user.Role) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	session, err := h.auth.Login(r.Context(), strings.TrimSpace(req.Email), req.MotDePasse, role)
	if err != nil {
		response.Error(w, err)
		return
	}
	profile := toProfileResponse(session.Profile)
	resp := loginResponse{
		Token:     session.Token,
		User:      profile,
		ExpiresIn: int64(session.TTL.Seconds()),
		ExpiresAt: session.ExpiresAt.UTC().Format(timeLayout),
	}
	if role == user.RoleAdmin {
		resp.Admin = &profile
	}
	response.JSON(w, http.StatusOK, resp)
}

func toProfileResponse(p app.Profile) profileResponse {
	return profileResponse{
		ID:            p.ID,
		Role:          string(p.Role),
		Nom:           p.Nom,
		Prenom:        p.Prenom,
		Email:         p.Email,
		Etablissement: p.Etablissement,
		Domaine:       p.Domaine,
		Niveau:        p.Niveau,
	}
}
