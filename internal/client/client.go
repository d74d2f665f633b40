package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

// APIError is a non-2xx answer from the portal API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *HTTPClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{baseURL: trimmed, httpClient: httpClient}
}

// WithToken returns a copy of the client that authenticates as token.
func (c *HTTPClient) WithToken(token string) *HTTPClient {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

type Profile struct {
	ID            int64  `json:"id"`
	Role          string `json:"role"`
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom,omitempty"`
	Email         string `json:"email"`
	Etablissement string `json:"etablissement,omitempty"`
	Domaine       string `json:"domaine,omitempty"`
	Niveau        string `json:"niveau,omitempty"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	User      Profile   `json:"user"`
	ExpiresIn int64     `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Registration struct {
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	Email         string `json:"email"`
	MotDePasse    string `json:"motDePasse"`
	Telephone     string `json:"telephone,omitempty"`
	Adresse       string `json:"adresse,omitempty"`
	Etablissement string `json:"etablissement"`
	Domaine       string `json:"domaine"`
	Niveau        string `json:"niveau"`
	CVPath        string `json:"-"`
	LettrePath    string `json:"-"`
}

type Submission struct {
	Domaine       string
	Etablissement string
	Niveau        string
	Description   string
	CVPath        string
	LettrePath    string
}

type Application struct {
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

type ReviewItem struct {
	Application
	IDCandidat int64  `json:"idCandidat"`
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	Email      string `json:"email"`
	Telephone  string `json:"telephone"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type ReviewPage struct {
	Demandes   []ReviewItem `json:"demandes"`
	Pagination Pagination   `json:"pagination"`
}

type ReviewQuery struct {
	Statut  string
	Domaine string
	Page    int
	Limit   int
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (c *HTTPClient) Register(ctx context.Context, reg Registration) (int64, error) {
	var (
		body        io.Reader
		contentType string
		err         error
	)
	if reg.CVPath != "" || reg.LettrePath != "" {
		fields := map[string]string{
			"nom":           reg.Nom,
			"prenom":        reg.Prenom,
			"email":         reg.Email,
			"motDePasse":    reg.MotDePasse,
			"telephone":     reg.Telephone,
			"adresse":       reg.Adresse,
			"etablissement": reg.Etablissement,
			"domaine":       reg.Domaine,
			"niveau":        reg.Niveau,
		}
		body, contentType, err = multipartForm(fields, map[string]string{"cv": reg.CVPath, "lettre": reg.LettrePath})
	} else {
		body, contentType, err = jsonBody(reg)
	}
	if err != nil {
		return 0, err
	}
	var parsed struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/candidat/inscription", body, contentType, &parsed); err != nil {
		return 0, err
	}
	return parsed.ID, nil
}

// Login authenticates against the candidate or admin namespace.
func (c *HTTPClient) Login(ctx context.Context, role, email, password string) (*LoginResult, error) {
	path := "/candidat/login"
	if role == "admin" {
		path = "/admin/login"
	}
	body, contentType, err := jsonBody(map[string]string{"email": email, "motDePasse": password})
	if err != nil {
		return nil, err
	}
	var parsed LoginResult
	if err := c.do(ctx, http.MethodPost, path, body, contentType, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *HTTPClient) Submit(ctx context.Context, sub Submission) (int64, error) {
	if sub.CVPath == "" || sub.LettrePath == "" {
		return 0, fmt.Errorf("%w: cv and lettre files are required", ErrBadRequest)
	}
	body, contentType, err := multipartForm(map[string]string{
		"domaine":       sub.Domaine,
		"etablissement": sub.Etablissement,
		"niveau":        sub.Niveau,
		"description":   sub.Description,
	}, map[string]string{"cv": sub.CVPath, "lettre": sub.LettrePath})
	if err != nil {
		return 0, err
	}
	var parsed struct {
		IDDemande int64 `json:"idDemande"`
	}
	if err := c.do(ctx, http.MethodPost, "/demande", body, contentType, &parsed); err != nil {
		return 0, err
	}
	return parsed.IDDemande, nil
}

func (c *HTTPClient) MyApplications(ctx context.Context) ([]Application, error) {
	var parsed []Application
	if err := c.do(ctx, http.MethodGet, "/candidat/demandes", nil, "", &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (c *HTTPClient) ReviewList(ctx context.Context, query ReviewQuery) (*ReviewPage, error) {
	values := url.Values{}
	if query.Statut != "" {
		values.Set("statut", query.Statut)
	}
	if query.Domaine != "" {
		values.Set("domaine", query.Domaine)
	}
	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	path := "/admin/demandes"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var parsed ReviewPage
	if err := c.do(ctx, http.MethodGet, path, nil, "", &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *HTTPClient) Decide(ctx context.Context, id int64, decision, reason string) error {
	body, contentType, err := jsonBody(map[string]string{"decisionRH": decision, "motifRejet": reason})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/admin/demandes/"+strconv.FormatInt(id, 10), body, contentType, nil)
}

// Download copies the referenced document into w. ref may be a bare file
// name or a /uploads/ URL as returned in application listings.
func (c *HTTPClient) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	name := strings.TrimPrefix(strings.TrimSpace(ref), "/uploads/")
	if name == "" || strings.Contains(name, "/") {
		return 0, fmt.Errorf("%w: invalid document reference %q", ErrBadRequest, ref)
	}
	resp, err := c.send(ctx, http.MethodGet, "/uploads/"+url.PathEscape(name), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return 0, mapError(resp.StatusCode, payload)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read document: %w", err)
	}
	return n, nil
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, errors.New("api base url is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, dst interface{}) error {
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapError(resp.StatusCode, payload)
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mapError(status int, payload []byte) error {
	apiErr := &APIError{Status: status}
	var parsed errorResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		apiErr.Message = strings.TrimSpace(string(payload))
		return apiErr
	}
	apiErr.Code = parsed.Error
	apiErr.Message = parsed.Message
	apiErr.Fields = parsed.Fields
	return apiErr
}

func jsonBody(payload interface{}) (io.Reader, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(body), "application/json", nil
}

// multipartForm buffers the form in memory; documents are capped server side.
func multipartForm(fields map[string]string, files map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	for name, path := range files {
		if path == "" {
			continue
		}
		if err := writeFilePart(writer, name, path); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, filepath.Base(path)))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create %s part: %w", name, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}
