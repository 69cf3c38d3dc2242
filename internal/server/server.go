package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"openjournal/internal/catalog"
	"openjournal/internal/config"
	"openjournal/internal/identity"
	"openjournal/internal/submission"
	"openjournal/internal/util"
	"openjournal/internal/workflow"
	"openjournal/pkg/domain"
	"openjournal/pkg/store"
)

var validate = validator.New()

// Config wires required dependencies for the HTTP server.
type Config struct {
	Identity       *identity.Service
	Submissions    *submission.Service
	Workflow       *workflow.Service
	Catalog        *catalog.Service
	Sessions       store.SessionStore
	MaxUploadBytes int64
}

// Server exposes the HTTP endpoints of the journal platform.
type Server struct {
	identity       *identity.Service
	submissions    *submission.Service
	workflow       *workflow.Service
	catalog        *catalog.Service
	sessions       store.SessionStore
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = config.DefaultMaxUploadBytes
	}
	s := &Server{
		identity:       cfg.Identity,
		submissions:    cfg.Submissions,
		workflow:       cfg.Workflow,
		catalog:        cfg.Catalog,
		sessions:       cfg.Sessions,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.Handle("/auth/me", s.authenticated(s.handleMe))

	// submissions
	s.mux.Handle("/submissions", s.authenticated(s.handleSubmissions))
	s.mux.Handle("/submissions/", s.authenticated(s.handleSubmissionByID))

	// public catalog
	s.mux.HandleFunc("/sections", s.handleSections)
	s.mux.HandleFunc("/issues/current", s.handleCurrentIssue)
	s.mux.HandleFunc("/articles", s.handleArticles)
	s.mux.HandleFunc("/articles/", s.handleArticleByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	userID, ok, err := s.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return s.identity.UserByID(userID)
}

// auth handlers

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Affiliation     string `json:"affiliation"`
	Country         string `json:"country"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email, password, first name and last name are required")
		return
	}
	user, err := s.identity.Register(identity.Registration{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Affiliation:     req.Affiliation,
		Country:         req.Country,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, identity.ErrEmailAlreadyExists) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := s.identity.Authenticate(req.Email, req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, identity.ErrInactiveAccount) {
			status = http.StatusForbidden
		}
		writeError(w, status, err.Error())
		return
	}
	token, err := s.sessions.NewSession(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.sessions.DeleteSession(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// submission handlers

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSubmission(w, r, user)
	case http.MethodGet:
		s.handleListSubmissions(w, user)
	default:
		methodNotAllowed(w)
	}
}

// /submissions/{id}, /submissions/{id}/file or /submissions/{id}/transition
func (s *Server) handleSubmissionByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/submissions/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "file":
			s.handleSubmissionFile(w, r, user, id)
		case "transition":
			s.handleTransition(w, r, user, id)
		default:
			notFound(w, "not found")
		}
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleGetSubmission(w, user, id)
	case http.MethodPut:
		s.handleUpdateSubmission(w, r, user, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request, user domain.User) {
	draft, up, ok := s.submissionForm(w, r)
	if !ok {
		return
	}
	defer closeUpload(up)
	sub, err := s.submissions.Create(user, draft, up)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	draft, up, ok := s.submissionForm(w, r)
	if !ok {
		return
	}
	defer closeUpload(up)
	sub, err := s.submissions.Update(user, id, draft, up)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// submissionForm parses the multipart payload shared by create and update.
// The manuscript file is optional (field: file).
func (s *Server) submissionForm(w http.ResponseWriter, r *http.Request) (submission.Draft, *submission.Upload, bool) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return submission.Draft{}, nil, false
	}
	draft := submission.Draft{
		Title:        r.FormValue("title"),
		Abstract:     r.FormValue("abstract"),
		Language:     r.FormValue("language"),
		CoauthorText: r.FormValue("coauthors"),
	}
	if v := strings.TrimSpace(r.FormValue("keywords")); v != "" {
		for _, kw := range strings.Split(v, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				draft.Keywords = append(draft.Keywords, kw)
			}
		}
	}
	if v := strings.TrimSpace(r.FormValue("sectionId")); v != "" {
		draft.SectionID = &v
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return draft, nil, true
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return submission.Draft{}, nil, false
	}
	up := &submission.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Reader:   file,
		Size:     header.Size,
	}
	return draft, up, true
}

func closeUpload(up *submission.Upload) {
	if up == nil {
		return
	}
	if closer, ok := up.Reader.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, user domain.User) {
	subs, err := s.submissions.List(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": subs,
		"count": len(subs),
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, user domain.User, id string) {
	sub, coauthors, err := s.submissions.GetForEdit(user, id)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submission": sub,
		"coauthors":  coauthors,
	})
}

// handleSubmissionFile returns a pre-signed download URL for the manuscript.
func (s *Server) handleSubmissionFile(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, filename, err := s.submissions.FileDownloadURL(user, id)
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":      url,
		"filename": filename,
	})
}

type transitionRequest struct {
	Status  string `json:"status" validate:"required"`
	IssueID string `json:"issueId"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	target, ok := parseSubmissionStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	sub, err := s.workflow.Transition(user, id, target, req.IssueID)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden")
		case errors.Is(err, workflow.ErrNotFound):
			notFound(w, "submission not found")
		case errors.Is(err, workflow.ErrInvalidTransition),
			errors.Is(err, workflow.ErrIssueRequired),
			errors.Is(err, workflow.ErrIssueNotFound):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// catalog handlers

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sections, err := s.catalog.ActiveSections()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": sections,
		"count": len(sections),
	})
}

func (s *Server) handleCurrentIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	issue, err := s.catalog.CurrentIssue()
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			notFound(w, "no current issue")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	articles, err := s.catalog.RecentArticles(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": articles,
		"count": len(articles),
	})
}

func (s *Server) handleArticleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/articles/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	article, err := s.catalog.ArticleByID(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			notFound(w, "article not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func writeSubmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, submission.ErrNotFound):
		notFound(w, "submission not found")
	case errors.Is(err, submission.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, submission.ErrTitleRequired),
		errors.Is(err, submission.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, submission.ErrNoFile):
		notFound(w, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseSubmissionStatus(status string) (domain.SubmissionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(domain.StatusSubmitted):
		return domain.StatusSubmitted, true
	case string(domain.StatusUnderReview):
		return domain.StatusUnderReview, true
	case string(domain.StatusAccepted):
		return domain.StatusAccepted, true
	case string(domain.StatusRejected):
		return domain.StatusRejected, true
	case string(domain.StatusPublished):
		return domain.StatusPublished, true
	default:
		return "", false
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case strings.Contains(message, "incorrect email"):
		return "AUTH_INVALID_CREDENTIALS"
	case strings.Contains(message, "inactive"):
		return "AUTH_ACCOUNT_INACTIVE"
	case strings.Contains(message, "already registered"):
		return "AUTH_EMAIL_TAKEN"
	case message == "forbidden":
		return "SUBMISSION_FORBIDDEN"
	case message == "submission not found":
		return "SUBMISSION_NOT_FOUND"
	case strings.Contains(message, "unsupported file type"):
		return "SUBMISSION_UNSUPPORTED_FILE_TYPE"
	case strings.Contains(message, "title is required"):
		return "SUBMISSION_TITLE_REQUIRED"
	case strings.Contains(message, "invalid status transition"):
		return "WORKFLOW_INVALID_TRANSITION"
	case strings.Contains(message, "requires an issue"):
		return "WORKFLOW_ISSUE_REQUIRED"
	case message == "issue not found":
		return "WORKFLOW_ISSUE_NOT_FOUND"
	case message == "article not found":
		return "CATALOG_ARTICLE_NOT_FOUND"
	case message == "no current issue":
		return "CATALOG_NO_CURRENT_ISSUE"
	case message == "invalid form data":
		return "REQUEST_INVALID_FORM"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "SUBMISSION_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "REQUEST_CONFLICT"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
