package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"openjournal/internal/catalog"
	"openjournal/internal/identity"
	"openjournal/internal/submission"
	"openjournal/internal/util"
	"openjournal/internal/workflow"
	"openjournal/pkg/auth"
	"openjournal/pkg/domain"
	"openjournal/pkg/storage"
	"openjournal/pkg/store"
)

type env struct {
	store   *store.MemoryStore
	objects *storage.MemoryObjectStore
	ts      *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	objects := storage.NewMemoryObjectStore()
	sessions := store.NewMemorySessionStore(time.Hour)
	srv := New(Config{
		Identity:    identity.New(st),
		Submissions: submission.New(st, objects),
		Workflow:    workflow.New(st),
		Catalog:     catalog.New(st),
		Sessions:    sessions,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &env{store: st, objects: objects, ts: ts}
}

func (e *env) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (e *env) doJSON(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return e.do(t, method, path, token, bytes.NewReader(data), "application/json")
}

func (e *env) register(t *testing.T, email string) {
	t.Helper()
	resp, body := e.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":           email,
		"password":        "secret1",
		"confirmPassword": "secret1",
		"firstName":       "Test",
		"lastName":        "User",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", email, resp.StatusCode, body)
	}
}

func (e *env) login(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, resp.StatusCode, body)
	}
	var ar authResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if ar.Token == "" {
		t.Fatalf("login returned empty token")
	}
	return ar.Token
}

// seedEditor creates a staff account directly in the store. Registration
// only produces authors.
func (e *env) seedEditor(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	editor := domain.User{
		ID:           util.NewID(),
		Email:        "editor@example.org",
		PasswordHash: hash,
		FirstName:    "Ed",
		LastName:     "Itor",
		Role:         domain.RoleEditor,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateUser(editor); err != nil {
		t.Fatalf("create editor: %v", err)
	}
	return e.login(t, "editor@example.org")
}

func manuscriptForm(t *testing.T, fields map[string]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("manuscript body")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestRegisterLoginMe(t *testing.T) {
	e := newEnv(t)
	e.register(t, "author@example.org")
	token := e.login(t, "author@example.org")

	resp, body := e.do(t, http.MethodGet, "/auth/me", token, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d: %s", resp.StatusCode, body)
	}
	var me domain.User
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "author@example.org" {
		t.Fatalf("me email = %q", me.Email)
	}
	if strings.Contains(string(body), "passwordHash") {
		t.Fatalf("password hash leaked in response")
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	e := newEnv(t)
	e.register(t, "author@example.org")
	token := e.login(t, "author@example.org")

	if resp, body := e.do(t, http.MethodPost, "/auth/logout", token, nil, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d: %s", resp.StatusCode, body)
	}
	if resp, _ := e.do(t, http.MethodGet, "/auth/me", token, nil, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d, want 401", resp.StatusCode)
	}
}

func TestSubmissionsRequireAuth(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/submissions", "", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestCreateAndFetchSubmission(t *testing.T) {
	e := newEnv(t)
	e.register(t, "author@example.org")
	token := e.login(t, "author@example.org")

	form, contentType := manuscriptForm(t, map[string]string{
		"title":     "A Study of Things",
		"abstract":  "We study things.",
		"keywords":  "things, studies",
		"coauthors": "co@example.org",
	}, "paper.pdf")
	resp, body := e.do(t, http.MethodPost, "/submissions", token, form, contentType)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d: %s", resp.StatusCode, body)
	}
	var sub domain.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	if sub.Status != domain.StatusSubmitted {
		t.Fatalf("status = %q, want submitted", sub.Status)
	}
	if sub.FileID == nil {
		t.Fatalf("file reference not set")
	}
	if e.objects.Len() != 1 {
		t.Fatalf("object count = %d, want 1", e.objects.Len())
	}

	resp, body = e.do(t, http.MethodGet, "/submissions/"+sub.ID, token, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d: %s", resp.StatusCode, body)
	}
	var got struct {
		Coauthors string `json:"coauthors"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if got.Coauthors != "co@example.org" {
		t.Fatalf("coauthors = %q", got.Coauthors)
	}
}

func TestCreateRejectsBadExtension(t *testing.T) {
	e := newEnv(t)
	e.register(t, "author@example.org")
	token := e.login(t, "author@example.org")

	form, contentType := manuscriptForm(t, map[string]string{"title": "Bad File"}, "paper.exe")
	resp, body := e.do(t, http.MethodPost, "/submissions", token, form, contentType)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "SUBMISSION_UNSUPPORTED_FILE_TYPE") {
		t.Fatalf("unexpected error payload: %s", body)
	}
	if e.objects.Len() != 0 {
		t.Fatalf("rejected upload reached object storage")
	}
}

func TestUpdateByOtherAuthorForbidden(t *testing.T) {
	e := newEnv(t)
	e.register(t, "owner@example.org")
	e.register(t, "other@example.org")
	ownerToken := e.login(t, "owner@example.org")
	otherToken := e.login(t, "other@example.org")

	form, contentType := manuscriptForm(t, map[string]string{"title": "Mine"}, "")
	resp, body := e.do(t, http.MethodPost, "/submissions", ownerToken, form, contentType)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d: %s", resp.StatusCode, body)
	}
	var sub domain.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}

	form, contentType = manuscriptForm(t, map[string]string{"title": "Not Yours"}, "")
	resp, _ = e.do(t, http.MethodPut, "/submissions/"+sub.ID, otherToken, form, contentType)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", resp.StatusCode)
	}
}

func TestTransitionAndCatalog(t *testing.T) {
	e := newEnv(t)
	e.register(t, "author@example.org")
	authorToken := e.login(t, "author@example.org")
	editorToken := e.seedEditor(t)

	issue := domain.Issue{ID: util.NewID(), Volume: 1, Number: 1, Year: 2026, Current: true, Status: domain.IssuePublished}
	if err := e.store.SaveIssue(issue); err != nil {
		t.Fatalf("save issue: %v", err)
	}

	form, contentType := manuscriptForm(t, map[string]string{"title": "Catalog Bound"}, "")
	resp, body := e.do(t, http.MethodPost, "/submissions", authorToken, form, contentType)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d: %s", resp.StatusCode, body)
	}
	var sub domain.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Authors may not drive the workflow.
	resp, _ = e.doJSON(t, http.MethodPost, "/submissions/"+sub.ID+"/transition", authorToken, map[string]string{"status": "under_review"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("author transition: status %d, want 403", resp.StatusCode)
	}

	// Unpublished work stays out of the catalog.
	if resp, _ := e.do(t, http.MethodGet, "/articles/"+sub.ID, "", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("article before publish: status %d, want 404", resp.StatusCode)
	}

	steps := []map[string]string{
		{"status": "under_review"},
		{"status": "accepted"},
		{"status": "published", "issueId": issue.ID},
	}
	for _, step := range steps {
		resp, body = e.doJSON(t, http.MethodPost, "/submissions/"+sub.ID+"/transition", editorToken, step)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition %v: status %d: %s", step, resp.StatusCode, body)
		}
	}

	// Skipping back is a conflict.
	resp, body = e.doJSON(t, http.MethodPost, "/submissions/"+sub.ID+"/transition", editorToken, map[string]string{"status": "published", "issueId": issue.ID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double publish: status %d, want 409: %s", resp.StatusCode, body)
	}

	resp, body = e.do(t, http.MethodGet, "/articles/"+sub.ID, "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("article after publish: status %d: %s", resp.StatusCode, body)
	}
	var article domain.Article
	if err := json.Unmarshal(body, &article); err != nil {
		t.Fatalf("decode article: %v", err)
	}
	if article.Issue == nil || article.Issue.ID != issue.ID {
		t.Fatalf("article issue missing: %s", body)
	}

	resp, body = e.do(t, http.MethodGet, "/issues/current", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current issue: status %d: %s", resp.StatusCode, body)
	}
}

func TestErrorPayloadCarriesRequestID(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/submissions", "", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if er.Code != "AUTH_INVALID_TOKEN" {
		t.Fatalf("code = %q", er.Code)
	}
	if er.RequestID == "" {
		t.Fatalf("error payload missing request id")
	}
	if got := resp.Header.Get("X-Request-Id"); got != er.RequestID {
		t.Fatalf("header request id %q != payload %q", got, er.RequestID)
	}
}

func TestMethodChecks(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/auth/register", "/auth/login", "/auth/logout"} {
		resp, _ := e.do(t, http.MethodGet, path, "", nil, "")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s: status %d, want 405", path, resp.StatusCode)
		}
	}
	resp, _ := e.do(t, http.MethodDelete, "/articles", "", nil, "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /articles: status %d, want 405", resp.StatusCode)
	}
}

func TestSectionsEndpoint(t *testing.T) {
	e := newEnv(t)
	for i, title := range []string{"Articles", "Reviews"} {
		section := domain.Section{ID: util.NewID(), Title: title, Active: true, SortOrder: i + 1}
		if err := e.store.SaveSection(section); err != nil {
			t.Fatalf("save section: %v", err)
		}
	}
	resp, body := e.do(t, http.MethodGet, "/sections", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sections: status %d: %s", resp.StatusCode, body)
	}
	var got struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode sections: %v", err)
	}
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	e := newEnv(t)
	e.register(t, "author@example.org")
	resp, body := e.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":           "author@example.org",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"firstName":       "Test",
		"lastName":        "User",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "AUTH_EMAIL_TAKEN") {
		t.Fatalf("unexpected payload: %s", body)
	}
}
