package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/starford/jotter/internal/docservice"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/testutil"
)

// testEnv sets up a temp vault, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode. Requests without X-User act as alice.
func testEnv(t *testing.T, authToken string) (*docservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) (*docservice.Service, http.Handler) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := docservice.New(store, db, nil)
	router := NewRouter(svc, AuthOptions{
		Enabled:     authToken != "",
		Token:       authToken,
		DefaultUser: "alice",
		Admins:      []string{"root"},
	}, sseHandler)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetChecklist(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/checklists", "", map[string]string{"title": "Groceries", "category": "Home"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/checklists/alice/groceries?category=Home", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var c ChecklistDetail
	if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	if c.Title != "Groceries" || c.Owner != "alice" || !c.Permissions.IsOwner {
		t.Errorf("checklist = %+v perms = %+v", c.Checklist, c.Permissions)
	}
	if w.Header().Get("ETag") != `"`+c.Checksum+`"` {
		t.Errorf("etag = %q", w.Header().Get("ETag"))
	}
}

func TestCreateChecklist_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/checklists", "", map[string]string{"title": " "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/checklists", "", map[string]string{"title": "x", "type": "kanban"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad type = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/checklists", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestChecklistItemEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/checklists", "", map[string]string{"title": "Trip", "type": "task"}); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	base := "/checklists/alice/trip"

	if w := do(t, router, http.MethodPost, base+"/items", "", map[string]string{"text": "Pack"}); w.Code != http.StatusCreated {
		t.Fatalf("add = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, base+"/items", "", map[string]string{"text": "Socks", "parent": "0"}); w.Code != http.StatusCreated {
		t.Fatalf("add child = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/items", "", map[string]string{"text": "x", "status": "done"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}

	w := do(t, router, http.MethodPatch, base+"/items/0.0", "", map[string]any{"status": "in_progress", "estimatedTime": 30})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var c ChecklistDetail
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	child := c.Items[0].Children[0]
	if child.Status != models.StatusInProgress || child.EstimatedTime == nil || *child.EstimatedTime != 30 {
		t.Errorf("child = %+v", child)
	}

	w = do(t, router, http.MethodPost, base+"/items/0/toggle", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if !c.Items[0].Completed || c.Items[0].Status != models.StatusCompleted {
		t.Errorf("toggled = %+v", c.Items[0])
	}

	if w := do(t, router, http.MethodPost, base+"/items/9/toggle", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("toggle missing = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, base+"/items/0", "", nil); w.Code != http.StatusOK {
		t.Errorf("remove = %d", w.Code)
	}
}

func TestSharingEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/checklists", "", map[string]string{"title": "Plan", "category": "Work/Q3"}); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	base := "/checklists/alice/plan"
	q := "?category=" + url.QueryEscape("Work/Q3")

	if w := do(t, router, http.MethodGet, base+q, "bob", nil); w.Code != http.StatusForbidden {
		t.Errorf("bob before share = %d, want 403", w.Code)
	}

	w := do(t, router, http.MethodPost, base+"/sharing"+q, "", map[string]any{
		"bucket":      "bob",
		"permissions": map[string]bool{"canRead": true, "canEdit": true},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("share = %d, body = %s", w.Code, w.Body.String())
	}
	var info models.SharingInfo
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if !info.Exists || len(info.SharedWith) != 1 || info.SharedWith[0] != "bob" {
		t.Errorf("info = %+v", info)
	}

	if w := do(t, router, http.MethodPost, base+"/items"+q, "bob", map[string]string{"text": "from bob"}); w.Code != http.StatusCreated {
		t.Errorf("bob edit = %d, want 201", w.Code)
	}
	if w := do(t, router, http.MethodDelete, base+q, "bob", nil); w.Code != http.StatusForbidden {
		t.Errorf("bob delete = %d, want 403", w.Code)
	}
	if w := do(t, router, http.MethodGet, base+"/sharing"+q, "bob", nil); w.Code != http.StatusForbidden {
		t.Errorf("bob sharing info = %d, want 403", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/sharing"+q, "", map[string]any{"bucket": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("blank bucket = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/checklists", "bob", nil)
	var list ChecklistListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || !list.Checklists[0].IsShared {
		t.Errorf("bob's list = %+v", list)
	}

	if w := do(t, router, http.MethodDelete, base+"/sharing/bob"+q, "", nil); w.Code != http.StatusOK {
		t.Errorf("unshare = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, base+q, "bob", nil); w.Code != http.StatusForbidden {
		t.Errorf("bob after unshare = %d, want 403", w.Code)
	}
	// Without the bearer gate a header naming an admin is an ordinary user.
	if w := do(t, router, http.MethodGet, base+q, "root", nil); w.Code != http.StatusForbidden {
		t.Errorf("ungated admin read = %d, want 403", w.Code)
	}
}

func TestNoteEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", "", map[string]any{
		"title":    "Ideas",
		"category": "Work",
		"tags":     []string{"Projects/Alpha"},
		"content":  "See [[checklist:Work/plan]] #draft\n",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var n NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &n)

	// Optimistic locking: stale checksum is rejected.
	body, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/alice/ideas?category=Work", bytes.NewReader(body))
	req.Header.Set("If-Match", `"stale"`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/notes/alice/ideas?category=Work", bytes.NewReader(body))
	req.Header.Set("If-Match", `"`+n.Checksum+`"`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", rec.Code, rec.Body.String())
	}

	w = do(t, router, http.MethodGet, "/notes?tag=projects", "", nil)
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("notes tagged projects = %d", list.Total)
	}

	w = do(t, router, http.MethodGet, "/tags/"+url.PathEscape("projects/alpha")+"/notes", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("notes by tag = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("notes by tag = %d", list.Total)
	}

	if w := do(t, router, http.MethodPost, "/notes/alice/ideas/archive?category=Work", "", nil); w.Code != http.StatusOK {
		t.Errorf("archive = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/alice/ideas?category=Work", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("get archived = %d, want 404", w.Code)
	}
}

func TestLinksAndTagsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	do(t, router, http.MethodPost, "/checklists", "", map[string]string{"title": "Plan", "category": "Work"})
	do(t, router, http.MethodPost, "/notes", "", map[string]any{
		"title": "Hub", "category": "Work", "content": "[[checklist:Work/plan]] #alpha/beta\n",
	})

	w := do(t, router, http.MethodGet, "/links", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("links = %d", w.Code)
	}
	var ix models.LinkIndex
	_ = json.Unmarshal(w.Body.Bytes(), &ix)
	plan := ix.Checklists["Work/plan"]
	if plan == nil || len(plan.IsReferencedIn.Notes) != 1 || plan.IsReferencedIn.Notes[0] != "Work/hub" {
		t.Errorf("plan entry = %+v", plan)
	}

	w = do(t, router, http.MethodGet, "/checklists/alice/plan/links?category=Work", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("item links = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/tags", "", nil)
	var tags struct {
		Tags []struct {
			Name     string `json:"name"`
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"tags"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &tags)
	if len(tags.Tags) != 1 || tags.Tags[0].Name != "alpha" || len(tags.Tags[0].Children) != 1 {
		t.Errorf("tag tree = %+v", tags)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	do(t, router, http.MethodPost, "/notes", "", map[string]any{"title": "Zebra", "content": "unique zebra text"})
	do(t, router, http.MethodPost, "/notes", "bob", map[string]any{"title": "Other", "content": "zebra again"})

	w := do(t, router, http.MethodGet, "/search?q=zebra", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Ref.Owner != "alice" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/search", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGetChecklist_NotFoundAndBadPath(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/checklists/alice/nope", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/checklists/alice/.hidden", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("dot id = %d, want 400", w.Code)
	}
}

func me(t *testing.T, router http.Handler, user, token string) models.User {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/me = %d, body = %s", w.Code, w.Body.String())
	}
	var u models.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestMe(t *testing.T) {
	_, ungated := testEnv(t, "")
	if u := me(t, ungated, "root", ""); u.Name != "root" || u.IsAdmin {
		t.Errorf("ungated me = %+v, want non-admin", u)
	}

	_, gated := testEnv(t, "secret123")
	if u := me(t, gated, "root", "secret123"); u.Name != "root" || !u.IsAdmin {
		t.Errorf("gated me = %+v, want admin", u)
	}
	if u := me(t, gated, "bob", "secret123"); u.IsAdmin {
		t.Errorf("bob = %+v", u)
	}
}

func TestMe_DefaultAdmin(t *testing.T) {
	_, store := testutil.TestVault(t)
	svc := docservice.New(store, testutil.TestDB(t), nil)
	router := NewRouter(svc, AuthOptions{DefaultUser: "root", Admins: []string{"root"}}, nil)

	if u := me(t, router, "", ""); !u.IsAdmin {
		t.Errorf("configured default admin = %+v", u)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/checklists", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/checklists", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/checklists", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestIdentityMiddleware_NoUser(t *testing.T) {
	_, store := testutil.TestVault(t)
	svc := docservice.New(store, testutil.TestDB(t), nil)
	router := NewRouter(svc, AuthOptions{}, nil)

	if w := do(t, router, http.MethodGet, "/checklists", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no identity = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/checklists", "dave", nil); w.Code != http.StatusOK {
		t.Errorf("header identity = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	// Minimal SSE handler stub: writes headers and blocks until context done.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, "secret", sseStub())

	if w := do(t, router, http.MethodGet, "/events", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSubscriberOwner(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	if got := SubscriberOwner(req); got != "" {
		t.Errorf("no user = %q", got)
	}
	req = req.WithContext(WithUser(req.Context(), models.User{Name: "bob"}))
	if got := SubscriberOwner(req); got != "bob" {
		t.Errorf("bob = %q", got)
	}
	req = req.WithContext(WithUser(req.Context(), models.User{Name: "root", IsAdmin: true}))
	if got := SubscriberOwner(req); got != "" {
		t.Errorf("admin = %q", got)
	}
}
