package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jackma2003/JackStack/config"
	"github.com/jackma2003/JackStack/models"
	"github.com/jackma2003/JackStack/notify"
	"github.com/jackma2003/JackStack/routes"
	"github.com/jackma2003/JackStack/utils"

	"github.com/gin-gonic/gin"
)

type testEnv struct {
	router *gin.Engine
	hub    *notify.Hub
	mailer *captureMailer
}

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string // email -> last token
}

func (m *captureMailer) SendPasswordReset(email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)

	dbName := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", fmt.Sprintf("file:api_%s?mode=memory&cache=shared&_busy_timeout=10000", dbName))
	if os.Getenv("JWT_SECRET") == "" {
		t.Setenv("JWT_SECRET", "test-secret")
	}

	db := config.ConnectDB()
	err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.Comment{},
		&models.FriendRequest{},
	)
	if err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	hub := notify.NewHub()
	mailer := &captureMailer{tokens: make(map[string]string)}
	router := routes.SetupRouter(db, hub, utils.NewMemoryTokenStore(), mailer)

	return &testEnv{router: router, hub: hub, mailer: mailer}
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return out
}

// registerUser signs up a user and returns their id and bearer header.
func registerUser(t *testing.T, env *testEnv, username string) (uint, map[string]string) {
	t.Helper()

	body := map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "pass1234",
	}
	w := doRequest(t, env.router, http.MethodPost, "/api/users/register", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s status=%d body=%s", username, w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	user := resp["user"].(map[string]any)
	id := uint(user["id"].(float64))
	auth := map[string]string{"Authorization": "Bearer " + resp["token"].(string)}
	return id, auth
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	_, _ = registerUser(t, env, "jack")

	// Duplicate username/email is rejected.
	dup := map[string]any{"username": "jack", "email": "jack@example.com", "password": "pass1234"}
	w := doRequest(t, env.router, http.MethodPost, "/api/users/register", dup, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register expected 409 got=%d body=%s", w.Code, w.Body.String())
	}

	login := map[string]any{"email": "jack@example.com", "password": "pass1234"}
	w = doRequest(t, env.router, http.MethodPost, "/api/users/login", login, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["token"] == nil || resp["token"] == "" {
		t.Fatalf("expected token in response: %v", resp)
	}

	login["password"] = "wrong"
	w = doRequest(t, env.router, http.MethodPost, "/api/users/login", login, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login expected 401 got=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodGet, "/api/projects", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request expected 401 got=%d body=%s", w.Code, w.Body.String())
	}
}

func TestTasks_BoardFlow(t *testing.T) {
	env := setupTestEnv(t)

	_, ownerAuth := registerUser(t, env, "owner")
	memberID, memberAuth := registerUser(t, env, "member")
	_, outsiderAuth := registerUser(t, env, "outsider")

	w := doRequest(t, env.router, http.MethodPost, "/api/projects", map[string]any{"name": "Relaunch"}, ownerAuth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create project status=%d body=%s", w.Code, w.Body.String())
	}
	projectID := uint(decodeBody(t, w)["id"].(float64))

	w = doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/projects/%d/members", projectID),
		map[string]any{"user_id": memberID}, ownerAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("add member status=%d body=%s", w.Code, w.Body.String())
	}

	// Append law: fresh column positions 0, then 1.
	var taskIDs []uint
	for i, title := range []string{"T1", "T2"} {
		w = doRequest(t, env.router, http.MethodPost, "/api/tasks",
			map[string]any{"project_id": projectID, "title": title}, memberAuth)
		if w.Code != http.StatusCreated {
			t.Fatalf("create task %s status=%d body=%s", title, w.Code, w.Body.String())
		}
		resp := decodeBody(t, w)
		if pos := int(resp["position"].(float64)); pos != i {
			t.Fatalf("task %s position=%d want %d", title, pos, i)
		}
		taskIDs = append(taskIDs, uint(resp["id"].(float64)))
	}

	// Status patch moves to the end of "done" and compacts "todo".
	w = doRequest(t, env.router, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", taskIDs[0]),
		map[string]any{"status": "done"}, memberAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("move task status=%d body=%s", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["status"] != "done" || int(resp["position"].(float64)) != 0 {
		t.Fatalf("moved task unexpected state: %v", resp)
	}

	w = doRequest(t, env.router, http.MethodGet, fmt.Sprintf("/api/tasks/project/%d", projectID), nil, memberAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("list tasks status=%d body=%s", w.Code, w.Body.String())
	}
	var tasks []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	for _, task := range tasks {
		if task["status"] == "todo" && int(task["position"].(float64)) != 0 {
			t.Fatalf("todo column not compacted: %v", task)
		}
	}

	// Unknown patch fields are rejected, not merged.
	w = doRequest(t, env.router, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", taskIDs[1]),
		map[string]any{"position": 99}, memberAuth)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field patch expected 400 got=%d body=%s", w.Code, w.Body.String())
	}

	// Reorder into "done" at index 0 shifts the tail.
	w = doRequest(t, env.router, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/reorder", taskIDs[1]),
		map[string]any{"status": "done", "new_position": 0}, memberAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("reorder status=%d body=%s", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); int(resp["position"].(float64)) != 0 {
		t.Fatalf("reordered task unexpected position: %v", resp)
	}

	w = doRequest(t, env.router, http.MethodPost, fmt.Sprintf("/api/tasks/%d/comments", taskIDs[0]),
		map[string]any{"content": "ship it"}, ownerAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("add comment status=%d body=%s", w.Code, w.Body.String())
	}

	// Outsiders cannot see or touch the board.
	w = doRequest(t, env.router, http.MethodGet, fmt.Sprintf("/api/tasks/project/%d", projectID), nil, outsiderAuth)
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider list expected 403 got=%d body=%s", w.Code, w.Body.String())
	}

	// Owner may delete a member-created task; the column stays dense.
	w = doRequest(t, env.router, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", taskIDs[1]), nil, ownerAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("delete task status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestFriends_Flow(t *testing.T) {
	env := setupTestEnv(t)

	_, xAuth := registerUser(t, env, "xavier")
	yID, yAuth := registerUser(t, env, "yolanda")

	// Receiver subscribed to notifications sees the request event.
	events, cancel := env.hub.Subscribe(yID)
	defer cancel()

	w := doRequest(t, env.router, http.MethodPost, "/api/friends/request",
		map[string]any{"receiver_id": yID}, xAuth)
	if w.Code != http.StatusCreated {
		t.Fatalf("send request status=%d body=%s", w.Code, w.Body.String())
	}

	select {
	case ev := <-events:
		if ev.Name != "friendRequest" {
			t.Fatalf("event name=%q want friendRequest", ev.Name)
		}
	default:
		t.Fatal("no friendRequest event delivered")
	}

	w = doRequest(t, env.router, http.MethodPost, "/api/friends/request",
		map[string]any{"receiver_id": yID}, xAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate request expected 409 got=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodGet, "/api/friends/requests", nil, yAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("list requests status=%d body=%s", w.Code, w.Body.String())
	}
	var pending []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatalf("unmarshal requests: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending requests=%d want 1", len(pending))
	}
	requestID := uint(pending[0]["id"].(float64))

	w = doRequest(t, env.router, http.MethodPatch, fmt.Sprintf("/api/friends/request/%d", requestID),
		map[string]any{"status": "accepted"}, yAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("accept request status=%d body=%s", w.Code, w.Body.String())
	}

	for _, auth := range []map[string]string{xAuth, yAuth} {
		w = doRequest(t, env.router, http.MethodGet, "/api/friends", nil, auth)
		if w.Code != http.StatusOK {
			t.Fatalf("list friends status=%d body=%s", w.Code, w.Body.String())
		}
		var friends []map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &friends); err != nil {
			t.Fatalf("unmarshal friends: %v", err)
		}
		if len(friends) != 1 {
			t.Fatalf("friends=%d want 1", len(friends))
		}
	}

	w = doRequest(t, env.router, http.MethodGet, "/api/users/search?q=yol", nil, xAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("search status=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodDelete, fmt.Sprintf("/api/friends/remove/%d", yID), nil, xAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("remove friend status=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodGet, "/api/friends", nil, yAuth)
	var friends []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &friends); err != nil {
		t.Fatalf("unmarshal friends: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("friendship not symmetric after removal: %v", friends)
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	env := setupTestEnv(t)

	_, _ = registerUser(t, env, "jack")

	w := doRequest(t, env.router, http.MethodPost, "/api/users/reset-password",
		map[string]any{"email": "jack@example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("request reset status=%d body=%s", w.Code, w.Body.String())
	}

	// Unknown emails get the same answer.
	w = doRequest(t, env.router, http.MethodPost, "/api/users/reset-password",
		map[string]any{"email": "ghost@example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset for unknown email status=%d body=%s", w.Code, w.Body.String())
	}

	env.mailer.mu.Lock()
	token := env.mailer.tokens["jack@example.com"]
	env.mailer.mu.Unlock()
	if token == "" {
		t.Fatal("no reset token handed to mailer")
	}

	w = doRequest(t, env.router, http.MethodPost, "/api/users/reset-password/confirm",
		map[string]any{"token": token, "password": "newpass99"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm reset status=%d body=%s", w.Code, w.Body.String())
	}

	// Token is single-use.
	w = doRequest(t, env.router, http.MethodPost, "/api/users/reset-password/confirm",
		map[string]any{"token": token, "password": "another"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("reused token expected 400 got=%d body=%s", w.Code, w.Body.String())
	}

	login := map[string]any{"email": "jack@example.com", "password": "newpass99"}
	w = doRequest(t, env.router, http.MethodPost, "/api/users/login", login, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login with new password status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestProfile_Update(t *testing.T) {
	env := setupTestEnv(t)

	_, jackAuth := registerUser(t, env, "jack")
	_, _ = registerUser(t, env, "jill")

	w := doRequest(t, env.router, http.MethodGet, "/api/users/me", nil, jackAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("get me status=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodPatch, "/api/users/me",
		map[string]any{"username": "jill"}, jackAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("taken username expected 409 got=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodPatch, "/api/users/me",
		map[string]any{"username": "jack2", "avatar": "https://example.com/a.png"}, jackAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("update profile status=%d body=%s", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["username"] != "jack2" {
		t.Fatalf("profile not updated: %v", resp)
	}
}
