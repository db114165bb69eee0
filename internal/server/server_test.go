package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"dicecup/internal/config"
	"dicecup/internal/db"
	"dicecup/internal/engine"
	"dicecup/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("dicecup-test")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Bootstrap(context.Background(), "tester"); err != nil {
		t.Fatalf("bootstrap rbac: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthUnauthenticated(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestRollRequiresAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "2D6",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCreateRoll(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "3D20+4",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create roll status %d: %s", res.StatusCode, string(data))
	}
	var roll RollResponse
	if err := json.Unmarshal(data, &roll); err != nil {
		t.Fatalf("unmarshal roll: %v", err)
	}
	if roll.Notation != "3D20+4" || roll.Minimum != 7 || roll.Maximum != 64 {
		t.Fatalf("roll %+v", roll)
	}
	if roll.Value < roll.Minimum || roll.Value > roll.Maximum {
		t.Fatalf("value %d outside bounds", roll.Value)
	}
	if roll.ActorID != "tester" {
		t.Fatalf("actor %q", roll.ActorID)
	}
}

func TestCreateRollSeeded(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	body := map[string]any{"notation": "4D6DL1", "seed": 99}
	_, first := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", body, actorHeader)
	_, second := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", body, actorHeader)
	var a, b RollResponse
	if err := json.Unmarshal(first, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(second, &b); err != nil {
		t.Fatal(err)
	}
	if a.Value != b.Value || a.Trace != b.Trace {
		t.Fatalf("seeded rolls diverged: %+v vs %+v", a, b)
	}
}

func TestCreateRollInvalidNotation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "2D",
	}, actorHeader)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "invalid_notation" {
		t.Fatalf("code %q: %s", envelope.Error.Code, string(data))
	}
}

func TestCreateRollRejectsImpossibleExplode(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "D6!>0",
	}, actorHeader)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
}

func TestInspection(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/inspections", map[string]any{
		"notation": "d6!",
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("inspection status %d: %s", res.StatusCode, string(data))
	}
	var insp InspectionResponse
	if err := json.Unmarshal(data, &insp); err != nil {
		t.Fatal(err)
	}
	if insp.Notation != "D6!" || insp.Minimum != 1 || !insp.Unbounded {
		t.Fatalf("inspection %+v", insp)
	}
}

func TestSampleEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/samples", map[string]any{
		"notation": "2D6",
		"trials":   200,
		"seed":     5,
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sample status %d: %s", res.StatusCode, string(data))
	}
	var sample SampleResponse
	if err := json.Unmarshal(data, &sample); err != nil {
		t.Fatal(err)
	}
	if sample.Lowest < 2 || sample.Highest > 12 || sample.Trials != 200 {
		t.Fatalf("sample %+v", sample)
	}
}

func TestExpressionLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	putRes, putBody := doJSON(t, client, http.MethodPut, srv.URL+"/v0/expressions/advantage", map[string]any{
		"notation":    "2d20kh1",
		"description": "roll twice, keep the better",
	}, actorHeader)
	if putRes.StatusCode != http.StatusOK {
		t.Fatalf("put status %d: %s", putRes.StatusCode, string(putBody))
	}
	var expr ExpressionResponse
	if err := json.Unmarshal(putBody, &expr); err != nil {
		t.Fatal(err)
	}
	if expr.Notation != "2D20KH1" {
		t.Fatalf("stored notation %q", expr.Notation)
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/expressions", nil, actorHeader)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", listRes.StatusCode, string(listBody))
	}
	var items []ExpressionResponse
	if err := json.Unmarshal(listBody, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "advantage" {
		t.Fatalf("items %+v", items)
	}

	rollRes, rollBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/expressions/advantage/rolls?seed=11", nil, actorHeader)
	if rollRes.StatusCode != http.StatusCreated {
		t.Fatalf("roll status %d: %s", rollRes.StatusCode, string(rollBody))
	}
	var roll RollResponse
	if err := json.Unmarshal(rollBody, &roll); err != nil {
		t.Fatal(err)
	}
	if roll.Expression != "advantage" || roll.Value < 1 || roll.Value > 20 {
		t.Fatalf("roll %+v", roll)
	}

	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/expressions/advantage", nil, actorHeader)
	if delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}
	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/expressions/advantage", nil, actorHeader)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d: %s", getRes.StatusCode, string(getBody))
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	for i := 0; i < 3; i++ {
		doJSON(t, client, http.MethodPost, srv.URL+"/v0/rolls", map[string]any{"notation": "D6"}, actorHeader)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=roll.executed&limit=2", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("page %+v", page)
	}
	res2, data2 := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=roll.executed&cursor="+page.NextCursor, nil, actorHeader)
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("second page status %d: %s", res2.StatusCode, string(data2))
	}
	var page2 paginatedEvents
	if err := json.Unmarshal(data2, &page2); err != nil {
		t.Fatal(err)
	}
	if len(page2.Items) != 1 {
		t.Fatalf("second page %+v", page2)
	}
}

func TestForbiddenWithoutPermission(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	// "nobody" is authenticated via the legacy header but holds no roles.
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "D6",
	}, map[string]string{"X-Actor-Id": "nobody"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, createBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/apikeys", map[string]any{
		"name": "ci",
	}, actorHeader)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create key status %d: %s", createRes.StatusCode, string(createBody))
	}
	var created APIKeyResponse
	if err := json.Unmarshal(createBody, &created); err != nil {
		t.Fatal(err)
	}
	if created.Key == "" {
		t.Fatal("plaintext key missing from create response")
	}

	rollRes, rollBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "D20",
	}, map[string]string{"X-Api-Key": created.Key})
	if rollRes.StatusCode != http.StatusCreated {
		t.Fatalf("api key roll status %d: %s", rollRes.StatusCode, string(rollBody))
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/apikeys", nil, actorHeader)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list keys status %d: %s", listRes.StatusCode, string(listBody))
	}
	var keys []APIKeyResponse
	if err := json.Unmarshal(listBody, &keys); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].Key != "" {
		t.Fatalf("listing must not expose plaintext: %+v", keys)
	}
}

func TestDevLoginAndJWT(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	loginRes, loginBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id":    "jwt-user",
		"permissions": []string{"roll.execute"},
	}, nil)
	if loginRes.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", loginRes.StatusCode, string(loginBody))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(loginBody, &login); err != nil {
		t.Fatal(err)
	}
	if login.Token == "" {
		t.Fatal("empty token")
	}

	rollRes, rollBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "D6",
	}, map[string]string{"Authorization": "Bearer " + login.Token})
	if rollRes.StatusCode != http.StatusCreated {
		t.Fatalf("jwt roll status %d: %s", rollRes.StatusCode, string(rollBody))
	}

	badRes, badBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/rolls", map[string]any{
		"notation": "D6",
	}, map[string]string{"Authorization": "Bearer not-a-token"})
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d: %s", badRes.StatusCode, string(badBody))
	}
}

func TestMeEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatal(err)
	}
	if who.ActorID != "tester" {
		t.Fatalf("actor %q", who.ActorID)
	}
	found := false
	for _, p := range who.Permissions {
		if p == "roll.execute" {
			found = true
		}
	}
	if !found {
		t.Fatalf("permissions %v", who.Permissions)
	}
}
