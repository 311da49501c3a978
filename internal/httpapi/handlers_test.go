package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"orbitalliance.org/internal/auth"
	"orbitalliance.org/internal/rewards"
	"orbitalliance.org/internal/store/memory"
	"orbitalliance.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("ORBIT_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	svc, err := rewards.NewService(memory.New())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(ReadyProbe{}, "test", svc, stream.New())
	api.SetRateLimit(1000, 1000)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) registerInstitution(name string) (id, token string) {
	c.t.Helper()
	resp := c.post("/v1/institutions", map[string]any{
		"email":    name + "@school.edu",
		"password": "institution-pass",
		"name":     name,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register institution status: %d", resp.StatusCode)
	}
	inst := decode[map[string]any](c.t, resp)

	resp = c.post("/v1/institutions/login", map[string]any{
		"email":    name + "@school.edu",
		"password": "institution-pass",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("institution login status: %d", resp.StatusCode)
	}
	login := decode[map[string]any](c.t, resp)
	return inst["id"].(string), login["token"].(string)
}

func (c *apiClient) registerUser(name string) (id, token string) {
	c.t.Helper()
	resp := c.post("/v1/users", map[string]any{
		"name":     name,
		"email":    name + "@example.com",
		"wallet":   "wallet-" + name,
		"password": "user-pass",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register user status: %d", resp.StatusCode)
	}
	u := decode[map[string]any](c.t, resp)

	resp = c.post("/v1/users/login", map[string]any{
		"email":    name + "@example.com",
		"password": "user-pass",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("user login status: %d", resp.StatusCode)
	}
	login := decode[map[string]any](c.t, resp)
	return u["id"].(string), login["token"].(string)
}

func TestRewardsLifecycleFlow(t *testing.T) {
	api := newTestAPI(t)

	instID, instToken := api.registerInstitution("orbit")
	studentID, studentToken := api.registerUser("ana")
	_, teacherToken := api.registerUser("prof")

	// Institution creates an action and an internal product.
	resp := api.post("/v1/actions", map[string]any{
		"name":   "Recycle bottles",
		"reward": 50,
	}, bearerHeader(instToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create action status: %d", resp.StatusCode)
	}
	action := decode[map[string]any](t, resp)
	actionID := action["id"].(string)

	resp = api.post("/v1/products", map[string]any{
		"name":        "Campus hoodie",
		"price":       300,
		"is_internal": true,
	}, bearerHeader(instToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product status: %d", resp.StatusCode)
	}
	product := decode[map[string]any](t, resp)
	productID := product["id"].(string)

	// Link student and teacher.
	for _, link := range []map[string]any{
		{"email": "ana@example.com", "role": "comum"},
		{"email": "prof@example.com", "role": "teacher"},
	} {
		resp = api.post("/v1/institutions/"+instID+"/members", link, bearerHeader(instToken))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("link member status: %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Teacher declares the execution.
	resp = api.post("/v1/executions", map[string]any{
		"action_id":     actionID,
		"student_email": "ana@example.com",
	}, bearerHeader(teacherToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("declare execution status: %d", resp.StatusCode)
	}
	exec := decode[map[string]any](t, resp)
	if exec["student"].(map[string]any)["id"] != studentID {
		t.Fatalf("execution not attributed to student: %v", exec)
	}

	// Student redeems the internal product with an idempotency key.
	headers := bearerHeader(studentToken)
	headers["Idempotency-Key"] = "buy-1"
	resp = api.post("/v1/purchases", map[string]any{"product_id": productID}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Idempotency-Key") != "buy-1" {
		t.Fatalf("missing idempotency header echo")
	}
	purchase := decode[map[string]any](t, resp)
	if purchase["price_at_purchase"].(float64) != 300 {
		t.Fatalf("price not locked: %v", purchase["price_at_purchase"])
	}

	// Replay returns the same purchase.
	resp = api.post("/v1/purchases", map[string]any{"product_id": productID}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replay status: %d", resp.StatusCode)
	}
	replay := decode[map[string]any](t, resp)
	if replay["id"] != purchase["id"] {
		t.Fatalf("idempotent replay returned different purchase")
	}

	// Student history holds exactly one purchase with embedded product.
	resp = api.get("/v1/purchases", nil, bearerHeader(studentToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own purchases status: %d", resp.StatusCode)
	}
	history := decode[[]map[string]any](t, resp)
	if len(history) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(history))
	}
	if history[0]["product"].(map[string]any)["name"] != "Campus hoodie" {
		t.Fatalf("product not embedded: %v", history[0])
	}

	// Institution sees the execution and the purchase.
	resp = api.get("/v1/institutions/"+instID+"/executions", nil, bearerHeader(instToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("institution executions status: %d", resp.StatusCode)
	}
	execs := decode[[]map[string]any](t, resp)
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
	resp = api.get("/v1/institutions/"+instID+"/purchases", nil, bearerHeader(instToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("institution purchases status: %d", resp.StatusCode)
	}
	purchases := decode[[]map[string]any](t, resp)
	if len(purchases) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(purchases))
	}
}

func TestAuthGuards(t *testing.T) {
	api := newTestAPI(t)

	instID, instToken := api.registerInstitution("orbit")
	_, otherToken := api.registerInstitution("nebula")
	_, userToken := api.registerUser("ana")

	// Unauthenticated mutation.
	resp := api.post("/v1/actions", map[string]any{"name": "X", "reward": 1}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	errBody := decode[map[string]any](t, resp)
	if errBody["error"] == "" || errBody["request_id"] == "" {
		t.Fatalf("expected error and request_id in body: %v", errBody)
	}

	// User token on an institution endpoint.
	resp = api.post("/v1/actions", map[string]any{"name": "X", "reward": 1}, bearerHeader(userToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for user token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A different institution cannot mutate someone else's resources.
	resp = api.post("/v1/actions", map[string]any{"name": "Owned", "reward": 5}, bearerHeader(instToken))
	action := decode[map[string]any](t, resp)
	resp = api.do(http.MethodDelete, "/v1/actions/"+action["id"].(string), nil, bearerHeader(otherToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign institution, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Foreign institution cannot read members either.
	resp = api.get("/v1/institutions/"+instID+"/members", nil, bearerHeader(otherToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign member list, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Garbage token.
	resp = api.get("/v1/purchases", nil, bearerHeader("not-a-token"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTeacherGuardRejectsNonTeachers(t *testing.T) {
	api := newTestAPI(t)

	instID, instToken := api.registerInstitution("orbit")
	_, studentToken := api.registerUser("ana")

	resp := api.post("/v1/institutions/"+instID+"/members", map[string]any{
		"email": "ana@example.com", "role": "comum",
	}, bearerHeader(instToken))
	resp.Body.Close()

	resp = api.post("/v1/executions", map[string]any{
		"action_id": "whatever", "student_email": "ana@example.com",
	}, bearerHeader(studentToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-teacher, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWalletLogin(t *testing.T) {
	api := newTestAPI(t)
	api.registerUser("ana")

	resp := api.post("/v1/users/login/wallet", map[string]any{"wallet": "wallet-ana"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wallet login status: %d", resp.StatusCode)
	}
	login := decode[map[string]any](t, resp)
	if login["token"] == "" {
		t.Fatalf("no token issued")
	}

	resp = api.post("/v1/users/login/wallet", map[string]any{"wallet": "wallet-unknown"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown wallet, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	api := newTestAPI(t)
	_, instToken := api.registerInstitution("orbit")

	resp := api.post("/v1/products", map[string]any{
		"name": "Mug", "price": 120, "is_internal": false,
	}, bearerHeader(instToken))
	resp.Body.Close()
	resp = api.post("/v1/products", map[string]any{
		"name": "Hoodie", "price": 300, "is_internal": true,
	}, bearerHeader(instToken))
	resp.Body.Close()

	resp = api.get("/v1/products/public", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public products status: %d", resp.StatusCode)
	}
	products := decode[[]map[string]any](t, resp)
	if len(products) != 1 || products[0]["name"] != "Mug" {
		t.Fatalf("internal product leaked: %v", products)
	}

	resp = api.get("/v1/actions/search", url.Values{"q": []string{"x"}}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for short search term, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConflictsMapTo409(t *testing.T) {
	api := newTestAPI(t)
	api.registerInstitution("orbit")

	resp := api.post("/v1/institutions", map[string]any{
		"email":    "orbit@school.edu",
		"password": "other-pass",
		"name":     "Orbit Clone",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t)

	// Unknown fields are rejected.
	resp := api.post("/v1/users", map[string]any{
		"name": "Ana", "email": "a@x.com", "wallet": "w", "password": "user-pass", "bogus": true,
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Empty body on login.
	resp = api.do(http.MethodPost, "/v1/users/login", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := api.get("/v1/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
