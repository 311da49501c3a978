// Command smoke drives a deployed orbit-api through the full rewards flow:
// institution signup, catalog setup, member linking, a teacher declaration
// and an idempotent student purchase. It exits non-zero on the first
// divergence from the expected responses.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("ORBIT_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	run := fmt.Sprintf("smoke-%d", rand.Int63())

	inst := c.post("/v1/institutions", "", map[string]any{
		"email":    run + "@school.edu",
		"password": "smoke-pass",
		"name":     "Smoke School " + run,
	}, http.StatusCreated)
	instID := inst["id"].(string)

	login := c.post("/v1/institutions/login", "", map[string]any{
		"email":    run + "@school.edu",
		"password": "smoke-pass",
	}, http.StatusOK)
	instToken := login["token"].(string)

	action := c.post("/v1/actions", instToken, map[string]any{
		"name":   "Smoke recycling",
		"reward": int64(50),
	}, http.StatusCreated)

	product := c.post("/v1/products", instToken, map[string]any{
		"name":        "Smoke hoodie",
		"price":       int64(300),
		"is_internal": true,
	}, http.StatusCreated)
	productID := product["id"].(string)

	for _, u := range []struct{ name, role string }{
		{"teacher", "teacher"},
		{"student", "comum"},
	} {
		c.post("/v1/users", "", map[string]any{
			"name":     u.name,
			"email":    run + "-" + u.name + "@example.com",
			"wallet":   run + "-wallet-" + u.name,
			"password": "smoke-pass",
		}, http.StatusCreated)
		c.post("/v1/institutions/"+instID+"/members", instToken, map[string]any{
			"email": run + "-" + u.name + "@example.com",
			"role":  u.role,
		}, http.StatusCreated)
	}

	teacherLogin := c.post("/v1/users/login", "", map[string]any{
		"email":    run + "-teacher@example.com",
		"password": "smoke-pass",
	}, http.StatusOK)
	studentLogin := c.post("/v1/users/login", "", map[string]any{
		"email":    run + "-student@example.com",
		"password": "smoke-pass",
	}, http.StatusOK)

	exec := c.post("/v1/executions", teacherLogin["token"].(string), map[string]any{
		"action_id":     action["id"].(string),
		"student_email": run + "-student@example.com",
	}, http.StatusCreated)
	if exec["action"].(map[string]any)["reward"].(float64) != 50 {
		log.Fatalf("execution reward mismatch: %v", exec)
	}

	// Purchase twice with the same key, expect the same record back.
	studentToken := studentLogin["token"].(string)
	key := run + "-buy"
	first := c.postIdem("/v1/purchases", studentToken, key, map[string]any{
		"product_id": productID,
	}, http.StatusCreated)
	second := c.postIdem("/v1/purchases", studentToken, key, map[string]any{
		"product_id": productID,
	}, http.StatusCreated)
	if first["id"] != second["id"] {
		log.Fatalf("idempotent replay produced a new purchase: %v vs %v", first["id"], second["id"])
	}
	if first["price_at_purchase"].(float64) != 300 {
		log.Fatalf("purchase price not locked: %v", first["price_at_purchase"])
	}

	fmt.Printf("smoke test passed: institution=%s purchase=%s\n", instID, first["id"])
}

type client struct {
	base string
	http *http.Client
}

func (c *client) post(path, token string, body map[string]any, want int) map[string]any {
	return c.request(path, token, "", body, want)
}

func (c *client) postIdem(path, token, key string, body map[string]any, want int) map[string]any {
	return c.request(path, token, key, body, want)
}

func (c *client) request(path, token, idemKey string, body map[string]any, want int) map[string]any {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal %s: %v", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
	if resp.StatusCode != want {
		log.Fatalf("post %s: status %d, body %v", path, resp.StatusCode, out)
	}
	return out
}
