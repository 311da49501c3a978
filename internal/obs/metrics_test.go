package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/institutions/abc":              "/v1/institutions/:id",
		"/v1/institutions/abc/members":      "/v1/institutions/:id/members",
		"/v1/institutions/abc/extra":        "/v1/institutions/abc/extra",
		"/v1/actions/public":                "/v1/actions/public",
		"/v1/actions/search?q=quiz":         "/v1/actions/search",
		"/v1/actions/01ABC":                 "/v1/actions/:id",
		"/v1/users/login/wallet":            "/v1/users/login/wallet",
		"/v1/users/01ABC/executions":        "/v1/users/:id/executions",
		"/v1/products/01ABC/details":        "/v1/products/:id/details",
		"/v1/purchases":                     "/v1/purchases",
		"/v1/institutions/abc/members/deep": "/v1/institutions/abc/members/deep",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
