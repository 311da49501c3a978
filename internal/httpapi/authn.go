package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"orbitalliance.org/internal/auth"
	"orbitalliance.org/internal/rewards"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth attaches the bearer principal to the context when a token is
// presented. A malformed or invalid token fails the request; an absent token
// passes through anonymously and the per-handler guards decide.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get(authHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		principal := auth.Principal{
			ID:    claims.Subject,
			Email: claims.Email,
			Type:  claims.Type,
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// requireInstitution demands an institution principal. When ownerID is
// non-empty, the principal must be that institution.
func requireInstitution(w http.ResponseWriter, r *http.Request, ownerID string) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	if !p.IsInstitution() {
		writeError(w, r, http.StatusForbidden, "institution credentials required")
		return auth.Principal{}, false
	}
	if ownerID != "" && p.ID != ownerID {
		writeError(w, r, http.StatusForbidden, "not the owning institution")
		return auth.Principal{}, false
	}
	return p, true
}

// requireUser demands a user principal. When subjectID is non-empty, the
// principal must be that user.
func requireUser(w http.ResponseWriter, r *http.Request, subjectID string) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	if !p.IsUser() {
		writeError(w, r, http.StatusForbidden, "user credentials required")
		return auth.Principal{}, false
	}
	if subjectID != "" && p.ID != subjectID {
		writeError(w, r, http.StatusForbidden, "not the subject user")
		return auth.Principal{}, false
	}
	return p, true
}

// requireTeacher demands a user principal holding an active teacher
// membership. institutionID may be empty; the service then selects the
// earliest teacher membership deterministically.
func (a *API) requireTeacher(w http.ResponseWriter, r *http.Request, institutionID string) (auth.Principal, rewards.MembershipView, bool) {
	p, ok := requireUser(w, r, "")
	if !ok {
		return auth.Principal{}, rewards.MembershipView{}, false
	}
	m, err := a.svc.TeacherMembership(r.Context(), p.ID, institutionID)
	if err != nil {
		handleServiceError(w, r, err)
		return auth.Principal{}, rewards.MembershipView{}, false
	}
	return p, m, true
}
