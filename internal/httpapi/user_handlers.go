package httpapi

import (
	"net/http"
	"strings"
	"time"

	"orbitalliance.org/internal/auth"
	"orbitalliance.org/internal/rewards"
)

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Wallet   string `json:"wallet"`
	Password string `json:"password"`
}

type walletLoginRequest struct {
	Wallet string `json:"wallet"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Wallet   *string `json:"wallet"`
	Password *string `json:"password"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerUser(w, r)
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	switch path {
	case "login":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.loginUser(w, r)
		return
	case "login/wallet":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.loginUserByWallet(w, r)
		return
	}

	id, sub, ok := splitResource(path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, id)
		case http.MethodPut:
			a.updateUser(w, r, id)
		case http.MethodDelete:
			a.deleteUser(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "details":
		a.userDetails(w, r, id)
	case "executions":
		a.listUserExecutions(w, r, id)
	case "purchases":
		a.listUserPurchases(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.RegisterUser(r.Context(), rewards.RegisterUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Wallet:   req.Wallet,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.register", "user", u.ID, nil)
	w.Header().Set("Location", "/v1/users/"+u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) loginUser(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.issueUserToken(w, r, u, "user.login")
}

// loginUserByWallet authenticates on wallet possession alone. Reduced
// assurance inherited from the original product flow.
func (a *API) loginUserByWallet(w http.ResponseWriter, r *http.Request) {
	var req walletLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.AuthenticateUserByWallet(r.Context(), req.Wallet)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.issueUserToken(w, r, u, "user.login_wallet")
}

func (a *API) issueUserToken(w http.ResponseWriter, r *http.Request, u rewards.PublicUser, event string) {
	token, err := auth.GenerateToken(u.ID, u.Email, auth.TypeUser, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.audit(r.Context(), event, "user", u.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": time.Now().UTC().Add(a.tokenTTL),
		"user":       u,
	})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.svc.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) userDetails(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	details, err := a.svc.UserDetails(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireUser(w, r, id); !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.UpdateUser(r.Context(), id, rewards.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Wallet:   req.Wallet,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.update", "user", id, nil)
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireUser(w, r, id); !ok {
		return
	}
	if err := a.svc.DeleteUser(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.delete", "user", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// listUserExecutions is the student view of their history; optional
// institution_id narrows it.
func (a *API) listUserExecutions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireUser(w, r, id); !ok {
		return
	}
	execs, err := a.svc.StudentExecutions(r.Context(), id, strings.TrimSpace(r.URL.Query().Get("institution_id")))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (a *API) listUserPurchases(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireUser(w, r, id); !ok {
		return
	}
	purchases, err := a.svc.UserPurchases(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}
