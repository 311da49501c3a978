package httpapi

import (
	"net/http"
	"strings"
	"time"

	"orbitalliance.org/internal/auth"
	"orbitalliance.org/internal/rewards"
	"orbitalliance.org/internal/stream"
)

type registerInstitutionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Wallet   string `json:"wallet"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateInstitutionRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Wallet   *string `json:"wallet"`
}

type linkMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleInstitutionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerInstitution(w, r)
	case http.MethodGet:
		a.listInstitutions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleInstitutionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/institutions/")
	if path == "login" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.loginInstitution(w, r)
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
			a.getInstitution(w, r, id)
		case http.MethodPut:
			a.updateInstitution(w, r, id)
		case http.MethodDelete:
			a.deleteInstitution(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "details":
		a.institutionDetails(w, r, id)
	case "members":
		switch r.Method {
		case http.MethodPost:
			a.linkMember(w, r, id)
		case http.MethodGet:
			a.listMembers(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
		}
	case "actions":
		a.listInstitutionActions(w, r, id)
	case "products":
		a.listInstitutionProducts(w, r, id)
	case "executions":
		a.listInstitutionExecutions(w, r, id)
	case "purchases":
		a.listInstitutionPurchases(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) registerInstitution(w http.ResponseWriter, r *http.Request) {
	var req registerInstitutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inst, err := a.svc.RegisterInstitution(r.Context(), rewards.RegisterInstitutionInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Wallet:   req.Wallet,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "institution.register", "institution", inst.ID, nil)
	w.Header().Set("Location", "/v1/institutions/"+inst.ID)
	writeJSON(w, http.StatusCreated, inst)
}

func (a *API) loginInstitution(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inst, err := a.svc.AuthenticateInstitution(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	token, err := auth.GenerateToken(inst.ID, inst.Email, auth.TypeInstitution, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.audit(r.Context(), "institution.login", "institution", inst.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":       token,
		"expires_at":  time.Now().UTC().Add(a.tokenTTL),
		"institution": inst,
	})
}

func (a *API) listInstitutions(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListInstitutions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getInstitution(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := a.svc.GetInstitution(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (a *API) institutionDetails(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	details, err := a.svc.InstitutionDetails(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) updateInstitution(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireInstitution(w, r, id); !ok {
		return
	}
	var req updateInstitutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inst, err := a.svc.UpdateInstitution(r.Context(), id, rewards.UpdateInstitutionInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Wallet:   req.Wallet,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "institution.update", "institution", id, nil)
	writeJSON(w, http.StatusOK, inst)
}

func (a *API) deleteInstitution(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireInstitution(w, r, id); !ok {
		return
	}
	if err := a.svc.DeleteInstitution(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "institution.delete", "institution", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) linkMember(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireInstitution(w, r, id); !ok {
		return
	}
	var req linkMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	member, err := a.svc.LinkMember(r.Context(), id, req.Email, req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "membership.link", "membership", member.ID, map[string]string{
		"institution_id": id,
		"user_id":        member.User.ID,
		"role":           string(member.Role),
	})
	if a.stream != nil {
		a.stream.Publish(stream.ActivityEvent{
			Kind:          stream.KindMemberLinked,
			InstitutionID: id,
			SubjectID:     member.User.ID,
		})
	}
	writeJSON(w, http.StatusCreated, member)
}

func (a *API) listMembers(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireInstitution(w, r, id); !ok {
		return
	}
	members, err := a.svc.ListMembers(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) listInstitutionActions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actions, err := a.svc.ListActionsByInstitution(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (a *API) listInstitutionProducts(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	products, err := a.svc.ListProductsByInstitution(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) listInstitutionExecutions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireInstitution(w, r, id); !ok {
		return
	}
	execs, err := a.svc.InstitutionExecutions(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (a *API) listInstitutionPurchases(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireInstitution(w, r, id); !ok {
		return
	}
	purchases, err := a.svc.InstitutionPurchases(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}
