package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"orbitalliance.org/internal/rewards"
)

type createActionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
}

type updateActionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Reward      *int64  `json:"reward"`
}

func (a *API) handleActionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAction(w, r)
	case http.MethodGet:
		a.listActions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleActionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/actions/")
	switch path {
	case "public":
		a.listPublicActions(w, r)
		return
	case "search":
		a.searchActions(w, r)
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
			a.getAction(w, r, id)
		case http.MethodPut:
			a.updateAction(w, r, id)
		case http.MethodDelete:
			a.deleteAction(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "details":
		a.actionDetails(w, r, id)
	case "users":
		a.actionExecutions(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createAction(w http.ResponseWriter, r *http.Request) {
	p, ok := requireInstitution(w, r, "")
	if !ok {
		return
	}
	var req createActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := a.svc.CreateAction(r.Context(), p.ID, rewards.CreateActionInput{
		Name:        req.Name,
		Description: req.Description,
		Reward:      req.Reward,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "action.create", "action", action.ID, map[string]string{
		"institution_id": p.ID,
		"reward":         strconv.FormatInt(action.Reward, 10),
	})
	w.Header().Set("Location", "/v1/actions/"+action.ID)
	writeJSON(w, http.StatusCreated, action)
}

func (a *API) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := a.svc.ListActions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (a *API) listPublicActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actions, err := a.svc.ListPublicActions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (a *API) searchActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actions, err := a.svc.SearchActions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (a *API) getAction(w http.ResponseWriter, r *http.Request, id string) {
	action, err := a.svc.GetAction(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (a *API) actionDetails(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	details, err := a.svc.ActionDetails(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) actionExecutions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	execs, err := a.svc.ActionExecutions(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

// requireActionOwner loads the action and checks the principal owns it.
func (a *API) requireActionOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	action, err := a.svc.GetAction(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return false
	}
	_, ok := requireInstitution(w, r, action.InstitutionID)
	return ok
}

func (a *API) updateAction(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireActionOwner(w, r, id) {
		return
	}
	var req updateActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := a.svc.UpdateAction(r.Context(), id, rewards.UpdateActionInput{
		Name:        req.Name,
		Description: req.Description,
		Reward:      req.Reward,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "action.update", "action", id, nil)
	writeJSON(w, http.StatusOK, action)
}

func (a *API) deleteAction(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireActionOwner(w, r, id) {
		return
	}
	if err := a.svc.DeleteAction(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "action.delete", "action", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
