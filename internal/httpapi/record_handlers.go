package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"orbitalliance.org/internal/rewards"
	"orbitalliance.org/internal/stream"
)

type declareExecutionRequest struct {
	ActionID      string     `json:"action_id"`
	StudentEmail  string     `json:"student_email"`
	InstitutionID string     `json:"institution_id"`
	ExecutedAt    *time.Time `json:"executed_at"`
}

type createPurchaseRequest struct {
	ProductID      string `json:"product_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (a *API) handleExecutions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.declareExecution(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) declareExecution(w http.ResponseWriter, r *http.Request) {
	var req declareExecutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, membership, ok := a.requireTeacher(w, r, strings.TrimSpace(req.InstitutionID))
	if !ok {
		return
	}

	detail, err := a.svc.DeclareExecution(r.Context(), membership.Institution.ID, rewards.DeclareExecutionInput{
		ActionID:     req.ActionID,
		StudentEmail: req.StudentEmail,
		ExecutedAt:   req.ExecutedAt,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	a.audit(r.Context(), "execution.declare", "execution", detail.ID, map[string]string{
		"teacher_id":     p.ID,
		"student_id":     detail.Student.ID,
		"action_id":      detail.Action.ID,
		"institution_id": detail.Institution.ID,
		"reward":         strconv.FormatInt(detail.Action.Reward, 10),
	})
	if a.stream != nil {
		a.stream.Publish(stream.ActivityEvent{
			Kind:          stream.KindExecutionDeclared,
			InstitutionID: detail.Institution.ID,
			ActorID:       p.ID,
			SubjectID:     detail.Student.ID,
			Amount:        detail.Action.Reward,
		})
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPurchase(w, r)
	case http.MethodGet:
		a.listOwnPurchases(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createPurchase(w http.ResponseWriter, r *http.Request) {
	p, ok := requireUser(w, r, "")
	if !ok {
		return
	}
	var req createPurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	idem := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if req.IdempotencyKey != "" {
		bodyKey := strings.TrimSpace(req.IdempotencyKey)
		if idem == "" {
			idem = bodyKey
		} else if idem != bodyKey {
			writeError(w, r, http.StatusBadRequest, "Idempotency-Key header and body value must match")
			return
		}
	}
	if len(idem) > 128 {
		writeError(w, r, http.StatusBadRequest, "Idempotency-Key too long")
		return
	}

	purchase, err := a.svc.CreatePurchase(r.Context(), p.ID, rewards.CreatePurchaseInput{
		ProductID:      req.ProductID,
		IdempotencyKey: idem,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if idem != "" {
		w.Header().Set("Idempotency-Key", idem)
	}
	a.audit(r.Context(), "purchase.create", "purchase", purchase.ID, map[string]string{
		"product_id": purchase.ProductID,
		"user_id":    p.ID,
		"price":      strconv.FormatInt(purchase.PriceAtPurchase, 10),
	})
	if a.stream != nil {
		a.stream.Publish(stream.ActivityEvent{
			Kind:          stream.KindPurchaseCreated,
			InstitutionID: purchase.Product.InstitutionID,
			ActorID:       p.ID,
			SubjectID:     purchase.ProductID,
			Amount:        purchase.PriceAtPurchase,
		})
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (a *API) listOwnPurchases(w http.ResponseWriter, r *http.Request) {
	p, ok := requireUser(w, r, "")
	if !ok {
		return
	}
	purchases, err := a.svc.UserPurchases(r.Context(), p.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}
