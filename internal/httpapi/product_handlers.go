package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"orbitalliance.org/internal/rewards"
)

type createProductRequest struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	IsInternal  *bool  `json:"is_internal"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

type updateProductRequest struct {
	InstitutionID *string `json:"institution_id"`
	Name          *string `json:"name"`
	Price         *int64  `json:"price"`
	IsInternal    *bool   `json:"is_internal"`
	Image         *string `json:"image"`
	Description   *string `json:"description"`
}

func (a *API) handleProductsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createProduct(w, r)
	case http.MethodGet:
		a.listProducts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleProductResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	switch path {
	case "public":
		a.listPublicProducts(w, r)
		return
	case "search":
		a.searchProducts(w, r)
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
			a.getProduct(w, r, id)
		case http.MethodPut:
			a.updateProduct(w, r, id)
		case http.MethodDelete:
			a.deleteProduct(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "details":
		a.productDetails(w, r, id)
	case "purchases":
		a.productPurchases(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := requireInstitution(w, r, "")
	if !ok {
		return
	}
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	product, err := a.svc.CreateProduct(r.Context(), p.ID, rewards.CreateProductInput{
		Name:        req.Name,
		Price:       req.Price,
		IsInternal:  req.IsInternal,
		Image:       req.Image,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "product.create", "product", product.ID, map[string]string{
		"institution_id": p.ID,
		"price":          strconv.FormatInt(product.Price, 10),
		"is_internal":    strconv.FormatBool(product.IsInternal),
	})
	w.Header().Set("Location", "/v1/products/"+product.ID)
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.svc.ListProducts(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) listPublicProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	products, err := a.svc.ListPublicProducts(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) searchProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	products, err := a.svc.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request, id string) {
	product, err := a.svc.GetProduct(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) productDetails(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	details, err := a.svc.ProductDetails(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) productPurchases(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	product, err := a.svc.GetProduct(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if _, ok := requireInstitution(w, r, product.InstitutionID); !ok {
		return
	}
	purchases, err := a.svc.ProductPurchases(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (a *API) requireProductOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	product, err := a.svc.GetProduct(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return false
	}
	_, ok := requireInstitution(w, r, product.InstitutionID)
	return ok
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireProductOwner(w, r, id) {
		return
	}
	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	product, err := a.svc.UpdateProduct(r.Context(), id, rewards.UpdateProductInput{
		InstitutionID: req.InstitutionID,
		Name:          req.Name,
		Price:         req.Price,
		IsInternal:    req.IsInternal,
		Image:         req.Image,
		Description:   req.Description,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "product.update", "product", id, nil)
	writeJSON(w, http.StatusOK, product)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireProductOwner(w, r, id) {
		return
	}
	if err := a.svc.DeleteProduct(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "product.delete", "product", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
