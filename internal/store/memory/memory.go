// Package memory implements the rewards store with in-process maps. It backs
// tests and the bootstrap mode of cmd/api when no database is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"orbitalliance.org/internal/rewards"
)

type actionRecord struct {
	rewards.Action
	deletedAt *time.Time
}

type productRecord struct {
	rewards.Product
	deletedAt *time.Time
}

type executionRecord struct {
	rewards.Execution
	deletedAt *time.Time
}

type purchaseRecord struct {
	rewards.Purchase
	deletedAt *time.Time
}

// Store is a mutex-guarded, map-backed implementation of rewards.Store.
type Store struct {
	mu           sync.RWMutex
	institutions map[string]*rewards.Institution
	users        map[string]*rewards.User
	memberships  map[string]*rewards.Membership
	actions      map[string]*actionRecord
	products     map[string]*productRecord
	executions   map[string]*executionRecord
	purchases    map[string]*purchaseRecord
	idem         map[string]string // idempotency key -> purchase id
}

// New creates an empty store.
func New() *Store {
	return &Store{
		institutions: make(map[string]*rewards.Institution),
		users:        make(map[string]*rewards.User),
		memberships:  make(map[string]*rewards.Membership),
		actions:      make(map[string]*actionRecord),
		products:     make(map[string]*productRecord),
		executions:   make(map[string]*executionRecord),
		purchases:    make(map[string]*purchaseRecord),
		idem:         make(map[string]string),
	}
}

var _ rewards.Store = (*Store)(nil)

// Institutions

func (s *Store) CreateInstitution(ctx context.Context, inst *rewards.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.institutions {
		if existing.DeletedAt == nil && existing.Email == inst.Email {
			return rewards.ErrConflict
		}
	}
	cp := *inst
	s.institutions[inst.ID] = &cp
	return nil
}

func (s *Store) GetInstitution(ctx context.Context, id string) (rewards.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInstitutionLocked(id)
}

func (s *Store) getInstitutionLocked(id string) (rewards.Institution, error) {
	inst, ok := s.institutions[id]
	if !ok || inst.DeletedAt != nil {
		return rewards.Institution{}, rewards.ErrNotFound
	}
	return *inst, nil
}

func (s *Store) GetInstitutionByEmail(ctx context.Context, email string) (rewards.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inst := range s.institutions {
		if inst.DeletedAt == nil && inst.Email == email {
			return *inst, nil
		}
	}
	return rewards.Institution{}, rewards.ErrNotFound
}

func (s *Store) ListInstitutions(ctx context.Context) ([]rewards.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewards.Institution, 0, len(s.institutions))
	for _, inst := range s.institutions {
		if inst.DeletedAt == nil {
			out = append(out, *inst)
		}
	}
	sortByCreated(out, func(i rewards.Institution) (time.Time, string) { return i.CreatedAt, i.ID })
	return out, nil
}

func (s *Store) UpdateInstitution(ctx context.Context, id string, upd rewards.InstitutionUpdate) (rewards.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.institutions[id]
	if !ok || inst.DeletedAt != nil {
		return rewards.Institution{}, rewards.ErrNotFound
	}
	if upd.Email != nil && *upd.Email != inst.Email {
		for _, other := range s.institutions {
			if other.ID != id && other.DeletedAt == nil && other.Email == *upd.Email {
				return rewards.Institution{}, rewards.ErrConflict
			}
		}
		inst.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		inst.PasswordHash = *upd.PasswordHash
	}
	if upd.Name != nil {
		inst.Name = *upd.Name
	}
	if upd.Wallet != nil {
		inst.Wallet = *upd.Wallet
	}
	inst.UpdatedAt = time.Now().UTC()
	return *inst, nil
}

func (s *Store) DeleteInstitution(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.institutions[id]
	if !ok || inst.DeletedAt != nil {
		return rewards.ErrNotFound
	}
	now := time.Now().UTC()
	inst.DeletedAt = &now
	return nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *rewards.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.DeletedAt != nil {
			continue
		}
		if existing.Email == u.Email {
			return rewards.ErrConflict
		}
		if u.Wallet != "" && existing.Wallet == u.Wallet {
			return rewards.ErrConflict
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (rewards.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUserLocked(id)
}

func (s *Store) getUserLocked(id string) (rewards.User, error) {
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return rewards.User{}, rewards.ErrNotFound
	}
	return *u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (rewards.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.DeletedAt == nil && u.Email == email {
			return *u, nil
		}
	}
	return rewards.User{}, rewards.ErrNotFound
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (rewards.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if wallet == "" {
		return rewards.User{}, rewards.ErrNotFound
	}
	for _, u := range s.users {
		if u.DeletedAt == nil && u.Wallet == wallet {
			return *u, nil
		}
	}
	return rewards.User{}, rewards.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]rewards.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewards.User, 0, len(s.users))
	for _, u := range s.users {
		if u.DeletedAt == nil {
			out = append(out, *u)
		}
	}
	sortByCreated(out, func(u rewards.User) (time.Time, string) { return u.CreatedAt, u.ID })
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd rewards.UserUpdate) (rewards.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return rewards.User{}, rewards.ErrNotFound
	}
	if upd.Email != nil && *upd.Email != u.Email {
		for _, other := range s.users {
			if other.ID != id && other.DeletedAt == nil && other.Email == *upd.Email {
				return rewards.User{}, rewards.ErrConflict
			}
		}
		u.Email = *upd.Email
	}
	if upd.Wallet != nil && *upd.Wallet != u.Wallet {
		if *upd.Wallet != "" {
			for _, other := range s.users {
				if other.ID != id && other.DeletedAt == nil && other.Wallet == *upd.Wallet {
					return rewards.User{}, rewards.ErrConflict
				}
			}
		}
		u.Wallet = *upd.Wallet
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = time.Now().UTC()
	return *u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return rewards.ErrNotFound
	}
	now := time.Now().UTC()
	u.DeletedAt = &now
	return nil
}

// Memberships

func (s *Store) CreateMembership(ctx context.Context, m *rewards.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.UserID == m.UserID && existing.InstitutionID == m.InstitutionID && existing.Active() {
			return rewards.ErrConflict
		}
	}
	cp := *m
	s.memberships[m.ID] = &cp
	return nil
}

func (s *Store) GetActiveMembership(ctx context.Context, userID, institutionID string) (rewards.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.InstitutionID == institutionID && m.Active() {
			return *m, nil
		}
	}
	return rewards.Membership{}, rewards.ErrNotFound
}

func (s *Store) ListMembershipsForUser(ctx context.Context, userID string) ([]rewards.MembershipView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rewards.MembershipView{}
	for _, m := range s.memberships {
		if m.UserID != userID || m.DeletedAt != nil {
			continue
		}
		view := rewards.MembershipView{
			ID:          m.ID,
			Role:        m.Role,
			JoinedAt:    m.JoinedAt,
			LeftAt:      m.LeftAt,
			Institution: rewards.InstitutionSummary{ID: m.InstitutionID},
		}
		if inst, ok := s.institutions[m.InstitutionID]; ok {
			view.Institution = rewards.NewInstitutionSummary(*inst)
		}
		out = append(out, view)
	}
	sortByCreated(out, func(v rewards.MembershipView) (time.Time, string) { return v.JoinedAt, v.ID })
	return out, nil
}

func (s *Store) ListMembers(ctx context.Context, institutionID string) ([]rewards.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rewards.Member{}
	for _, m := range s.memberships {
		if m.InstitutionID != institutionID || m.DeletedAt != nil {
			continue
		}
		member := rewards.Member{
			ID:       m.ID,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
			LeftAt:   m.LeftAt,
			User:     rewards.UserSummary{ID: m.UserID},
		}
		if u, ok := s.users[m.UserID]; ok {
			member.User = rewards.NewUserSummary(*u)
		}
		out = append(out, member)
	}
	sortByCreated(out, func(m rewards.Member) (time.Time, string) { return m.JoinedAt, m.ID })
	return out, nil
}

// Actions

func (s *Store) CreateAction(ctx context.Context, a *rewards.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ID] = &actionRecord{Action: *a}
	return nil
}

func (s *Store) GetAction(ctx context.Context, id string) (rewards.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.actions[id]
	if !ok || rec.deletedAt != nil {
		return rewards.Action{}, rewards.ErrNotFound
	}
	return rec.Action, nil
}

func (s *Store) ListActions(ctx context.Context) ([]rewards.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listActionsLocked(func(a rewards.Action) bool { return true }), nil
}

func (s *Store) ListActionsByInstitution(ctx context.Context, institutionID string) ([]rewards.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listActionsLocked(func(a rewards.Action) bool { return a.InstitutionID == institutionID }), nil
}

func (s *Store) listActionsLocked(keep func(rewards.Action) bool) []rewards.Action {
	out := []rewards.Action{}
	for _, rec := range s.actions {
		if rec.deletedAt == nil && keep(rec.Action) {
			out = append(out, rec.Action)
		}
	}
	sortByCreated(out, func(a rewards.Action) (time.Time, string) { return a.CreatedAt, a.ID })
	return out
}

func (s *Store) ListPublicActions(ctx context.Context) ([]rewards.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.listActionsLocked(func(a rewards.Action) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reward > out[j].Reward })
	return out, nil
}

func (s *Store) SearchActions(ctx context.Context, term string) ([]rewards.ActionWithInstitution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(term)
	out := []rewards.ActionWithInstitution{}
	for _, rec := range s.actions {
		if rec.deletedAt != nil || !matches(needle, rec.Name, rec.Description) {
			continue
		}
		enriched := rewards.ActionWithInstitution{
			Action:      rec.Action,
			Institution: rewards.InstitutionSummary{ID: rec.InstitutionID},
		}
		if inst, ok := s.institutions[rec.InstitutionID]; ok {
			enriched.Institution = rewards.NewInstitutionSummary(*inst)
		}
		out = append(out, enriched)
	}
	sortByCreated(out, func(a rewards.ActionWithInstitution) (time.Time, string) { return a.CreatedAt, a.ID })
	return out, nil
}

func (s *Store) UpdateAction(ctx context.Context, id string, upd rewards.ActionUpdate) (rewards.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actions[id]
	if !ok || rec.deletedAt != nil {
		return rewards.Action{}, rewards.ErrNotFound
	}
	if upd.Name != nil {
		rec.Name = *upd.Name
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	if upd.Reward != nil {
		rec.Reward = *upd.Reward
	}
	rec.UpdatedAt = time.Now().UTC()
	return rec.Action, nil
}

func (s *Store) DeleteAction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actions[id]
	if !ok || rec.deletedAt != nil {
		return rewards.ErrNotFound
	}
	now := time.Now().UTC()
	rec.deletedAt = &now
	return nil
}

// Products

func (s *Store) CreateProduct(ctx context.Context, p *rewards.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &productRecord{Product: *p}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (rewards.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.products[id]
	if !ok || rec.deletedAt != nil {
		return rewards.Product{}, rewards.ErrNotFound
	}
	return rec.Product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]rewards.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProductsLocked(func(p rewards.Product) bool { return true }), nil
}

func (s *Store) ListProductsByInstitution(ctx context.Context, institutionID string) ([]rewards.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProductsLocked(func(p rewards.Product) bool { return p.InstitutionID == institutionID }), nil
}

func (s *Store) ListPublicProducts(ctx context.Context) ([]rewards.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProductsLocked(func(p rewards.Product) bool { return !p.IsInternal }), nil
}

func (s *Store) listProductsLocked(keep func(rewards.Product) bool) []rewards.Product {
	out := []rewards.Product{}
	for _, rec := range s.products {
		if rec.deletedAt == nil && keep(rec.Product) {
			out = append(out, rec.Product)
		}
	}
	sortByCreated(out, func(p rewards.Product) (time.Time, string) { return p.CreatedAt, p.ID })
	return out
}

func (s *Store) SearchProducts(ctx context.Context, term string) ([]rewards.ProductWithInstitution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(term)
	out := []rewards.ProductWithInstitution{}
	for _, rec := range s.products {
		if rec.deletedAt != nil || !matches(needle, rec.Name, rec.Description) {
			continue
		}
		enriched := rewards.ProductWithInstitution{
			Product:     rec.Product,
			Institution: rewards.InstitutionSummary{ID: rec.InstitutionID},
		}
		if inst, ok := s.institutions[rec.InstitutionID]; ok {
			enriched.Institution = rewards.NewInstitutionSummary(*inst)
		}
		out = append(out, enriched)
	}
	sortByCreated(out, func(p rewards.ProductWithInstitution) (time.Time, string) { return p.CreatedAt, p.ID })
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, upd rewards.ProductUpdate) (rewards.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.products[id]
	if !ok || rec.deletedAt != nil {
		return rewards.Product{}, rewards.ErrNotFound
	}
	if upd.InstitutionID != nil {
		rec.InstitutionID = *upd.InstitutionID
	}
	if upd.Name != nil {
		rec.Name = *upd.Name
	}
	if upd.Price != nil {
		rec.Price = *upd.Price
	}
	if upd.IsInternal != nil {
		rec.IsInternal = *upd.IsInternal
	}
	if upd.Image != nil {
		rec.Image = *upd.Image
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	rec.UpdatedAt = time.Now().UTC()
	return rec.Product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.products[id]
	if !ok || rec.deletedAt != nil {
		return rewards.ErrNotFound
	}
	now := time.Now().UTC()
	rec.deletedAt = &now
	return nil
}

// Executions

func (s *Store) CreateExecution(ctx context.Context, e *rewards.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[e.ID] = &executionRecord{Execution: *e}
	return nil
}

func (s *Store) ListExecutionsByStudent(ctx context.Context, userID, institutionID string) ([]rewards.ExecutionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listExecutionsLocked(func(e rewards.Execution) bool {
		if e.UserID != userID {
			return false
		}
		return institutionID == "" || e.InstitutionID == institutionID
	}), nil
}

func (s *Store) ListExecutionsByInstitution(ctx context.Context, institutionID string) ([]rewards.ExecutionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listExecutionsLocked(func(e rewards.Execution) bool { return e.InstitutionID == institutionID }), nil
}

func (s *Store) listExecutionsLocked(keep func(rewards.Execution) bool) []rewards.ExecutionDetail {
	out := []rewards.ExecutionDetail{}
	for _, rec := range s.executions {
		if rec.deletedAt != nil || !keep(rec.Execution) {
			continue
		}
		e := &rec.Execution
		detail := rewards.ExecutionDetail{
			ID:          e.ID,
			Student:     rewards.UserSummary{ID: e.UserID},
			Action:      rewards.ActionSummary{ID: e.ActionID},
			Institution: rewards.InstitutionSummary{ID: e.InstitutionID},
			ExecutedAt:  e.ExecutedAt,
			CreatedAt:   e.CreatedAt,
		}
		if u, ok := s.users[e.UserID]; ok {
			detail.Student = rewards.NewUserSummary(*u)
		}
		if rec, ok := s.actions[e.ActionID]; ok {
			detail.Action = rewards.NewActionSummary(rec.Action)
		}
		if inst, ok := s.institutions[e.InstitutionID]; ok {
			detail.Institution = rewards.NewInstitutionSummary(*inst)
		}
		out = append(out, detail)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExecutedAt.Equal(out[j].ExecutedAt) {
			return out[i].ExecutedAt.After(out[j].ExecutedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) ListExecutionsByAction(ctx context.Context, actionID string) ([]rewards.ExecutionWithStudent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rewards.ExecutionWithStudent{}
	for _, rec := range s.executions {
		if rec.deletedAt != nil || rec.ActionID != actionID {
			continue
		}
		e := &rec.Execution
		row := rewards.ExecutionWithStudent{
			ID:         e.ID,
			Student:    rewards.UserSummary{ID: e.UserID},
			ExecutedAt: e.ExecutedAt,
			CreatedAt:  e.CreatedAt,
		}
		if u, ok := s.users[e.UserID]; ok {
			row.Student = rewards.NewUserSummary(*u)
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExecutedAt.Equal(out[j].ExecutedAt) {
			return out[i].ExecutedAt.After(out[j].ExecutedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Purchases

func (s *Store) CreatePurchase(ctx context.Context, p *rewards.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IdempotencyKey != "" {
		if _, exists := s.idem[p.IdempotencyKey]; exists {
			return rewards.ErrConflict
		}
		s.idem[p.IdempotencyKey] = p.ID
	}
	s.purchases[p.ID] = &purchaseRecord{Purchase: *p}
	return nil
}

func (s *Store) GetPurchaseByIdempotencyKey(ctx context.Context, key string) (rewards.PurchaseWithProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idem[key]
	if !ok {
		return rewards.PurchaseWithProduct{}, rewards.ErrNotFound
	}
	p, ok := s.purchases[id]
	if !ok || p.deletedAt != nil {
		return rewards.PurchaseWithProduct{}, rewards.ErrNotFound
	}
	return s.purchaseWithProductLocked(p.Purchase), nil
}

// purchaseWithProductLocked embeds the product even when it has been
// soft-deleted since the purchase was made.
func (s *Store) purchaseWithProductLocked(p rewards.Purchase) rewards.PurchaseWithProduct {
	out := rewards.PurchaseWithProduct{Purchase: p}
	if rec, ok := s.products[p.ProductID]; ok {
		out.Product = rec.Product
	} else {
		out.Product = rewards.Product{ID: p.ProductID}
	}
	return out
}

func (s *Store) ListPurchasesByUser(ctx context.Context, userID string) ([]rewards.PurchaseWithProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rewards.PurchaseWithProduct{}
	for _, rec := range s.purchases {
		if rec.deletedAt == nil && rec.UserID == userID {
			out = append(out, s.purchaseWithProductLocked(rec.Purchase))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListPurchasesByProduct(ctx context.Context, productID string) ([]rewards.PurchaseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPurchaseDetailsLocked(func(p rewards.Purchase) bool { return p.ProductID == productID }), nil
}

func (s *Store) ListPurchasesByInstitution(ctx context.Context, institutionID string) ([]rewards.PurchaseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPurchaseDetailsLocked(func(p rewards.Purchase) bool {
		rec, ok := s.products[p.ProductID]
		return ok && rec.InstitutionID == institutionID
	}), nil
}

func (s *Store) listPurchaseDetailsLocked(keep func(rewards.Purchase) bool) []rewards.PurchaseDetail {
	out := []rewards.PurchaseDetail{}
	for _, rec := range s.purchases {
		if rec.deletedAt != nil || !keep(rec.Purchase) {
			continue
		}
		p := &rec.Purchase
		withProduct := s.purchaseWithProductLocked(rec.Purchase)
		detail := rewards.PurchaseDetail{
			Purchase: withProduct.Purchase,
			Product:  withProduct.Product,
			User:     rewards.UserSummary{ID: p.UserID},
		}
		if u, ok := s.users[p.UserID]; ok {
			detail.User = rewards.NewUserSummary(*u)
		}
		out = append(out, detail)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func matches(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func sortByCreated[T any](items []T, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
}
