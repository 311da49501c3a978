package rewards

import "context"

// Store describes the persistence operations the service depends on.
//
// Every read filters soft-deleted rows; absent rows surface as ErrNotFound,
// uniqueness violations as ErrConflict. The enriched list methods embed
// associated summaries so the storage layer can join instead of the service
// issuing N+1 reads.
type Store interface {
	CreateInstitution(ctx context.Context, inst *Institution) error
	GetInstitution(ctx context.Context, id string) (Institution, error)
	GetInstitutionByEmail(ctx context.Context, email string) (Institution, error)
	ListInstitutions(ctx context.Context) ([]Institution, error)
	UpdateInstitution(ctx context.Context, id string, upd InstitutionUpdate) (Institution, error)
	DeleteInstitution(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByWallet(ctx context.Context, wallet string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error

	// CreateMembership fails with ErrConflict when an active membership for
	// the same (user, institution) pair already exists.
	CreateMembership(ctx context.Context, m *Membership) error
	GetActiveMembership(ctx context.Context, userID, institutionID string) (Membership, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]MembershipView, error)
	ListMembers(ctx context.Context, institutionID string) ([]Member, error)

	CreateAction(ctx context.Context, a *Action) error
	GetAction(ctx context.Context, id string) (Action, error)
	ListActions(ctx context.Context) ([]Action, error)
	ListActionsByInstitution(ctx context.Context, institutionID string) ([]Action, error)
	// ListPublicActions returns all live actions ordered by reward descending.
	ListPublicActions(ctx context.Context) ([]Action, error)
	SearchActions(ctx context.Context, term string) ([]ActionWithInstitution, error)
	UpdateAction(ctx context.Context, id string, upd ActionUpdate) (Action, error)
	DeleteAction(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsByInstitution(ctx context.Context, institutionID string) ([]Product, error)
	// ListPublicProducts returns live products with is_internal=false.
	ListPublicProducts(ctx context.Context) ([]Product, error)
	SearchProducts(ctx context.Context, term string) ([]ProductWithInstitution, error)
	UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateExecution(ctx context.Context, e *Execution) error
	// institutionID narrows the result when non-empty. Ordered by executed_at
	// descending.
	ListExecutionsByStudent(ctx context.Context, userID, institutionID string) ([]ExecutionDetail, error)
	ListExecutionsByInstitution(ctx context.Context, institutionID string) ([]ExecutionDetail, error)
	ListExecutionsByAction(ctx context.Context, actionID string) ([]ExecutionWithStudent, error)

	CreatePurchase(ctx context.Context, p *Purchase) error
	GetPurchaseByIdempotencyKey(ctx context.Context, key string) (PurchaseWithProduct, error)
	ListPurchasesByUser(ctx context.Context, userID string) ([]PurchaseWithProduct, error)
	ListPurchasesByProduct(ctx context.Context, productID string) ([]PurchaseDetail, error)
	ListPurchasesByInstitution(ctx context.Context, institutionID string) ([]PurchaseDetail, error)
}

// InstitutionUpdate carries the mutable institution fields; nil means "leave as is".
type InstitutionUpdate struct {
	Email        *string
	PasswordHash *string
	Name         *string
	Wallet       *string
}

// UserUpdate carries the mutable user fields.
type UserUpdate struct {
	Name         *string
	Email        *string
	Wallet       *string
	PasswordHash *string
}

// ActionUpdate carries the mutable action fields.
type ActionUpdate struct {
	Name        *string
	Description *string
	Reward      *int64
}

// ProductUpdate carries the mutable product fields. InstitutionID permits
// re-parenting; the service validates the new owner first.
type ProductUpdate struct {
	InstitutionID *string
	Name          *string
	Price         *int64
	IsInternal    *bool
	Image         *string
	Description   *string
}
