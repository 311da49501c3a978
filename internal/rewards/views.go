package rewards

import "time"

// Output view types. Each entity has exactly one mapping function producing
// its public shape; handlers never serialise a raw Institution or User, so a
// password hash cannot leak through a forgotten field.

// PublicInstitution is the external shape of an Institution.
type PublicInstitution struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Wallet    string    `json:"wallet,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicUser is the external shape of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Wallet    string    `json:"wallet"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InstitutionSummary is the embedded form used when enriching other entities.
type InstitutionSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserSummary is the embedded form of a user.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ActionSummary is the embedded form of an action.
type ActionSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Reward      int64  `json:"reward"`
}

// MembershipView is a membership enriched with its institution summary.
type MembershipView struct {
	ID          string             `json:"id"`
	Role        Role               `json:"role"`
	JoinedAt    time.Time          `json:"joined_at"`
	LeftAt      *time.Time         `json:"left_at,omitempty"`
	Institution InstitutionSummary `json:"institution"`
}

// Active reports whether the membership is still current.
func (m MembershipView) Active() bool { return m.LeftAt == nil }

// Member is a membership enriched with its user summary, as listed from the
// institution side.
type Member struct {
	ID       string      `json:"id"`
	Role     Role        `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
	LeftAt   *time.Time  `json:"left_at,omitempty"`
	User     UserSummary `json:"user"`
}

// ActionWithInstitution enriches an action with its owning institution.
type ActionWithInstitution struct {
	Action
	Institution InstitutionSummary `json:"institution"`
}

// ProductWithInstitution enriches a product with its owning institution.
type ProductWithInstitution struct {
	Product
	Institution InstitutionSummary `json:"institution"`
}

// ExecutionWithStudent is an execution row enriched with the student summary,
// as listed under an action.
type ExecutionWithStudent struct {
	ID         string      `json:"id"`
	Student    UserSummary `json:"student"`
	ExecutedAt time.Time   `json:"executed_at"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ExecutionDetail is a fully enriched execution record.
type ExecutionDetail struct {
	ID          string             `json:"id"`
	Student     UserSummary        `json:"student"`
	Action      ActionSummary      `json:"action"`
	Institution InstitutionSummary `json:"institution"`
	ExecutedAt  time.Time          `json:"executed_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

// PurchaseWithProduct is a purchase enriched with its product. The product is
// embedded even when it has since been soft-deleted: purchase history keeps
// its integrity over live-catalog purity.
type PurchaseWithProduct struct {
	Purchase
	Product Product `json:"product"`
}

// PurchaseDetail additionally embeds the purchaser summary, as listed from
// the institution side.
type PurchaseDetail struct {
	Purchase
	Product Product     `json:"product"`
	User    UserSummary `json:"user"`
}

// InstitutionDetails is an institution enriched with members and catalog.
type InstitutionDetails struct {
	PublicInstitution
	Members  []Member  `json:"members"`
	Actions  []Action  `json:"actions"`
	Products []Product `json:"products"`
}

// UserDetails is a user enriched with its memberships.
type UserDetails struct {
	PublicUser
	Memberships []MembershipView `json:"memberships"`
}

// ActionDetails is an action enriched with its owning institution.
type ActionDetails struct {
	Action
	Institution InstitutionSummary `json:"institution"`
}

// ProductDetails is a product enriched with its owning institution.
type ProductDetails struct {
	Product
	Institution InstitutionSummary `json:"institution"`
}

// NewPublicInstitution maps an Institution to its external shape.
func NewPublicInstitution(i Institution) PublicInstitution {
	return PublicInstitution{
		ID:        i.ID,
		Email:     i.Email,
		Name:      i.Name,
		Wallet:    i.Wallet,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// NewPublicUser maps a User to its external shape.
func NewPublicUser(u User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Wallet:    u.Wallet,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewInstitutionSummary maps an Institution to its embedded form.
func NewInstitutionSummary(i Institution) InstitutionSummary {
	return InstitutionSummary{ID: i.ID, Name: i.Name}
}

// NewUserSummary maps a User to its embedded form.
func NewUserSummary(u User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// NewActionSummary maps an Action to its embedded form.
func NewActionSummary(a Action) ActionSummary {
	return ActionSummary{ID: a.ID, Name: a.Name, Description: a.Description, Reward: a.Reward}
}
