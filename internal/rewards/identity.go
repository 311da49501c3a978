package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RegisterInstitutionInput carries the attributes for institution signup.
type RegisterInstitutionInput struct {
	Email    string
	Password string
	Name     string
	Wallet   string
}

// RegisterUserInput carries the attributes for user signup.
type RegisterUserInput struct {
	Name     string
	Email    string
	Wallet   string
	Password string
}

// UpdateInstitutionInput is the partial update shape; nil fields are left as is.
type UpdateInstitutionInput struct {
	Email    *string
	Password *string
	Name     *string
	Wallet   *string
}

// UpdateUserInput is the partial update shape for users.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Wallet   *string
	Password *string
}

// RegisterInstitution creates a new institution principal. Email uniqueness
// is checked against live rows only; the match is exact (case-sensitive),
// mirroring the original behavior.
func (s *Service) RegisterInstitution(ctx context.Context, in RegisterInstitutionInput) (PublicInstitution, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return PublicInstitution{}, fmt.Errorf("%w: email, password and name are required", ErrInvalidInput)
	}

	if _, err := s.store.GetInstitutionByEmail(ctx, in.Email); err == nil {
		return PublicInstitution{}, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return PublicInstitution{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return PublicInstitution{}, err
	}

	now := s.timestamp()
	inst := Institution{
		ID:           s.newID(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Wallet:       strings.TrimSpace(in.Wallet),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateInstitution(ctx, &inst); err != nil {
		return PublicInstitution{}, err
	}
	return NewPublicInstitution(inst), nil
}

// AuthenticateInstitution verifies email+password credentials. The error is
// identical for an unknown email and a wrong password.
func (s *Service) AuthenticateInstitution(ctx context.Context, email, password string) (PublicInstitution, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return PublicInstitution{}, ErrInvalidCredentials
	}
	inst, err := s.store.GetInstitutionByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicInstitution{}, ErrInvalidCredentials
		}
		return PublicInstitution{}, err
	}
	if err := verifyPassword(inst.PasswordHash, password); err != nil {
		return PublicInstitution{}, ErrInvalidCredentials
	}
	return NewPublicInstitution(inst), nil
}

// GetInstitution returns one live institution.
func (s *Service) GetInstitution(ctx context.Context, id string) (PublicInstitution, error) {
	inst, err := s.store.GetInstitution(ctx, id)
	if err != nil {
		return PublicInstitution{}, err
	}
	return NewPublicInstitution(inst), nil
}

// ListInstitutions returns all live institutions.
func (s *Service) ListInstitutions(ctx context.Context) ([]PublicInstitution, error) {
	insts, err := s.store.ListInstitutions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PublicInstitution, 0, len(insts))
	for _, inst := range insts {
		out = append(out, NewPublicInstitution(inst))
	}
	return out, nil
}

// UpdateInstitution applies a partial update. Email changes re-run the
// duplicate check; password changes are re-hashed.
func (s *Service) UpdateInstitution(ctx context.Context, id string, in UpdateInstitutionInput) (PublicInstitution, error) {
	existing, err := s.store.GetInstitution(ctx, id)
	if err != nil {
		return PublicInstitution{}, err
	}

	upd := InstitutionUpdate{Name: in.Name, Wallet: in.Wallet}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return PublicInstitution{}, fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
		}
		if email != existing.Email {
			if _, err := s.store.GetInstitutionByEmail(ctx, email); err == nil {
				return PublicInstitution{}, fmt.Errorf("%w: email already registered", ErrConflict)
			} else if !errors.Is(err, ErrNotFound) {
				return PublicInstitution{}, err
			}
		}
		upd.Email = &email
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return PublicInstitution{}, err
		}
		upd.PasswordHash = &hash
	}

	inst, err := s.store.UpdateInstitution(ctx, id, upd)
	if err != nil {
		return PublicInstitution{}, err
	}
	return NewPublicInstitution(inst), nil
}

// DeleteInstitution soft-deletes an institution.
func (s *Service) DeleteInstitution(ctx context.Context, id string) error {
	return s.store.DeleteInstitution(ctx, id)
}

// InstitutionDetails returns an institution with its members and catalog.
func (s *Service) InstitutionDetails(ctx context.Context, id string) (InstitutionDetails, error) {
	inst, err := s.store.GetInstitution(ctx, id)
	if err != nil {
		return InstitutionDetails{}, err
	}
	members, err := s.store.ListMembers(ctx, id)
	if err != nil {
		return InstitutionDetails{}, err
	}
	actions, err := s.store.ListActionsByInstitution(ctx, id)
	if err != nil {
		return InstitutionDetails{}, err
	}
	products, err := s.store.ListProductsByInstitution(ctx, id)
	if err != nil {
		return InstitutionDetails{}, err
	}
	return InstitutionDetails{
		PublicInstitution: NewPublicInstitution(inst),
		Members:           members,
		Actions:           actions,
		Products:          products,
	}, nil
}

// RegisterUser creates a new user principal. Both email and wallet must be
// unique among live users.
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (PublicUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Wallet = strings.TrimSpace(in.Wallet)
	if in.Name == "" || in.Email == "" || in.Wallet == "" || in.Password == "" {
		return PublicUser{}, fmt.Errorf("%w: name, email, wallet and password are required", ErrInvalidInput)
	}

	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return PublicUser{}, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return PublicUser{}, err
	}
	if _, err := s.store.GetUserByWallet(ctx, in.Wallet); err == nil {
		return PublicUser{}, fmt.Errorf("%w: wallet already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return PublicUser{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return PublicUser{}, err
	}

	now := s.timestamp()
	u := User{
		ID:           s.newID(),
		Name:         in.Name,
		Email:        in.Email,
		Wallet:       in.Wallet,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return PublicUser{}, err
	}
	return NewPublicUser(u), nil
}

// AuthenticateUser verifies email+password credentials for a user.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (PublicUser, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return PublicUser{}, ErrInvalidCredentials
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicUser{}, ErrInvalidCredentials
		}
		return PublicUser{}, err
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return PublicUser{}, ErrInvalidCredentials
	}
	return NewPublicUser(u), nil
}

// AuthenticateUserByWallet resolves a user by wallet address alone. This is a
// deliberately reduced-assurance login mode used by the wallet client flow;
// it performs no password check.
func (s *Service) AuthenticateUserByWallet(ctx context.Context, wallet string) (PublicUser, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return PublicUser{}, ErrInvalidCredentials
	}
	u, err := s.store.GetUserByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicUser{}, ErrInvalidCredentials
		}
		return PublicUser{}, err
	}
	return NewPublicUser(u), nil
}

// GetUser returns one live user.
func (s *Service) GetUser(ctx context.Context, id string) (PublicUser, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return PublicUser{}, err
	}
	return NewPublicUser(u), nil
}

// ListUsers returns all live users.
func (s *Service) ListUsers(ctx context.Context) ([]PublicUser, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, NewPublicUser(u))
	}
	return out, nil
}

// UpdateUser applies a partial update with the same duplicate checks as
// registration for changed email/wallet.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (PublicUser, error) {
	existing, err := s.store.GetUser(ctx, id)
	if err != nil {
		return PublicUser{}, err
	}

	upd := UserUpdate{Name: in.Name}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return PublicUser{}, fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
		}
		if email != existing.Email {
			if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
				return PublicUser{}, fmt.Errorf("%w: email already registered", ErrConflict)
			} else if !errors.Is(err, ErrNotFound) {
				return PublicUser{}, err
			}
		}
		upd.Email = &email
	}
	if in.Wallet != nil {
		wallet := strings.TrimSpace(*in.Wallet)
		if wallet == "" {
			return PublicUser{}, fmt.Errorf("%w: wallet must not be empty", ErrInvalidInput)
		}
		if wallet != existing.Wallet {
			if _, err := s.store.GetUserByWallet(ctx, wallet); err == nil {
				return PublicUser{}, fmt.Errorf("%w: wallet already registered", ErrConflict)
			} else if !errors.Is(err, ErrNotFound) {
				return PublicUser{}, err
			}
		}
		upd.Wallet = &wallet
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return PublicUser{}, err
		}
		upd.PasswordHash = &hash
	}

	u, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return PublicUser{}, err
	}
	return NewPublicUser(u), nil
}

// DeleteUser soft-deletes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}

// UserDetails returns a user with its memberships.
func (s *Service) UserDetails(ctx context.Context, id string) (UserDetails, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return UserDetails{}, err
	}
	memberships, err := s.store.ListMembershipsForUser(ctx, id)
	if err != nil {
		return UserDetails{}, err
	}
	return UserDetails{
		PublicUser:  NewPublicUser(u),
		Memberships: memberships,
	}, nil
}
