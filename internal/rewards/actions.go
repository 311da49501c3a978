package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CreateActionInput carries the attributes for a new action.
type CreateActionInput struct {
	Name        string
	Description string
	Reward      int64
}

// UpdateActionInput is the partial update shape for actions.
type UpdateActionInput struct {
	Name        *string
	Description *string
	Reward      *int64
}

// CreateAction creates an action under the owning institution.
func (s *Service) CreateAction(ctx context.Context, institutionID string, in CreateActionInput) (Action, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return Action{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Action{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Reward < 0 {
		return Action{}, fmt.Errorf("%w: reward must be >= 0", ErrInvalidInput)
	}

	now := s.timestamp()
	a := Action{
		ID:            s.newID(),
		InstitutionID: institutionID,
		Name:          in.Name,
		Description:   strings.TrimSpace(in.Description),
		Reward:        in.Reward,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAction(ctx, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// GetAction returns one live action.
func (s *Service) GetAction(ctx context.Context, id string) (Action, error) {
	return s.store.GetAction(ctx, id)
}

// ListActions returns every live action.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.store.ListActions(ctx)
}

// ListActionsByInstitution returns the institution's live actions.
func (s *Service) ListActionsByInstitution(ctx context.Context, institutionID string) ([]Action, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.store.ListActionsByInstitution(ctx, institutionID)
}

// ListPublicActions returns all live actions ordered by reward descending.
func (s *Service) ListPublicActions(ctx context.Context) ([]Action, error) {
	return s.store.ListPublicActions(ctx)
}

// SearchActions performs a case-insensitive substring match over name and
// description. The term must be at least two characters long.
func (s *Service) SearchActions(ctx context.Context, term string) ([]ActionWithInstitution, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, fmt.Errorf("%w: search term must be at least 2 characters long", ErrInvalidInput)
	}
	return s.store.SearchActions(ctx, term)
}

// UpdateAction applies a partial update; a negative reward is rejected.
func (s *Service) UpdateAction(ctx context.Context, id string, in UpdateActionInput) (Action, error) {
	if in.Reward != nil && *in.Reward < 0 {
		return Action{}, fmt.Errorf("%w: reward must be >= 0", ErrInvalidInput)
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return Action{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		in.Name = &trimmed
	}
	return s.store.UpdateAction(ctx, id, ActionUpdate{
		Name:        in.Name,
		Description: in.Description,
		Reward:      in.Reward,
	})
}

// DeleteAction soft-deletes an action.
func (s *Service) DeleteAction(ctx context.Context, id string) error {
	return s.store.DeleteAction(ctx, id)
}

// ActionDetails returns an action with its owning institution summary. A
// soft-deleted owner degrades to a bare identifier so the action itself stays
// readable.
func (s *Service) ActionDetails(ctx context.Context, id string) (ActionDetails, error) {
	a, err := s.store.GetAction(ctx, id)
	if err != nil {
		return ActionDetails{}, err
	}
	detail := ActionDetails{Action: a}
	inst, err := s.store.GetInstitution(ctx, a.InstitutionID)
	switch {
	case err == nil:
		detail.Institution = NewInstitutionSummary(inst)
	case errors.Is(err, ErrNotFound):
		detail.Institution = InstitutionSummary{ID: a.InstitutionID}
	default:
		return ActionDetails{}, err
	}
	return detail, nil
}

// ActionExecutions returns the action's executions with student summaries,
// most recent first.
func (s *Service) ActionExecutions(ctx context.Context, id string) ([]ExecutionWithStudent, error) {
	if _, err := s.store.GetAction(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListExecutionsByAction(ctx, id)
}
