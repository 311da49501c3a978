package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeclareExecutionInput is a teacher's attestation that a student completed
// an action. StudentEmail identifies the student; ExecutedAt is optional and
// defaults to now (backdating is permitted).
type DeclareExecutionInput struct {
	ActionID     string
	StudentEmail string
	ExecutedAt   *time.Time
}

// DeclareExecution records an execution on behalf of a teacher. The checks
// run in a fixed order so callers always see the most specific failure:
//
//  1. the action exists,
//  2. the action belongs to the teacher's institution,
//  3. the student exists,
//  4. the student has an active membership in that institution,
//  5. that membership's role is comum.
//
// Duplicate declarations for the same (student, action) pair are allowed;
// repeating an action is a legitimate event.
func (s *Service) DeclareExecution(ctx context.Context, teacherInstitutionID string, in DeclareExecutionInput) (ExecutionDetail, error) {
	in.ActionID = strings.TrimSpace(in.ActionID)
	in.StudentEmail = strings.TrimSpace(in.StudentEmail)
	if in.ActionID == "" {
		return ExecutionDetail{}, fmt.Errorf("%w: action_id is required", ErrInvalidInput)
	}
	if in.StudentEmail == "" {
		return ExecutionDetail{}, fmt.Errorf("%w: student_email is required", ErrInvalidInput)
	}

	action, err := s.store.GetAction(ctx, in.ActionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ExecutionDetail{}, fmt.Errorf("%w: action not found", ErrNotFound)
		}
		return ExecutionDetail{}, err
	}
	if action.InstitutionID != teacherInstitutionID {
		return ExecutionDetail{}, fmt.Errorf("%w: action does not belong to your institution", ErrForbidden)
	}

	student, err := s.store.GetUserByEmail(ctx, in.StudentEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ExecutionDetail{}, fmt.Errorf("%w: student not found", ErrNotFound)
		}
		return ExecutionDetail{}, err
	}

	membership, err := s.store.GetActiveMembership(ctx, student.ID, teacherInstitutionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ExecutionDetail{}, fmt.Errorf("%w: student is not active in your institution", ErrForbidden)
		}
		return ExecutionDetail{}, err
	}
	if membership.Role != RoleComum {
		return ExecutionDetail{}, fmt.Errorf("%w: executions can only be declared for %s members", ErrForbidden, RoleComum)
	}

	now := s.timestamp()
	executedAt := now
	if in.ExecutedAt != nil {
		executedAt = in.ExecutedAt.UTC()
	}
	exec := Execution{
		ID:            s.newID(),
		UserID:        student.ID,
		ActionID:      action.ID,
		InstitutionID: teacherInstitutionID,
		ExecutedAt:    executedAt,
		CreatedAt:     now,
	}
	if err := s.store.CreateExecution(ctx, &exec); err != nil {
		return ExecutionDetail{}, err
	}

	detail := ExecutionDetail{
		ID:          exec.ID,
		Student:     NewUserSummary(student),
		Action:      NewActionSummary(action),
		Institution: InstitutionSummary{ID: teacherInstitutionID},
		ExecutedAt:  exec.ExecutedAt,
		CreatedAt:   exec.CreatedAt,
	}
	if inst, err := s.store.GetInstitution(ctx, teacherInstitutionID); err == nil {
		detail.Institution = NewInstitutionSummary(inst)
	}
	return detail, nil
}

// StudentExecutions lists a student's executions, newest first. A non-empty
// institutionID narrows the result to that institution's actions.
func (s *Service) StudentExecutions(ctx context.Context, userID, institutionID string) ([]ExecutionDetail, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListExecutionsByStudent(ctx, userID, institutionID)
}

// InstitutionExecutions lists every execution declared under the institution.
func (s *Service) InstitutionExecutions(ctx context.Context, institutionID string) ([]ExecutionDetail, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.store.ListExecutionsByInstitution(ctx, institutionID)
}
