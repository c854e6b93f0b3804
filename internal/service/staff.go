package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/clinic-keeper/internal/authz"
	pkgcrypto "github.com/and161185/clinic-keeper/internal/crypto"
	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/repository"
)

// StaffService manages clinic employee accounts.
type StaffService interface {
	// CreateStaff registers an employee account.
	CreateStaff(ctx context.Context, p model.Principal, in model.NewStaff) (*model.Staff, error)
	// ListStaff returns every employee account.
	ListStaff(ctx context.Context, p model.Principal) ([]model.Staff, error)
	// EnsureAdmin creates the bootstrap administrator unless its CPF exists.
	EnsureAdmin(ctx context.Context, in model.NewStaff) (created bool, err error)
}

type StaffServiceImpl struct {
	repo repository.StaffRepository
	log  *zap.Logger
}

// NewStaffService constructs StaffService.
func NewStaffService(repo repository.StaffRepository, log *zap.Logger) *StaffServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &StaffServiceImpl{repo: repo, log: log}
}

func (s *StaffServiceImpl) CreateStaff(ctx context.Context, p model.Principal, in model.NewStaff) (*model.Staff, error) {
	if err := authz.Check(p, authz.StaffCreate); err != nil {
		return nil, err
	}
	st, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("staff created", zap.Int64("staff_id", st.ID), zap.String("role", st.Role), zap.String("by", p.Username))
	return st, nil
}

func (s *StaffServiceImpl) ListStaff(ctx context.Context, p model.Principal) ([]model.Staff, error) {
	if err := authz.Check(p, authz.StaffList); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no staff found", errs.ErrNotFound)
	}
	return list, nil
}

// EnsureAdmin is idempotent: an existing account with the same CPF is left
// untouched, whatever its role.
func (s *StaffServiceImpl) EnsureAdmin(ctx context.Context, in model.NewStaff) (bool, error) {
	in.CPF = normalizeCPF(in.CPF)
	in.Role = model.RoleAdmin
	_, err := s.repo.GetByCPF(ctx, in.CPF)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, errs.ErrNotFound):
		return false, err
	}
	st, err := s.create(ctx, in)
	if err != nil {
		return false, err
	}
	s.log.Info("bootstrap admin created", zap.Int64("staff_id", st.ID), zap.String("username", st.Username))
	return true, nil
}

func (s *StaffServiceImpl) create(ctx context.Context, in model.NewStaff) (*model.Staff, error) {
	in.CPF = normalizeCPF(in.CPF)
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	if err := checkCPF(in.CPF); err != nil {
		return nil, err
	}
	for _, c := range []struct {
		rule fieldRule
		v    string
	}{
		{ruleUsername, in.Username},
		{rulePassword, in.Password},
		{ruleRole, in.Role},
	} {
		if err := c.rule.check(c.v); err != nil {
			return nil, err
		}
	}

	hash, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	st := &model.Staff{Username: in.Username, CPF: in.CPF, PwdHash: hash, Role: in.Role}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
