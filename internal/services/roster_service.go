package services

import (
	"context"

	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/repositories/interfaces"
	"safelink/internal/utils"
	"safelink/pkg/logger"
)

// RosterService resolves who gets notified at each escalation step. An empty
// result is a valid outcome; the escalation engine proceeds regardless.
type RosterService interface {
	// InitialResponders returns active proctorial staff reachable by push.
	InitialResponders(ctx context.Context) ([]*models.Staff, error)

	// Stage1Responders returns active proctorial staff reachable by SMS.
	Stage1Responders(ctx context.Context) ([]*models.Staff, error)

	// Stage2Numbers returns the phone numbers to ring when an alert
	// escalates: the configured security hotline, or active security staff
	// phones when no hotline is set.
	Stage2Numbers(ctx context.Context) ([]string, error)

	// SecurityResponders returns active security staff reachable by push,
	// used when a responder forwards an alert to the security office.
	SecurityResponders(ctx context.Context) ([]*models.Staff, error)

	ListStaff(ctx context.Context, params *utils.PaginationParams) ([]*models.Staff, int64, error)
}

type rosterService struct {
	staffRepo interfaces.StaffRepository
	cfg       *config.EscalationConfig
	log       *logger.Logger
}

func NewRosterService(staffRepo interfaces.StaffRepository, cfg *config.EscalationConfig, log *logger.Logger) RosterService {
	return &rosterService{
		staffRepo: staffRepo,
		cfg:       cfg,
		log:       log,
	}
}

func (s *rosterService) InitialResponders(ctx context.Context) ([]*models.Staff, error) {
	members, err := s.staffRepo.GetActiveByRole(ctx, models.StaffRoleProctorial)
	if err != nil {
		return nil, err
	}

	reachable := filterStaff(members, (*models.Staff).HasPushToken)
	if len(reachable) == 0 {
		s.log.Warn("No proctorial staff reachable by push")
	}

	return reachable, nil
}

func (s *rosterService) Stage1Responders(ctx context.Context) ([]*models.Staff, error) {
	members, err := s.staffRepo.GetActiveByRole(ctx, models.StaffRoleProctorial)
	if err != nil {
		return nil, err
	}

	return filterStaff(members, (*models.Staff).HasPhone), nil
}

func (s *rosterService) Stage2Numbers(ctx context.Context) ([]string, error) {
	if s.cfg.HotlineNumber != "" {
		return []string{s.cfg.HotlineNumber}, nil
	}

	members, err := s.staffRepo.GetActiveByRole(ctx, models.StaffRoleSecurity)
	if err != nil {
		return nil, err
	}

	var numbers []string
	for _, staff := range members {
		if staff.HasPhone() {
			numbers = append(numbers, staff.Phone)
		}
	}

	return numbers, nil
}

func (s *rosterService) SecurityResponders(ctx context.Context) ([]*models.Staff, error) {
	members, err := s.staffRepo.GetActiveByRole(ctx, models.StaffRoleSecurity)
	if err != nil {
		return nil, err
	}

	return filterStaff(members, (*models.Staff).HasPushToken), nil
}

func (s *rosterService) ListStaff(ctx context.Context, params *utils.PaginationParams) ([]*models.Staff, int64, error) {
	return s.staffRepo.List(ctx, params)
}

func filterStaff(members []*models.Staff, keep func(*models.Staff) bool) []*models.Staff {
	var out []*models.Staff
	for _, staff := range members {
		if keep(staff) {
			out = append(out, staff)
		}
	}
	return out
}
