package services

import (
	"context"
	"fmt"
	"time"

	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/repositories/interfaces"
	"safelink/internal/utils"
	"safelink/internal/validators"
	"safelink/pkg/logger"
	"safelink/pkg/scheduler"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EscalationService is the alert lifecycle engine. It creates alerts, fans
// out the immediate push wave, runs the timed escalation stages, and applies
// human responses with first-writer-wins semantics.
type EscalationService interface {
	CreateAlert(ctx context.Context, req *models.CreateAlertRequest) (*models.CreateAlertResponse, error)
	ExecuteStage1(ctx context.Context, alertID primitive.ObjectID) (*models.StageResult, error)
	ExecuteStage2(ctx context.Context, alertID primitive.ObjectID) (*models.StageResult, error)
	RespondToAlert(ctx context.Context, alertID primitive.ObjectID, outcome models.ResponseOutcome, req *models.RespondRequest) (*models.RespondResponse, error)
	ForwardToSecurity(ctx context.Context, alertID primitive.ObjectID, req *models.ForwardRequest) (int, error)

	GetAlert(ctx context.Context, alertID primitive.ObjectID) (*models.Alert, error)
	ListAlerts(ctx context.Context, status *models.AlertStatus, limit int, cursor string) ([]*models.Alert, string, error)
	GetPendingAlerts(ctx context.Context) ([]*models.Alert, error)
	GetDeliveryLogs(ctx context.Context, alertID primitive.ObjectID) ([]*models.DeliveryLog, error)
}

type escalationService struct {
	alertRepo    interfaces.AlertRepository
	deliveryRepo interfaces.DeliveryLogRepository
	roster       RosterService
	notifier     NotificationService
	sched        scheduler.Scheduler
	cfg          *config.EscalationConfig
	log          *logger.Logger
}

func NewEscalationService(
	alertRepo interfaces.AlertRepository,
	deliveryRepo interfaces.DeliveryLogRepository,
	roster RosterService,
	notifier NotificationService,
	sched scheduler.Scheduler,
	cfg *config.EscalationConfig,
	log *logger.Logger,
) EscalationService {
	return &escalationService{
		alertRepo:    alertRepo,
		deliveryRepo: deliveryRepo,
		roster:       roster,
		notifier:     notifier,
		sched:        sched,
		cfg:          cfg,
		log:          log,
	}
}

// CreateAlert validates and persists a distress report, pushes it to every
// reachable proctorial responder, and schedules both escalation stages.
// Validation runs before any write so a rejected report leaves no record.
func (s *escalationService) CreateAlert(ctx context.Context, req *models.CreateAlertRequest) (*models.CreateAlertResponse, error) {
	if err := validators.ValidateCreateAlert(req); err != nil {
		return nil, err
	}

	alert := &models.Alert{
		StudentID:      req.StudentID,
		StudentName:    req.StudentName,
		StudentPhone:   req.StudentPhone,
		StudentEmail:   req.StudentEmail,
		PushToken:      req.PushToken,
		Department:     req.Department,
		Session:        req.Session,
		Location:       req.Location,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		GuardianPhones: req.GuardianPhones,
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return nil, err
	}

	s.log.LogAlertEvent(alert.ID, "created", map[string]interface{}{
		"student_id": alert.StudentID,
		"location":   alert.Location,
	})

	// Immediate push wave. A zero-responder roster is not an error; the
	// timed stages still cover the alert.
	notified := 0
	responders, err := s.roster.InitialResponders(ctx)
	if err != nil {
		s.log.WithError(err).WithAlertID(alert.ID).Error("Failed to resolve initial responders")
	} else {
		notified, _ = s.notifier.SendPushAlerts(ctx, alert, 0, responders)
	}

	// Emergency contacts the student registered get their own SMS wave,
	// outside the responder escalation path.
	guardiansNotified, _ := s.notifier.SendGuardianSMS(ctx, alert)

	if notified > 0 || guardiansNotified > 0 {
		if err := s.alertRepo.Update(ctx, alert.ID, map[string]interface{}{
			"initial_notified":   notified,
			"guardians_notified": guardiansNotified,
		}); err != nil {
			s.log.WithError(err).WithAlertID(alert.ID).Warn("Failed to record initial notification counts")
		}
	}

	s.scheduleStages(ctx, alert.ID)

	return &models.CreateAlertResponse{
		AlertID:       alert.ID,
		CreatedAt:     alert.CreatedAt,
		NotifiedCount: notified,
	}, nil
}

// scheduleStages books both delayed escalations and stores their handles so
// a responder can cancel them later. A scheduling failure is logged but does
// not fail alert creation; the alert stays visible on the pending list.
func (s *escalationService) scheduleStages(ctx context.Context, alertID primitive.ObjectID) {
	payload := []byte(alertID.Hex())

	var stage1Handle, stage2Handle *string

	if handle, err := s.sched.Schedule(ctx, utils.TaskExecuteStage1, payload, s.cfg.Stage1Delay); err != nil {
		s.log.WithError(err).WithAlertID(alertID).WithStage(1).Error("Failed to schedule escalation stage")
	} else {
		stage1Handle = &handle
	}

	if handle, err := s.sched.Schedule(ctx, utils.TaskExecuteStage2, payload, s.cfg.Stage2Delay); err != nil {
		s.log.WithError(err).WithAlertID(alertID).WithStage(2).Error("Failed to schedule escalation stage")
	} else {
		stage2Handle = &handle
	}

	if stage1Handle == nil && stage2Handle == nil {
		return
	}

	if err := s.alertRepo.SetTaskHandles(ctx, alertID, stage1Handle, stage2Handle); err != nil {
		s.log.WithError(err).WithAlertID(alertID).Warn("Failed to store stage task handles")
	}
}

// ExecuteStage1 texts every proctorial responder with a phone number, unless
// the alert was resolved first or this stage already ran. The fan-out runs
// before the sent flag is written: an error anywhere up to the flag write
// leaves the flag untouched, so the runner's at-least-once retry re-drives
// the stage instead of finding it falsely claimed. The flag write itself is
// conditional, so of two racing executions only one records the stage.
func (s *escalationService) ExecuteStage1(ctx context.Context, alertID primitive.ObjectID) (*models.StageResult, error) {
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if alert.IsResolved() {
		s.log.LogAlertEvent(alertID, "stage1_skipped", map[string]interface{}{"reason": models.SkipReasonResolved})
		return &models.StageResult{Stage: 1, Skipped: true, SkipReason: models.SkipReasonResolved}, nil
	}
	if alert.Stage1Sent {
		return &models.StageResult{Stage: 1, Skipped: true, SkipReason: models.SkipReasonAlreadySent}, nil
	}

	responders, err := s.roster.Stage1Responders(ctx)
	if err != nil {
		return nil, err
	}

	delivered, failed := s.notifier.SendSMSAlerts(ctx, alert, 1, responders)

	recorded, err := s.alertRepo.MarkStageSent(ctx, alertID, 1, time.Now(), delivered, failed, false)
	if err != nil {
		return nil, err
	}
	if !recorded {
		return &models.StageResult{Stage: 1, Skipped: true, SkipReason: models.SkipReasonAlreadySent}, nil
	}

	s.log.LogAlertEvent(alertID, "stage1_executed", map[string]interface{}{
		"delivered": delivered,
		"failed":    failed,
	})

	return &models.StageResult{Stage: 1, SuccessCount: delivered, FailureCount: failed}, nil
}

// ExecuteStage2 rings the security hotline and marks the alert escalated.
// The status moves to escalated whether or not any call connects; an unheard
// alert must never look resolved. Flag, tallies and status land in a single
// conditional write after the fan-out: an error before it leaves the stage
// unclaimed for the runner's retry, and a human response that won the status
// race in the meantime keeps it.
func (s *escalationService) ExecuteStage2(ctx context.Context, alertID primitive.ObjectID) (*models.StageResult, error) {
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if alert.IsResolved() {
		s.log.LogAlertEvent(alertID, "stage2_skipped", map[string]interface{}{"reason": models.SkipReasonResolved})
		return &models.StageResult{Stage: 2, Skipped: true, SkipReason: models.SkipReasonResolved}, nil
	}
	if alert.Stage2Sent {
		return &models.StageResult{Stage: 2, Skipped: true, SkipReason: models.SkipReasonAlreadySent}, nil
	}

	numbers, err := s.roster.Stage2Numbers(ctx)
	if err != nil {
		return nil, err
	}

	delivered, failed := s.notifier.PlaceVoiceCalls(ctx, alert, 2, numbers)

	recorded, err := s.alertRepo.MarkStageSent(ctx, alertID, 2, time.Now(), delivered, failed, true)
	if err != nil {
		return nil, err
	}
	if !recorded {
		return &models.StageResult{Stage: 2, Skipped: true, SkipReason: models.SkipReasonAlreadySent}, nil
	}

	s.log.LogAlertEvent(alertID, "stage2_executed", map[string]interface{}{
		"delivered": delivered,
		"failed":    failed,
	})

	return &models.StageResult{Stage: 2, SuccessCount: delivered, FailureCount: failed}, nil
}

// RespondToAlert applies a human accept or reject. The status transition is
// a conditional write against the pending state; whoever lands it first wins
// and every later response gets AlreadyResolvedError. The winner's pending
// stage tasks are cancelled best-effort.
func (s *escalationService) RespondToAlert(ctx context.Context, alertID primitive.ObjectID, outcome models.ResponseOutcome, req *models.RespondRequest) (*models.RespondResponse, error) {
	if err := validators.ValidateRespond(req); err != nil {
		return nil, err
	}

	status := models.AlertStatusAccepted
	if outcome == models.ResponseOutcomeReject {
		status = models.AlertStatusRejected
	}

	// Read first so the winner still knows which stage tasks to cancel;
	// the status write below nulls the stored handles.
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":            status,
		"responded_by_id":   req.ResponderID,
		"responded_by_name": req.ResponderName,
		"responded_at":      now,
		"stage1_task_id":    nil,
		"stage2_task_id":    nil,
	}
	if status == models.AlertStatusRejected {
		updates["rejection_reason"] = req.Reason
	}

	won, err := s.alertRepo.UpdateIfPending(ctx, alertID, updates)
	if err != nil {
		return nil, err
	}

	if !won {
		settled, err := s.alertRepo.GetByID(ctx, alertID)
		if err != nil {
			return nil, err
		}
		return nil, &utils.AlreadyResolvedError{Status: string(settled.Status)}
	}

	s.cancelStageTasks(ctx, alert)

	s.log.LogAlertEvent(alertID, "responded", map[string]interface{}{
		"outcome":   outcome,
		"responder": req.ResponderName,
	})

	switch status {
	case models.AlertStatusAccepted:
		s.notifier.NotifyStudent(ctx, alert, "Help is on the way!", fmt.Sprintf("%s accepted your alert and is responding.", req.ResponderName))
	case models.AlertStatusRejected:
		body := "Your alert was reviewed and closed."
		if req.Reason != "" {
			body = fmt.Sprintf("Your alert was closed: %s", req.Reason)
		}
		s.notifier.NotifyStudent(ctx, alert, "Alert update", body)
	}

	return &models.RespondResponse{
		Status:        status,
		ResponderName: req.ResponderName,
		RespondedAt:   now,
	}, nil
}

// cancelStageTasks revokes whatever delayed executions have not fired yet.
// Cancellation is best-effort: a stage that fires anyway re-checks the alert
// status and skips itself. The stored handles were already nulled by the
// status transition.
func (s *escalationService) cancelStageTasks(ctx context.Context, alert *models.Alert) {
	handles := map[int]*string{
		1: alert.Stage1TaskID,
		2: alert.Stage2TaskID,
	}

	for stage, handle := range handles {
		if handle == nil {
			continue
		}

		cancelled, err := s.sched.Cancel(ctx, *handle)
		if err != nil {
			s.log.WithError(err).WithAlertID(alert.ID).WithStage(stage).Warn("Failed to cancel stage task")
			continue
		}

		s.log.WithAlertID(alert.ID).WithStage(stage).WithField("cancelled", cancelled).Debug("Stage task cancellation attempted")
	}
}

// ForwardToSecurity pushes an already-raised alert to the security office
// roster. Returns how many security members were notified.
func (s *escalationService) ForwardToSecurity(ctx context.Context, alertID primitive.ObjectID, req *models.ForwardRequest) (int, error) {
	if err := validators.ValidateForward(req); err != nil {
		return 0, err
	}

	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		return 0, err
	}

	responders, err := s.roster.SecurityResponders(ctx)
	if err != nil {
		return 0, err
	}

	notified, _ := s.notifier.SendPushAlerts(ctx, alert, 0, responders)

	if err := s.alertRepo.Update(ctx, alertID, map[string]interface{}{
		"forwarded_to": "security",
		"forwarded_by": req.ForwardedBy,
		"forwarded_at": time.Now(),
	}); err != nil {
		s.log.WithError(err).WithAlertID(alertID).Warn("Failed to record alert forwarding")
	}

	s.log.LogAlertEvent(alertID, "forwarded", map[string]interface{}{
		"forwarded_by": req.ForwardedBy,
		"notified":     notified,
	})

	return notified, nil
}

func (s *escalationService) GetAlert(ctx context.Context, alertID primitive.ObjectID) (*models.Alert, error) {
	return s.alertRepo.GetByID(ctx, alertID)
}

// ListAlerts returns alerts newest-first with an opaque cursor for the next
// page. The cursor is the ObjectID of the last alert on the previous page.
func (s *escalationService) ListAlerts(ctx context.Context, status *models.AlertStatus, limit int, cursor string) ([]*models.Alert, string, error) {
	filter := &interfaces.AlertFilter{
		Status: status,
		Limit:  utils.ClampListLimit(limit),
	}

	if cursor != "" {
		id, err := primitive.ObjectIDFromHex(cursor)
		if err != nil {
			return nil, "", utils.NewValidationError(map[string]string{"cursor": "is invalid"})
		}
		filter.Cursor = &id
	}

	alerts, err := s.alertRepo.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(alerts) == filter.Limit {
		nextCursor = alerts[len(alerts)-1].ID.Hex()
	}

	return alerts, nextCursor, nil
}

func (s *escalationService) GetPendingAlerts(ctx context.Context) ([]*models.Alert, error) {
	return s.alertRepo.GetPending(ctx)
}

func (s *escalationService) GetDeliveryLogs(ctx context.Context, alertID primitive.ObjectID) ([]*models.DeliveryLog, error) {
	if _, err := s.alertRepo.GetByID(ctx, alertID); err != nil {
		return nil, err
	}
	return s.deliveryRepo.GetByAlertID(ctx, alertID)
}
