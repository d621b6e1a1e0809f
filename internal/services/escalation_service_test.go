package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/repositories/interfaces"
	"safelink/internal/utils"
	"safelink/pkg/logger"
	"safelink/pkg/push"
	"safelink/pkg/scheduler"
	"safelink/pkg/sms"
	"safelink/pkg/voice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory fakes

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[primitive.ObjectID]*models.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[primitive.ObjectID]*models.Alert)}
}

func (r *fakeAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert.ID = primitive.NewObjectID()
	alert.Status = models.AlertStatusPending
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	clone := *alert
	r.alerts[alert.ID] = &clone
	return nil
}

func (r *fakeAlertRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, utils.ErrAlertNotFound
	}
	clone := *alert
	return &clone, nil
}

func (r *fakeAlertRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return utils.ErrAlertNotFound
	}
	applyUpdates(alert, updates)
	return nil
}

func (r *fakeAlertRepo) UpdateIfPending(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok || alert.Status != models.AlertStatusPending {
		return false, nil
	}
	applyUpdates(alert, updates)
	return true, nil
}

func (r *fakeAlertRepo) MarkStageSent(ctx context.Context, id primitive.ObjectID, stage int, sentAt time.Time, delivered, failed int, escalate bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return false, nil
	}

	switch stage {
	case 1:
		if alert.Stage1Sent {
			return false, nil
		}
		alert.Stage1Sent = true
		alert.Stage1SentAt = &sentAt
		alert.Stage1Delivered = delivered
		alert.Stage1Failed = failed
		alert.Stage1TaskID = nil
	case 2:
		if alert.Stage2Sent {
			return false, nil
		}
		alert.Stage2Sent = true
		alert.Stage2SentAt = &sentAt
		alert.Stage2Delivered = delivered
		alert.Stage2Failed = failed
		alert.Stage2TaskID = nil
	}

	if escalate && alert.Status == models.AlertStatusPending {
		alert.Status = models.AlertStatusEscalated
	}
	return true, nil
}

func (r *fakeAlertRepo) SetTaskHandles(ctx context.Context, id primitive.ObjectID, stage1, stage2 *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alert, ok := r.alerts[id]; ok {
		alert.Stage1TaskID = stage1
		alert.Stage2TaskID = stage2
	}
	return nil
}

func (r *fakeAlertRepo) List(ctx context.Context, filter *interfaces.AlertFilter) ([]*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*models.Alert
	for _, alert := range r.alerts {
		if filter.Status != nil && alert.Status != *filter.Status {
			continue
		}
		if filter.Cursor != nil && alert.ID.Hex() >= filter.Cursor.Hex() {
			continue
		}
		clone := *alert
		all = append(all, &clone)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID.Hex() > all[j].ID.Hex()
	})

	limit := utils.ClampListLimit(filter.Limit)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeAlertRepo) GetPending(ctx context.Context) ([]*models.Alert, error) {
	status := models.AlertStatusPending
	return r.List(ctx, &interfaces.AlertFilter{Status: &status, Limit: utils.MaxPageSize})
}

func (r *fakeAlertRepo) CountByStatus(ctx context.Context, status models.AlertStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, alert := range r.alerts {
		if alert.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeAlertRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func applyUpdates(alert *models.Alert, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			alert.Status = value.(models.AlertStatus)
		case "responded_by_id":
			alert.RespondedByID = value.(string)
		case "responded_by_name":
			alert.RespondedByName = value.(string)
		case "responded_at":
			t := value.(time.Time)
			alert.RespondedAt = &t
		case "rejection_reason":
			alert.RejectionReason = value.(string)
		case "initial_notified":
			alert.InitialNotified = value.(int)
		case "guardians_notified":
			alert.GuardiansNotified = value.(int)
		case "stage1_task_id":
			alert.Stage1TaskID, _ = value.(*string)
		case "stage2_task_id":
			alert.Stage2TaskID, _ = value.(*string)
		case "stage1_delivered":
			alert.Stage1Delivered = value.(int)
		case "stage1_failed":
			alert.Stage1Failed = value.(int)
		case "stage2_delivered":
			alert.Stage2Delivered = value.(int)
		case "stage2_failed":
			alert.Stage2Failed = value.(int)
		case "forwarded_to":
			alert.ForwardedTo = value.(string)
		case "forwarded_by":
			alert.ForwardedBy = value.(string)
		case "forwarded_at":
			t := value.(time.Time)
			alert.ForwardedAt = &t
		}
	}
	alert.UpdatedAt = time.Now()
}

type fakeStaffRepo struct {
	members []*models.Staff
	// consumed by the next GetActiveByRole call, simulating a transient
	// store failure
	failNext error
}

func (r *fakeStaffRepo) Create(ctx context.Context, staff *models.Staff) error { return nil }
func (r *fakeStaffRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Staff, error) {
	return nil, utils.ErrStaffNotFound
}
func (r *fakeStaffRepo) GetByEmail(ctx context.Context, email string) (*models.Staff, error) {
	return nil, utils.ErrStaffNotFound
}
func (r *fakeStaffRepo) GetActiveByRole(ctx context.Context, role models.StaffRole) ([]*models.Staff, error) {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return nil, err
	}

	var out []*models.Staff
	for _, staff := range r.members {
		if staff.Role == role && staff.Status == models.StaffStatusActive {
			out = append(out, staff)
		}
	}
	return out, nil
}
func (r *fakeStaffRepo) List(ctx context.Context, params *utils.PaginationParams) ([]*models.Staff, int64, error) {
	return r.members, int64(len(r.members)), nil
}
func (r *fakeStaffRepo) UpsertByEmail(ctx context.Context, staff *models.Staff) error { return nil }
func (r *fakeStaffRepo) UpdatePushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return nil
}
func (r *fakeStaffRepo) Delete(ctx context.Context, id primitive.ObjectID) error { return nil }

type fakeDeliveryRepo struct {
	mu   sync.Mutex
	logs []*models.DeliveryLog
}

func (r *fakeDeliveryRepo) Create(ctx context.Context, log *models.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeDeliveryRepo) GetByAlertID(ctx context.Context, alertID primitive.ObjectID) ([]*models.DeliveryLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.DeliveryLog
	for _, log := range r.logs {
		if log.AlertID == alertID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) CountByStatus(ctx context.Context, alertID primitive.ObjectID, status models.DeliveryStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, log := range r.logs {
		if log.AlertID == alertID && log.Status == status {
			count++
		}
	}
	return count, nil
}

type fakePushProvider struct {
	mu      sync.Mutex
	sent    []*push.NotificationRequest
	failAll bool
}

func (p *fakePushProvider) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	p.mu.Lock()
	p.sent = append(p.sent, request)
	p.mu.Unlock()

	if p.failAll {
		return nil, fmt.Errorf("push gateway unavailable")
	}
	return &push.NotificationResponse{MessageID: "push-1", Success: true}, nil
}

func (p *fakePushProvider) SendBulkNotifications(ctx context.Context, requests []*push.NotificationRequest) ([]*push.NotificationResponse, error) {
	var responses []*push.NotificationResponse
	for _, request := range requests {
		resp, _ := p.SendNotification(ctx, request)
		responses = append(responses, resp)
	}
	return responses, nil
}

func (p *fakePushProvider) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fakeSMSProvider struct {
	mu   sync.Mutex
	sent []*sms.SMSRequest
}

func (p *fakeSMSProvider) SendSMS(ctx context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, request)
	return &sms.SMSResponse{MessageID: "sms-1", Status: "queued"}, nil
}

func (p *fakeSMSProvider) SendBulkSMS(ctx context.Context, requests []*sms.SMSRequest) ([]*sms.SMSResponse, error) {
	var responses []*sms.SMSResponse
	for _, request := range requests {
		resp, _ := p.SendSMS(ctx, request)
		responses = append(responses, resp)
	}
	return responses, nil
}

func (p *fakeSMSProvider) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fakeVoiceProvider struct {
	mu      sync.Mutex
	called  []*voice.CallRequest
	failAll bool
}

func (p *fakeVoiceProvider) PlaceCall(ctx context.Context, request *voice.CallRequest) (*voice.CallResponse, error) {
	p.mu.Lock()
	p.called = append(p.called, request)
	p.mu.Unlock()

	if p.failAll {
		return nil, fmt.Errorf("carrier rejected call")
	}
	return &voice.CallResponse{CallID: "call-1", Status: "queued"}, nil
}

func (p *fakeVoiceProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.called)
}

// Test harness

type testEnv struct {
	service      EscalationService
	alertRepo    *fakeAlertRepo
	staffRepo    *fakeStaffRepo
	deliveryRepo *fakeDeliveryRepo
	pushProv     *fakePushProvider
	smsProv      *fakeSMSProvider
	voiceProv    *fakeVoiceProvider
	sched        *scheduler.MemoryScheduler
	cfg          *config.EscalationConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
	require.NoError(t, err)

	cfg := &config.EscalationConfig{
		// Long delays so stages never fire on their own during a test.
		Stage1Delay:   time.Hour,
		Stage2Delay:   2 * time.Hour,
		SendTimeout:   time.Second,
		FanoutWorkers: 4,
		HotlineNumber: "+8801700000000",
	}

	env := &testEnv{
		alertRepo:    newFakeAlertRepo(),
		staffRepo:    &fakeStaffRepo{},
		deliveryRepo: &fakeDeliveryRepo{},
		pushProv:     &fakePushProvider{},
		smsProv:      &fakeSMSProvider{},
		voiceProv:    &fakeVoiceProvider{},
		sched:        scheduler.NewMemoryScheduler(),
		cfg:          cfg,
	}

	env.sched.Register(utils.TaskExecuteStage1, func(ctx context.Context, payload []byte) error { return nil })
	env.sched.Register(utils.TaskExecuteStage2, func(ctx context.Context, payload []byte) error { return nil })

	notifier := NewNotificationService(env.pushProv, env.smsProv, env.voiceProv, nil, env.deliveryRepo, cfg, "+8801000000000", "+8801000000001", log)
	roster := NewRosterService(env.staffRepo, cfg, log)
	env.service = NewEscalationService(env.alertRepo, env.deliveryRepo, roster, notifier, env.sched, cfg, log)

	return env
}

func (env *testEnv) seedProctorialStaff(count int) {
	for i := 0; i < count; i++ {
		env.staffRepo.members = append(env.staffRepo.members, &models.Staff{
			ID:        primitive.NewObjectID(),
			Name:      fmt.Sprintf("Proctor %d", i+1),
			Email:     fmt.Sprintf("proctor%d@nstu.edu.bd", i+1),
			Phone:     fmt.Sprintf("+88017000000%02d", i+1),
			Role:      models.StaffRoleProctorial,
			Status:    models.StaffStatusActive,
			PushToken: fmt.Sprintf("token-%d", i+1),
		})
	}
}

func validCreateRequest() *models.CreateAlertRequest {
	return &models.CreateAlertRequest{
		StudentID:   "ASH2101001M",
		StudentName: "Rahim Uddin",
		PushToken:   "student-token",
		Department:  "CSTE",
		Session:     "2021-22",
		Location:    "Central Library, 2nd floor",
	}
}

// Tests

func TestCreateAlertNotifiesAndSchedulesStages(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(3)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, 3, resp.NotifiedCount)
	assert.Equal(t, 3, env.pushProv.sentCount())
	assert.Equal(t, 2, env.sched.Pending())

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
	assert.Equal(t, 3, alert.InitialNotified)
	require.NotNil(t, alert.Stage1TaskID)
	require.NotNil(t, alert.Stage2TaskID)
}

func TestCreateAlertValidationFailureLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(1)

	req := validCreateRequest()
	req.StudentID = ""
	req.Location = ""

	_, err := env.service.CreateAlert(context.Background(), req)
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))

	assert.Equal(t, 0, env.alertRepo.size())
	assert.Equal(t, 0, env.pushProv.sentCount())
	assert.Equal(t, 0, env.sched.Pending())
}

func TestCreateAlertWithEmptyRoster(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.NotifiedCount)
	// The timed stages still cover an alert nobody was pushed about.
	assert.Equal(t, 2, env.sched.Pending())
}

func TestExecuteStage1SendsSMSExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(2)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	result, err := env.service.ExecuteStage1(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	assert.Equal(t, 2, env.smsProv.sentCount())

	// Re-invocation must not send again.
	result, err = env.service.ExecuteStage1(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, models.SkipReasonAlreadySent, result.SkipReason)
	assert.Equal(t, 2, env.smsProv.sentCount())

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.True(t, alert.Stage1Sent)
	assert.Equal(t, 2, alert.Stage1Delivered)
}

func TestExecuteStage1SkipsResolvedAlert(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(2)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = env.service.RespondToAlert(context.Background(), resp.AlertID, models.ResponseOutcomeAccept, &models.RespondRequest{
		ResponderID:   "staff-1",
		ResponderName: "Dr. Karim",
	})
	require.NoError(t, err)

	result, err := env.service.ExecuteStage1(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, models.SkipReasonResolved, result.SkipReason)
	assert.Equal(t, 0, env.smsProv.sentCount())
}

func TestExecuteStage1UnknownAlert(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.ExecuteStage1(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, utils.ErrAlertNotFound)
}

func TestExecuteStage2RingsHotlineAndEscalates(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(1)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	result, err := env.service.ExecuteStage2(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, env.voiceProv.callCount())
	assert.Equal(t, "+8801700000000", env.voiceProv.called[0].To)

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
	assert.True(t, alert.Stage2Sent)
}

func TestExecuteStage2EscalatesEvenWhenCallsFail(t *testing.T) {
	env := newTestEnv(t)
	env.voiceProv.failAll = true

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	result, err := env.service.ExecuteStage2(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)

	// An unheard alert must never look resolved.
	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
}

func TestExecuteStage1RetriesAfterTransientRosterError(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(2)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// A store failure after the alert is loaded must not claim the stage.
	env.staffRepo.failNext = utils.NewStorageError("staff.find", fmt.Errorf("connection reset"))

	_, err = env.service.ExecuteStage1(context.Background(), resp.AlertID)
	require.Error(t, err)
	assert.Equal(t, 0, env.smsProv.sentCount())

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.False(t, alert.Stage1Sent)

	// The runner redelivers the task; this time the texts go out.
	result, err := env.service.ExecuteStage1(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, env.smsProv.sentCount())
}

func TestExecuteStage2RetriesAfterTransientRosterError(t *testing.T) {
	env := newTestEnv(t)
	// No hotline configured, so stage 2 resolves numbers from the security
	// roster and a store failure there is reachable.
	env.cfg.HotlineNumber = ""
	env.staffRepo.members = append(env.staffRepo.members, &models.Staff{
		ID:     primitive.NewObjectID(),
		Name:   "Security Desk",
		Email:  "security@nstu.edu.bd",
		Phone:  "+8801811111111",
		Role:   models.StaffRoleSecurity,
		Status: models.StaffStatusActive,
	})

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	env.staffRepo.failNext = utils.NewStorageError("staff.find", fmt.Errorf("connection reset"))

	_, err = env.service.ExecuteStage2(context.Background(), resp.AlertID)
	require.Error(t, err)

	// The failed run must leave the stage unclaimed and the alert pending,
	// with no call placed.
	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.False(t, alert.Stage2Sent)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
	assert.Equal(t, 0, env.voiceProv.callCount())

	// The retry rings security and escalates.
	result, err := env.service.ExecuteStage2(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, env.voiceProv.callCount())
	assert.Equal(t, "+8801811111111", env.voiceProv.called[0].To)

	alert, err = env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.True(t, alert.Stage2Sent)
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
}

func TestCreateAlertTextsGuardians(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(1)

	req := validCreateRequest()
	req.GuardianPhones = []string{"+8801911111111", "+8801922222222"}

	resp, err := env.service.CreateAlert(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 2, env.smsProv.sentCount())
	var texted []string
	for _, sent := range env.smsProv.sent {
		texted = append(texted, sent.To)
		assert.Contains(t, sent.Message, "EMERGENCY ALERT")
		assert.Contains(t, sent.Message, "Rahim Uddin")
	}
	assert.ElementsMatch(t, req.GuardianPhones, texted)

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, 2, alert.GuardiansNotified)

	logs, err := env.deliveryRepo.GetByAlertID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	guardianLogs := 0
	for _, log := range logs {
		if log.Channel == models.ChannelSMS && log.Stage == 0 {
			guardianLogs++
		}
	}
	assert.Equal(t, 2, guardianLogs)
}

func TestCreateAlertRejectsInvalidGuardianPhone(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(1)

	req := validCreateRequest()
	req.GuardianPhones = []string{"not-a-number"}

	_, err := env.service.CreateAlert(context.Background(), req)
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
	assert.Equal(t, 0, env.alertRepo.size())
	assert.Equal(t, 0, env.smsProv.sentCount())
}

func TestRespondAcceptFirstWriterWins(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(1)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, 2, env.sched.Pending())

	accepted, err := env.service.RespondToAlert(context.Background(), resp.AlertID, models.ResponseOutcomeAccept, &models.RespondRequest{
		ResponderID:   "staff-1",
		ResponderName: "Dr. Karim",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAccepted, accepted.Status)
	assert.Equal(t, "Dr. Karim", accepted.ResponderName)

	// Pending stage tasks were revoked.
	assert.Equal(t, 0, env.sched.Pending())

	// The student was told help is coming.
	assert.Equal(t, 2, env.pushProv.sentCount())

	// A later responder loses and learns the settled status.
	_, err = env.service.RespondToAlert(context.Background(), resp.AlertID, models.ResponseOutcomeReject, &models.RespondRequest{
		ResponderID:   "staff-2",
		ResponderName: "Mr. Salam",
	})
	require.Error(t, err)
	assert.True(t, utils.IsAlreadyResolved(err))

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAccepted, alert.Status)
	assert.Equal(t, "Dr. Karim", alert.RespondedByName)
	assert.Nil(t, alert.Stage1TaskID)
	assert.Nil(t, alert.Stage2TaskID)
}

func TestRespondRejectPersistsReason(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	rejected, err := env.service.RespondToAlert(context.Background(), resp.AlertID, models.ResponseOutcomeReject, &models.RespondRequest{
		ResponderID:   "staff-1",
		ResponderName: "Dr. Karim",
		Reason:        "Confirmed false alarm by phone",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusRejected, rejected.Status)

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusRejected, alert.Status)
	assert.Equal(t, "Confirmed false alarm by phone", alert.RejectionReason)
}

func TestRespondValidationRejected(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = env.service.RespondToAlert(context.Background(), resp.AlertID, models.ResponseOutcomeAccept, &models.RespondRequest{})
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
}

func TestListAlertsCursorPagination(t *testing.T) {
	env := newTestEnv(t)

	var ids []primitive.ObjectID
	for i := 0; i < 5; i++ {
		resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
		require.NoError(t, err)
		ids = append(ids, resp.AlertID)
	}

	page1, cursor, err := env.service.ListAlerts(context.Background(), nil, 2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor)
	assert.Equal(t, ids[4], page1[0].ID)
	assert.Equal(t, ids[3], page1[1].ID)

	page2, cursor, err := env.service.ListAlerts(context.Background(), nil, 2, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, ids[2], page2[0].ID)
	assert.Equal(t, ids[1], page2[1].ID)

	page3, _, err := env.service.ListAlerts(context.Background(), nil, 2, cursor)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[0], page3[0].ID)
}

func TestListAlertsInvalidCursor(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.service.ListAlerts(context.Background(), nil, 10, "not-an-object-id")
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
}

func TestListAlertsStatusFilter(t *testing.T) {
	env := newTestEnv(t)

	resp1, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = env.service.RespondToAlert(context.Background(), resp1.AlertID, models.ResponseOutcomeAccept, &models.RespondRequest{
		ResponderID:   "staff-1",
		ResponderName: "Dr. Karim",
	})
	require.NoError(t, err)

	status := models.AlertStatusPending
	pending, _, err := env.service.ListAlerts(context.Background(), &status, 10, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.AlertStatusPending, pending[0].Status)
}

func TestForwardToSecurityNotifiesSecurityRoster(t *testing.T) {
	env := newTestEnv(t)
	env.staffRepo.members = append(env.staffRepo.members, &models.Staff{
		ID:        primitive.NewObjectID(),
		Name:      "Security Desk",
		Email:     "security@nstu.edu.bd",
		Role:      models.StaffRoleSecurity,
		Status:    models.StaffStatusActive,
		PushToken: "security-token",
	})

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	notified, err := env.service.ForwardToSecurity(context.Background(), resp.AlertID, &models.ForwardRequest{
		ForwardedBy: "Dr. Karim",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notified)

	alert, err := env.alertRepo.GetByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	assert.Equal(t, "security", alert.ForwardedTo)
	assert.Equal(t, "Dr. Karim", alert.ForwardedBy)
	require.NotNil(t, alert.ForwardedAt)
}

func TestDeliveryLogsWrittenPerAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.seedProctorialStaff(2)

	resp, err := env.service.CreateAlert(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = env.service.ExecuteStage1(context.Background(), resp.AlertID)
	require.NoError(t, err)

	logs, err := env.deliveryRepo.GetByAlertID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	// 2 initial pushes + 2 stage-1 texts.
	assert.Len(t, logs, 4)

	sent, err := env.deliveryRepo.CountByStatus(context.Background(), resp.AlertID, models.DeliveryStatusSent)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sent)
}
