package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/repositories/interfaces"
	"safelink/pkg/email"
	"safelink/pkg/logger"
	"safelink/pkg/push"
	"safelink/pkg/sms"
	"safelink/pkg/voice"
)

// NotificationService fans alert notifications out across delivery channels.
// Every attempt is logged to the delivery audit trail; individual failures
// never abort the batch.
type NotificationService interface {
	SendPushAlerts(ctx context.Context, alert *models.Alert, stage int, recipients []*models.Staff) (delivered, failed int)
	SendSMSAlerts(ctx context.Context, alert *models.Alert, stage int, recipients []*models.Staff) (delivered, failed int)
	SendGuardianSMS(ctx context.Context, alert *models.Alert) (delivered, failed int)
	PlaceVoiceCalls(ctx context.Context, alert *models.Alert, stage int, numbers []string) (delivered, failed int)
	SendEmailAlerts(ctx context.Context, alert *models.Alert, stage int, recipients []*models.Staff) (delivered, failed int)
	NotifyStudent(ctx context.Context, alert *models.Alert, title, body string)
}

type notificationService struct {
	pushProvider  push.PushProvider
	smsProvider   sms.SMSProvider
	voiceProvider voice.VoiceProvider
	emailProvider email.EmailProvider
	deliveryRepo  interfaces.DeliveryLogRepository
	cfg           *config.EscalationConfig
	smsFrom       string
	voiceFrom     string
	log           *logger.Logger
}

func NewNotificationService(
	pushProvider push.PushProvider,
	smsProvider sms.SMSProvider,
	voiceProvider voice.VoiceProvider,
	emailProvider email.EmailProvider,
	deliveryRepo interfaces.DeliveryLogRepository,
	cfg *config.EscalationConfig,
	smsFrom, voiceFrom string,
	log *logger.Logger,
) NotificationService {
	return &notificationService{
		pushProvider:  pushProvider,
		smsProvider:   smsProvider,
		voiceProvider: voiceProvider,
		emailProvider: emailProvider,
		deliveryRepo:  deliveryRepo,
		cfg:           cfg,
		smsFrom:       smsFrom,
		voiceFrom:     voiceFrom,
		log:           log,
	}
}

func (s *notificationService) SendPushAlerts(ctx context.Context, alert *models.Alert, stage int, recipients []*models.Staff) (int, int) {
	if s.pushProvider == nil {
		return 0, 0
	}

	title, body := alertPushContent(alert)
	data := alertPushData(alert)

	return s.fanout(ctx, len(recipients), func(sendCtx context.Context, i int) (string, string, error) {
		staff := recipients[i]
		resp, err := s.pushProvider.SendNotification(sendCtx, &push.NotificationRequest{
			Token:    staff.PushToken,
			Title:    title,
			Body:     body,
			Data:     data,
			Sound:    "emergency",
			Priority: "high",
		})
		if err != nil {
			return staff.Email, "", err
		}
		if !resp.Success {
			return staff.Email, resp.MessageID, fmt.Errorf("push rejected: %s", resp.Error)
		}
		return staff.Email, resp.MessageID, nil
	}, alert, stage, models.ChannelPush)
}

func (s *notificationService) SendSMSAlerts(ctx context.Context, alert *models.Alert, stage int, recipients []*models.Staff) (int, int) {
	if s.smsProvider == nil {
		return 0, 0
	}

	message := alertSMSContent(alert)

	return s.fanout(ctx, len(recipients), func(sendCtx context.Context, i int) (string, string, error) {
		staff := recipients[i]
		resp, err := s.smsProvider.SendSMS(sendCtx, &sms.SMSRequest{
			To:      staff.Phone,
			From:    s.smsFrom,
			Message: message,
			Type:    "emergency",
		})
		if err != nil {
			return staff.Phone, "", err
		}
		return staff.Phone, resp.MessageID, nil
	}, alert, stage, models.ChannelSMS)
}

// SendGuardianSMS texts the student's registered emergency contacts that an
// alert was raised. Runs once at creation, outside the responder escalation
// stages.
func (s *notificationService) SendGuardianSMS(ctx context.Context, alert *models.Alert) (int, int) {
	if s.smsProvider == nil || len(alert.GuardianPhones) == 0 {
		return 0, 0
	}

	message := guardianSMSContent(alert)

	return s.fanout(ctx, len(alert.GuardianPhones), func(sendCtx context.Context, i int) (string, string, error) {
		phone := alert.GuardianPhones[i]
		resp, err := s.smsProvider.SendSMS(sendCtx, &sms.SMSRequest{
			To:      phone,
			From:    s.smsFrom,
			Message: message,
			Type:    "emergency",
		})
		if err != nil {
			return phone, "", err
		}
		return phone, resp.MessageID, nil
	}, alert, 0, models.ChannelSMS)
}

func (s *notificationService) PlaceVoiceCalls(ctx context.Context, alert *models.Alert, stage int, numbers []string) (int, int) {
	if s.voiceProvider == nil {
		return 0, 0
	}

	message := alertVoiceContent(alert)

	return s.fanout(ctx, len(numbers), func(sendCtx context.Context, i int) (string, string, error) {
		resp, err := s.voiceProvider.PlaceCall(sendCtx, &voice.CallRequest{
			To:      numbers[i],
			From:    s.voiceFrom,
			Message: message,
		})
		if err != nil {
			return numbers[i], "", err
		}
		return numbers[i], resp.CallID, nil
	}, alert, stage, models.ChannelVoice)
}

func (s *notificationService) SendEmailAlerts(ctx context.Context, alert *models.Alert, stage int, recipients []*models.Staff) (int, int) {
	if s.emailProvider == nil || !s.cfg.NotifyByEmail {
		return 0, 0
	}

	subject, body := alertEmailContent(alert)

	return s.fanout(ctx, len(recipients), func(sendCtx context.Context, i int) (string, string, error) {
		staff := recipients[i]
		_, err := s.emailProvider.SendEmail(sendCtx, &email.EmailRequest{
			To:      staff.Email,
			Subject: subject,
			Body:    body,
		})
		return staff.Email, "", err
	}, alert, stage, models.ChannelEmail)
}

// NotifyStudent sends a single best-effort push back to the student who
// raised the alert, typically after a responder acted on it.
func (s *notificationService) NotifyStudent(ctx context.Context, alert *models.Alert, title, body string) {
	if s.pushProvider == nil || alert.PushToken == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	_, err := s.pushProvider.SendNotification(sendCtx, &push.NotificationRequest{
		Token:    alert.PushToken,
		Title:    title,
		Body:     body,
		Data:     map[string]string{"alert_id": alert.ID.Hex()},
		Priority: "high",
	})
	s.log.LogDeliveryAttempt(alert.ID, string(models.ChannelPush), "student", err == nil, err)
}

// fanout runs send across a bounded worker pool. Each attempt gets its own
// timeout so one hung provider call cannot stall the rest of the batch, and
// each outcome is written to the delivery log.
func (s *notificationService) fanout(
	ctx context.Context,
	count int,
	send func(ctx context.Context, i int) (recipient, providerRef string, err error),
	alert *models.Alert,
	stage int,
	channel models.Channel,
) (int, int) {
	if count == 0 {
		return 0, 0
	}

	workers := s.cfg.FanoutWorkers
	if workers <= 0 {
		workers = 1
	}

	var delivered, failed atomic.Int32
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
			defer cancel()

			recipient, providerRef, err := send(sendCtx, i)
			if err != nil {
				failed.Add(1)
			} else {
				delivered.Add(1)
			}

			s.log.LogDeliveryAttempt(alert.ID, string(channel), recipient, err == nil, err)
			s.recordAttempt(ctx, alert, stage, channel, recipient, providerRef, err)
		}(i)
	}

	wg.Wait()

	return int(delivered.Load()), int(failed.Load())
}

func (s *notificationService) recordAttempt(ctx context.Context, alert *models.Alert, stage int, channel models.Channel, recipient, providerRef string, sendErr error) {
	if s.deliveryRepo == nil {
		return
	}

	log := &models.DeliveryLog{
		AlertID:     alert.ID,
		Stage:       stage,
		Channel:     channel,
		Recipient:   recipient,
		Status:      models.DeliveryStatusSent,
		ProviderRef: providerRef,
		AttemptedAt: time.Now(),
	}
	if sendErr != nil {
		log.Status = models.DeliveryStatusFailed
		log.Error = sendErr.Error()
	}

	if err := s.deliveryRepo.Create(ctx, log); err != nil {
		s.log.WithError(err).WithAlertID(alert.ID).Warn("Failed to write delivery log")
	}
}

// Message content

func alertPushContent(alert *models.Alert) (string, string) {
	title := "🚨 SOS Alert"
	body := fmt.Sprintf("%s needs help at %s", alert.StudentName, alert.Location)
	return title, body
}

func alertPushData(alert *models.Alert) map[string]string {
	data := map[string]string{
		"alert_id":   alert.ID.Hex(),
		"student_id": alert.StudentID,
		"location":   alert.Location,
		"type":       "sos_alert",
	}
	if alert.Latitude != nil && alert.Longitude != nil {
		data["latitude"] = fmt.Sprintf("%f", *alert.Latitude)
		data["longitude"] = fmt.Sprintf("%f", *alert.Longitude)
	}
	return data
}

func alertSMSContent(alert *models.Alert) string {
	msg := fmt.Sprintf("SOS ALERT: %s needs help at %s.", alert.StudentName, alert.Location)
	if alert.Department != "" {
		msg = fmt.Sprintf("SOS ALERT: %s (%s) needs help at %s.", alert.StudentName, alert.Department, alert.Location)
	}
	return msg + " No one has responded yet. Open the SafeLink app to respond."
}

func guardianSMSContent(alert *models.Alert) string {
	return fmt.Sprintf(
		"🚨 EMERGENCY ALERT from SafeLink NSTU\n\nStudent: %s\nLocation: %s\nTime: %s\n\nThis is an automated emergency alert. Please respond immediately.",
		alert.StudentName, alert.Location, alert.CreatedAt.Format(time.RFC1123),
	)
}

func alertVoiceContent(alert *models.Alert) string {
	return fmt.Sprintf(
		"This is an automated SafeLink emergency call. Student %s has raised an S O S alert at %s and no responder has accepted it. Please dispatch security immediately.",
		alert.StudentName, alert.Location,
	)
}

func alertEmailContent(alert *models.Alert) (string, string) {
	subject := fmt.Sprintf("SOS Alert: %s", alert.StudentName)
	body := fmt.Sprintf(
		"An SOS alert is awaiting response.\r\n\r\nStudent: %s (%s)\r\nLocation: %s\r\nRaised at: %s\r\n\r\nOpen the SafeLink dashboard to respond.",
		alert.StudentName, alert.StudentID, alert.Location, alert.CreatedAt.Format(time.RFC1123),
	)
	return subject, body
}
