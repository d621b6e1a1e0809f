package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertStatus string
type ResponseOutcome string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusAccepted  AlertStatus = "accepted"
	AlertStatusRejected  AlertStatus = "rejected"
	AlertStatusEscalated AlertStatus = "escalated"

	ResponseOutcomeAccept ResponseOutcome = "accept"
	ResponseOutcomeReject ResponseOutcome = "reject"
)

// Alert is one reported distress event and its escalation state. The status
// field only moves pending -> accepted|rejected|escalated; whichever
// conditional write lands first wins and the field never changes again.
type Alert struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	StudentID    string             `json:"student_id" bson:"student_id" validate:"required"`
	StudentName  string             `json:"student_name" bson:"student_name" validate:"required"`
	StudentPhone string             `json:"student_phone" bson:"student_phone"`
	StudentEmail string             `json:"student_email" bson:"student_email"`
	PushToken    string             `json:"push_token,omitempty" bson:"push_token"`
	Department   string             `json:"department" bson:"department"`
	Session      string             `json:"session" bson:"session"`
	Location     string             `json:"location" bson:"location" validate:"required"`
	Latitude     *float64           `json:"latitude,omitempty" bson:"latitude"`
	Longitude    *float64           `json:"longitude,omitempty" bson:"longitude"`

	// Emergency contacts registered by the student; texted once at
	// creation, independently of the responder escalation path.
	GuardianPhones    []string `json:"guardian_phones,omitempty" bson:"guardian_phones"`
	GuardiansNotified int      `json:"guardians_notified" bson:"guardians_notified"`

	Status AlertStatus `json:"status" bson:"status" default:"pending"`

	// Stage idempotency guards. Each flag is set exactly once, together with
	// its timestamp, by the stage execution that wins the conditional write.
	Stage1Sent   bool       `json:"stage1_sent" bson:"stage1_sent"`
	Stage1SentAt *time.Time `json:"stage1_sent_at,omitempty" bson:"stage1_sent_at"`
	Stage2Sent   bool       `json:"stage2_sent" bson:"stage2_sent"`
	Stage2SentAt *time.Time `json:"stage2_sent_at,omitempty" bson:"stage2_sent_at"`

	// Handles of the pending delayed stage executions, nulled once cancelled
	// or fired.
	Stage1TaskID *string `json:"stage1_task_id,omitempty" bson:"stage1_task_id"`
	Stage2TaskID *string `json:"stage2_task_id,omitempty" bson:"stage2_task_id"`

	InitialNotified int `json:"initial_notified" bson:"initial_notified"`
	Stage1Delivered int `json:"stage1_delivered" bson:"stage1_delivered"`
	Stage1Failed    int `json:"stage1_failed" bson:"stage1_failed"`
	Stage2Delivered int `json:"stage2_delivered" bson:"stage2_delivered"`
	Stage2Failed    int `json:"stage2_failed" bson:"stage2_failed"`

	RespondedByID   string     `json:"responded_by_id,omitempty" bson:"responded_by_id"`
	RespondedByName string     `json:"responded_by_name,omitempty" bson:"responded_by_name"`
	RespondedAt     *time.Time `json:"responded_at,omitempty" bson:"responded_at"`
	RejectionReason string     `json:"rejection_reason,omitempty" bson:"rejection_reason"`

	ForwardedTo string     `json:"forwarded_to,omitempty" bson:"forwarded_to"`
	ForwardedBy string     `json:"forwarded_by,omitempty" bson:"forwarded_by"`
	ForwardedAt *time.Time `json:"forwarded_at,omitempty" bson:"forwarded_at"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsResolved reports whether the alert has left the pending state.
func (a *Alert) IsResolved() bool {
	return a.Status != AlertStatusPending
}

type CreateAlertRequest struct {
	StudentID      string   `json:"student_id" validate:"required"`
	StudentName    string   `json:"student_name" validate:"required"`
	StudentPhone   string   `json:"student_phone"`
	StudentEmail   string   `json:"student_email"`
	PushToken      string   `json:"push_token"`
	Department     string   `json:"department"`
	Session        string   `json:"session"`
	Location       string   `json:"location" validate:"required"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	GuardianPhones []string `json:"guardian_phones"`
}

type CreateAlertResponse struct {
	AlertID       primitive.ObjectID `json:"alert_id"`
	CreatedAt     time.Time          `json:"created_at"`
	NotifiedCount int                `json:"notified_count"`
}

type ForwardRequest struct {
	ForwardedBy string `json:"forwarded_by" validate:"required"`
	Note        string `json:"note"`
}

type RespondRequest struct {
	ResponderID   string `json:"responder_id" validate:"required"`
	ResponderName string `json:"responder_name" validate:"required"`
	Reason        string `json:"reason"`
}

type RespondResponse struct {
	Status        AlertStatus `json:"status"`
	ResponderName string      `json:"responder_name"`
	RespondedAt   time.Time   `json:"responded_at"`
}

// StageResult reports the outcome of one scheduled stage execution. Skipped
// carries the reason when the stage decided not to send anything.
type StageResult struct {
	Stage        int    `json:"stage"`
	Skipped      bool   `json:"skipped"`
	SkipReason   string `json:"skip_reason,omitempty"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
}

const (
	SkipReasonResolved    = "resolved"
	SkipReasonAlreadySent = "already sent"
)
