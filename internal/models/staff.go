package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StaffRole string
type StaffStatus string

const (
	StaffRoleProctorial StaffRole = "proctorial"
	StaffRoleSecurity   StaffRole = "security"

	StaffStatusActive   StaffStatus = "active"
	StaffStatusInactive StaffStatus = "inactive"
)

// Staff is one on-call responder account in the roster.
type Staff struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name" validate:"required"`
	Email       string             `json:"email" bson:"email" validate:"required,email"`
	Phone       string             `json:"phone" bson:"phone"`
	Designation string             `json:"designation" bson:"designation"`
	Role        StaffRole          `json:"role" bson:"role" validate:"required"`
	Status      StaffStatus        `json:"status" bson:"status" default:"active"`
	PushToken   string             `json:"push_token,omitempty" bson:"push_token"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasPushToken reports whether the account can receive push notifications.
func (s *Staff) HasPushToken() bool {
	return s.PushToken != ""
}

// HasPhone reports whether the account can receive SMS.
func (s *Staff) HasPhone() bool {
	return s.Phone != ""
}
