package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Channel string
type DeliveryStatus string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
	ChannelEmail Channel = "email"

	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DeliveryLog is the audit record of one notification attempt against one
// recipient. Attempts are logged whether or not they succeed; a failed
// attempt never fails the operation that issued it.
type DeliveryLog struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AlertID     primitive.ObjectID `json:"alert_id" bson:"alert_id"`
	Stage       int                `json:"stage" bson:"stage"`
	Channel     Channel            `json:"channel" bson:"channel"`
	Recipient   string             `json:"recipient" bson:"recipient"`
	Status      DeliveryStatus     `json:"status" bson:"status"`
	ProviderRef string             `json:"provider_ref,omitempty" bson:"provider_ref"`
	Error       string             `json:"error,omitempty" bson:"error"`
	AttemptedAt time.Time          `json:"attempted_at" bson:"attempted_at"`
}
