package voice

import "context"

type VoiceProvider interface {
	PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error)
}

type CallRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type CallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
