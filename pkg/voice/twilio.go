package voice

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioProvider struct {
	client      *twilio.RestClient
	fromNumber  string
	callbackURL string
}

func NewTwilioProvider(accountSID, authToken, fromNumber, callbackURL string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioProvider{
		client:      client,
		fromNumber:  fromNumber,
		callbackURL: callbackURL,
	}
}

func (t *TwilioProvider) PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error) {
	params := &api.CreateCallParams{}
	params.SetTo(request.To)
	params.SetFrom(t.getFromNumber(request.From))
	params.SetTwiml(fmt.Sprintf("<Response><Say loop=\"2\">%s</Say></Response>", request.Message))
	params.SetTimeout(30)

	if t.callbackURL != "" {
		params.SetStatusCallback(t.callbackURL)
		params.SetStatusCallbackMethod("POST")
	}

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return &CallResponse{
			Status: "failed",
			Error:  err.Error(),
		}, err
	}

	return &CallResponse{
		CallID: *resp.Sid,
		Status: *resp.Status,
	}, nil
}

func (t *TwilioProvider) getFromNumber(from string) string {
	if from != "" {
		return from
	}
	return t.fromNumber
}
