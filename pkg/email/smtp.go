package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type EmailProvider interface {
	SendEmail(ctx context.Context, request *EmailRequest) (*EmailResponse, error)
}

type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    bool   `json:"html"`
}

type EmailResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SMTPProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
}

func NewSMTPProvider(host string, port int, username, password, fromEmail, fromName string) *SMTPProvider {
	return &SMTPProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SMTPProvider) SendEmail(ctx context.Context, request *EmailRequest) (*EmailResponse, error) {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	contentType := "text/plain; charset=\"UTF-8\""
	if request.HTML {
		contentType = "text/html; charset=\"UTF-8\""
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.fromEmail))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", request.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", request.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: %s\r\n", contentType))
	msg.WriteString("\r\n")
	msg.WriteString(request.Body)

	err := smtp.SendMail(addr, auth, s.fromEmail, []string{request.To}, []byte(msg.String()))
	if err != nil {
		return &EmailResponse{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	return &EmailResponse{Success: true}, nil
}
