// internal/notify/providers.go

package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// EmailMessage carries a single outbound email
type EmailMessage struct {
	To      string
	Name    string
	Subject string
	Body    string
}

// SMSMessage carries a single outbound text message
type SMSMessage struct {
	To      string
	Message string
}

// EmailProvider defines the email provider interface
type EmailProvider interface {
	SendEmail(ctx context.Context, message *EmailMessage) error
}

// SMSProvider defines the SMS provider interface
type SMSProvider interface {
	SendSMS(ctx context.Context, message *SMSMessage) error
}

// SendGridEmailProvider implements EmailProvider using SendGrid
type SendGridEmailProvider struct {
	apiKey    string
	fromEmail string
	fromName  string
}

// NewSendGridEmailProvider creates a new SendGrid email provider
func NewSendGridEmailProvider(apiKey, fromEmail, fromName string) EmailProvider {
	return &SendGridEmailProvider{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendEmail sends an email using SendGrid
func (p *SendGridEmailProvider) SendEmail(ctx context.Context, message *EmailMessage) error {
	from := mail.NewEmail(p.fromName, p.fromEmail)
	to := mail.NewEmail(message.Name, message.To)

	email := mail.NewSingleEmail(from, message.Subject, to, message.Body, "")
	client := sendgrid.NewSendClient(p.apiKey)

	response, err := client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid returned error status: %d", response.StatusCode)
	}

	return nil
}

// TwilioSMSProvider implements SMSProvider using Twilio
type TwilioSMSProvider struct {
	client      *twilio.RestClient
	phoneNumber string
}

// NewTwilioSMSProvider creates a new Twilio SMS provider
func NewTwilioSMSProvider(accountSID, authToken, phoneNumber string) SMSProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSProvider{
		client:      client,
		phoneNumber: phoneNumber,
	}
}

// SendSMS sends an SMS using Twilio
func (p *TwilioSMSProvider) SendSMS(ctx context.Context, message *SMSMessage) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(message.To)
	params.SetFrom(p.phoneNumber)
	params.SetBody(message.Message)

	_, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS via Twilio: %w", err)
	}

	return nil
}

// MockEmailProvider implements EmailProvider for testing
type MockEmailProvider struct {
	SentEmails []EmailMessage
}

// NewMockEmailProvider creates a new mock email provider
func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{
		SentEmails: make([]EmailMessage, 0),
	}
}

// SendEmail mocks sending an email
func (p *MockEmailProvider) SendEmail(ctx context.Context, message *EmailMessage) error {
	p.SentEmails = append(p.SentEmails, *message)
	return nil
}

// MockSMSProvider implements SMSProvider for testing
type MockSMSProvider struct {
	SentMessages []SMSMessage
}

// NewMockSMSProvider creates a new mock SMS provider
func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{
		SentMessages: make([]SMSMessage, 0),
	}
}

// SendSMS mocks sending an SMS
func (p *MockSMSProvider) SendSMS(ctx context.Context, message *SMSMessage) error {
	p.SentMessages = append(p.SentMessages, *message)
	return nil
}
