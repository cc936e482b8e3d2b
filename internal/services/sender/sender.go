// Package sender содержит сервис доставки писем-напоминаний.
// Сервис потребляет сообщения очереди уведомлений и отправляет письма по SMTP.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/lib/smtp"
	"github.com/edtechhq/user-lifecycle/internal/models"
)

// SenderService отправляет письма-напоминания через SMTP-транспорт.
type SenderService struct {
	transport smtp.TransportInterface
	siteURL   string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, siteURL string, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		siteURL:   siteURL,
		log:       log,
	}
}

// SendFirstReminderEmail обрабатывает сообщение очереди первых напоминаний.
func (s *SenderService) SendFirstReminderEmail(body []byte) error {
	var message models.ReminderMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "We miss you! Your account will soon be inactive"
	bodyText := fmt.Sprintf("Hi %s,\n\n"+
		"We noticed you haven't been active on our platform recently.\n"+
		"Your account will be considered inactive in 2 weeks if you don't log in or renew your subscription.\n\n"+
		"Log in now to keep your account active: %s/login\n\n"+
		"If you have any questions, please contact our support team.",
		message.Username, s.siteURL)

	return s.sendEmail(to, subject, bodyText)
}

// SendFinalReminderEmail обрабатывает сообщение очереди финальных напоминаний.
func (s *SenderService) SendFinalReminderEmail(body []byte) error {
	var message models.ReminderMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "FINAL NOTICE: Your account will be archived soon"
	bodyText := fmt.Sprintf("Hi %s,\n\n"+
		"This is your final notice that your account will be archived in 7 days due to inactivity.\n"+
		"Once archived, you'll need to contact support to restore your account and data.\n\n"+
		"To prevent archiving, simply log in to your account or renew your subscription: %s/login\n\n"+
		"If you have any questions, please contact our support team immediately.",
		message.Username, s.siteURL)

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
