package channel

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"wecom-keyword-alert/internal/common/config"
	apperrors "wecom-keyword-alert/internal/common/errors"
	"wecom-keyword-alert/internal/common/logger"
)

const emailChannelName = "email"

const emailSubject = "【微信监听】关键字告警"

// SESService is the mockable surface of the AWS SES client.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Email delivers alerts as plain-text mail via SES. Disabled deployments get
// the simulated sender, same construction rule as the other channels.
type Email struct {
	log    logger.Logger
	sender emailSender
	now    func() time.Time
}

type emailSender interface {
	mode() string
	send(ctx context.Context, recipients []string, content string) error
}

func NewEmail(cfg config.EmailConfig, log logger.Logger) (*Email, error) {
	log = log.WithFields(map[string]interface{}{"channel": emailChannelName})

	if !cfg.Enabled || cfg.FromEmail == "" {
		return &Email{log: log, sender: &simulatedEmailSender{log: log}, now: time.Now}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, apperrors.NewCredentialError("load AWS config for SES", err)
	}
	return &Email{
		log:    log,
		sender: &sesEmailSender{client: ses.NewFromConfig(awsCfg), fromEmail: cfg.FromEmail},
		now:    time.Now,
	}, nil
}

// NewEmailWithSender injects an SES client, for tests.
func NewEmailWithSender(client SESService, fromEmail string, log logger.Logger) *Email {
	return &Email{
		log:    log.WithFields(map[string]interface{}{"channel": emailChannelName}),
		sender: &sesEmailSender{client: client, fromEmail: fromEmail},
		now:    time.Now,
	}
}

func (e *Email) Name() string { return emailChannelName }

func (e *Email) SendAlert(ctx context.Context, recipients []string, content string) (*Result, error) {
	if len(recipients) == 0 {
		return nil, apperrors.NewNoRecipientsError("未配置邮箱，无法发送邮件通知")
	}

	if err := e.sender.send(ctx, recipients, content); err != nil {
		return nil, err
	}

	e.log.Info("email alert sent", map[string]interface{}{
		"recipients": len(recipients),
		"mode":       e.sender.mode(),
	})

	return &Result{
		Channel:   emailChannelName,
		Mode:      e.sender.mode(),
		ToUser:    strings.Join(recipients, ","),
		Content:   content,
		Timestamp: e.now().UTC(),
	}, nil
}

type simulatedEmailSender struct {
	log logger.Logger
}

func (s *simulatedEmailSender) mode() string { return ModeSimulation }

func (s *simulatedEmailSender) send(_ context.Context, recipients []string, content string) error {
	s.log.Info("email delivery simulated", map[string]interface{}{
		"recipients": strings.Join(recipients, ", "),
		"content":    content,
	})
	return nil
}

type sesEmailSender struct {
	client    SESService
	fromEmail string
}

func (s *sesEmailSender) mode() string { return ModeLive }

func (s *sesEmailSender) send(ctx context.Context, recipients []string, content string) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(emailSubject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(content)},
			},
		},
		Source: aws.String(s.fromEmail),
	})
	if err != nil {
		return apperrors.NewTransportError("SES send failed", err)
	}
	return nil
}
