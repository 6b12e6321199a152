package channel

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"wecom-keyword-alert/internal/common/config"
	apperrors "wecom-keyword-alert/internal/common/errors"
	"wecom-keyword-alert/internal/common/logger"
)

const smsChannelName = "sms"

// SNSService is the mockable surface of the AWS SNS client.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMS delivers alerts to phone numbers. The default deployment carries no
// carrier integration and runs the simulated sender, which reports success
// without any network call; AWS SNS is the reserved live integration.
type SMS struct {
	log    logger.Logger
	sender smsSender
	now    func() time.Time
}

type smsSender interface {
	mode() string
	send(ctx context.Context, numbers []string, content string) error
}

// NewSMS picks the live or simulated sender once, at construction.
func NewSMS(cfg config.SMSConfig, log logger.Logger) (*SMS, error) {
	log = log.WithFields(map[string]interface{}{"channel": smsChannelName})

	if !cfg.AWS.Enabled {
		return &SMS{log: log, sender: &simulatedSMSSender{log: log}, now: time.Now}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, apperrors.NewCredentialError("load AWS config for SNS", err)
	}
	return &SMS{
		log:    log,
		sender: &snsSMSSender{client: sns.NewFromConfig(awsCfg), senderID: cfg.AWS.SenderID},
		now:    time.Now,
	}, nil
}

// NewSMSWithSender injects an SNS client, for tests.
func NewSMSWithSender(client SNSService, senderID string, log logger.Logger) *SMS {
	return &SMS{
		log:    log.WithFields(map[string]interface{}{"channel": smsChannelName}),
		sender: &snsSMSSender{client: client, senderID: senderID},
		now:    time.Now,
	}
}

func (s *SMS) Name() string { return smsChannelName }

func (s *SMS) SendAlert(ctx context.Context, recipients []string, content string) (*Result, error) {
	if len(recipients) == 0 {
		return nil, apperrors.NewNoRecipientsError("未配置手机号，无法发送短信通知")
	}

	if err := s.sender.send(ctx, recipients, content); err != nil {
		return nil, err
	}

	s.log.Info("SMS alert sent", map[string]interface{}{
		"recipients": len(recipients),
		"mode":       s.sender.mode(),
	})

	return &Result{
		Channel:   smsChannelName,
		Mode:      s.sender.mode(),
		ToUser:    strings.Join(recipients, ","),
		Content:   content,
		Timestamp: s.now().UTC(),
	}, nil
}

// simulatedSMSSender logs the would-be delivery and reports success.
type simulatedSMSSender struct {
	log logger.Logger
}

func (s *simulatedSMSSender) mode() string { return ModeSimulation }

func (s *simulatedSMSSender) send(_ context.Context, numbers []string, content string) error {
	s.log.Info("SMS delivery simulated", map[string]interface{}{
		"phoneNumbers": strings.Join(numbers, ", "),
		"content":      content,
	})
	return nil
}

// snsSMSSender publishes one SNS message per phone number.
type snsSMSSender struct {
	client   SNSService
	senderID string
}

func (s *snsSMSSender) mode() string { return ModeLive }

func (s *snsSMSSender) send(ctx context.Context, numbers []string, content string) error {
	for _, number := range numbers {
		input := &sns.PublishInput{
			PhoneNumber: aws.String(number),
			Message:     aws.String(content),
		}
		if _, err := s.client.Publish(ctx, input); err != nil {
			return apperrors.NewTransportError("SNS publish failed", err)
		}
	}
	return nil
}
