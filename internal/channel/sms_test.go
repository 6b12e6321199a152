package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wecom-keyword-alert/internal/common/config"
	apperrors "wecom-keyword-alert/internal/common/errors"
	"wecom-keyword-alert/internal/common/logger"
)

// MockSNSService records published messages and returns a scripted error.
type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Published   []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.Published = append(m.Published, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{MessageId: aws.String("mid-1")}, nil
}

func TestSMS_SimulatedSenderAlwaysSucceeds(t *testing.T) {
	s, err := NewSMS(config.SMSConfig{Enabled: true}, logger.NewTestLogger(t))
	require.NoError(t, err)

	result, err := s.SendAlert(context.Background(), []string{"13800138000", "13900139000"}, "alert")
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, result.Mode)
	assert.Equal(t, smsChannelName, result.Channel)
	assert.Equal(t, "13800138000,13900139000", result.ToUser)
}

func TestSMS_NoRecipients(t *testing.T) {
	s, err := NewSMS(config.SMSConfig{}, logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = s.SendAlert(context.Background(), []string{}, "alert")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoRecipients, apperrors.CodeOf(err))
}

func TestSMS_LivePublishesPerNumber(t *testing.T) {
	mock := &MockSNSService{}
	s := NewSMSWithSender(mock, "ALERTS", logger.NewTestLogger(t))

	result, err := s.SendAlert(context.Background(), []string{"13800138000", "13900139000"}, "alert body")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, result.Mode)

	require.Len(t, mock.Published, 2)
	assert.Equal(t, "13800138000", aws.ToString(mock.Published[0].PhoneNumber))
	assert.Equal(t, "13900139000", aws.ToString(mock.Published[1].PhoneNumber))
	assert.Equal(t, "alert body", aws.ToString(mock.Published[0].Message))
}

func TestSMS_PublishFailureIsTransportError(t *testing.T) {
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	s := NewSMSWithSender(mock, "ALERTS", logger.NewTestLogger(t))

	_, err := s.SendAlert(context.Background(), []string{"13800138000"}, "alert")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTransportError, apperrors.CodeOf(err))
}
