// Package mailer delivers transactional email through Amazon SES.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/config"
)

// Message is one outgoing email. At least one of HTML and Text is set.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sesSender struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

// NewSESSender builds a Sender on the default AWS credential chain.
func NewSESSender(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	if cfg.Sender == "" {
		return nil, errors.New("mail.sender must be set")
	}
	awsConfig, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("AWS config load failed: %w", err)
	}
	return &sesSender{
		client: ses.NewFromConfig(awsConfig),
		from:   cfg.Sender,
		logger: logger.Named("mailer.ses"),
	}, nil
}

func (s *sesSender) Send(ctx context.Context, msg Message) error {
	body := &types.Body{}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		s.logger.Error("SES send error", zap.String("to", msg.To), zap.Error(err))
		return fmt.Errorf("email send failed: %w", err)
	}
	s.logger.Info("email sent", zap.String("to", msg.To), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
