package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/jmehdipour/outreach-engine/internal/apperr"
)

type SESConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	ConfigSet     string
	FailThreshold int
	OpenForMs     int
}

// sesAPI is the subset of *sesv2.Client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESBackend delivers email through AWS SES v2.
type SESBackend struct {
	client    sesAPI
	configSet string
	br        *MicroBreaker
}

// NewSESBackend uses static credentials when given, otherwise the default
// AWS credential chain.
func NewSESBackend(ctx context.Context, cfg SESConfig) (*SESBackend, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.OpenForMs <= 0 {
		cfg.OpenForMs = 15000
	}
	return &SESBackend{
		client:    sesv2.NewFromConfig(awsCfg),
		configSet: cfg.ConfigSet,
		br:        NewMicroBreaker(cfg.FailThreshold, time.Duration(cfg.OpenForMs)*time.Millisecond),
	}, nil
}

var _ EmailBackend = (*SESBackend)(nil)

func (s *SESBackend) Name() string { return "ses" }
func (s *SESBackend) Ready() bool  { return s.br.Ready() }

func (s *SESBackend) Send(ctx context.Context, msg Email) error {
	err := s.br.Do(func() error {
		_, err := s.client.SendEmail(ctx, s.input(msg))
		return err
	})
	return apperr.Provider("ses", "send_email", err)
}

func (s *SESBackend) input(msg Email) *sesv2.SendEmailInput {
	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}
	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if s.configSet != "" {
		in.ConfigurationSetName = aws.String(s.configSet)
	}
	for k, v := range msg.Tags {
		in.EmailTags = append(in.EmailTags, types.MessageTag{Name: aws.String(k), Value: aws.String(v)})
	}
	return in
}

var errEmptyRecipient = errors.New("empty recipient")
