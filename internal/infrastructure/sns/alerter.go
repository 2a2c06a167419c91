package sns

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-reservas-api/internal/config"
)

// OpsAlerter publishes operational alerts (sweep failures, reconciliation
// failures) to an SNS topic watched by on-call. Best-effort: callers log and
// move on when publishing fails.
type OpsAlerter interface {
	Alert(ctx context.Context, subject, message string) error
}

type alerter struct {
	client   *sns.Client
	topicARN string
}

func NewAlerter(cfg *config.Config) (OpsAlerter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &alerter{client: sns.NewFromConfig(awsCfg), topicARN: cfg.OpsAlertTopic}, nil
}

func (a *alerter) Alert(ctx context.Context, subject, message string) error {
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &a.topicARN,
		Subject:  &subject,
		Message:  &message,
	})
	return err
}
