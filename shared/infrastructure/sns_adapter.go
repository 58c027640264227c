package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pkg/errors"

	"github.com/ecocycle/waste-tracking/shared/events"
)

// SNSPublisherAdapter wires an SNSEventPublisher behind the events.Publisher
// interface, owning the AWS client setup
type SNSPublisherAdapter struct {
	snsPublisher *SNSEventPublisher
}

// NewSNSPublisherAdapter creates a new SNS publisher adapter. The default AWS
// config chain is used, so AWS_ENDPOINT_URL works for LocalStack.
func NewSNSPublisherAdapter(topicArn string) (*SNSPublisherAdapter, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &SNSPublisherAdapter{
		snsPublisher: NewSNSEventPublisher(sns.NewFromConfig(cfg), topicArn),
	}, nil
}

// Publish implements events.Publisher
func (p *SNSPublisherAdapter) Publish(ctx context.Context, events ...*events.Event) error {
	return p.snsPublisher.Publish(ctx, events...)
}

// Close closes the publisher
func (p *SNSPublisherAdapter) Close() error {
	return nil
}
