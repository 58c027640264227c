package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ecocycle/waste-tracking/shared/events"
)

// SQSSubscriberAdapter exposes an SQSEventSubscriber through the
// events.Subscriber interface. The handler receives only events whose topic
// matches the subscribed pattern; everything else is acked and dropped.
type SQSSubscriberAdapter struct {
	sqsSubscriber *SQSEventSubscriber
	queueURL      string
	logger        *zap.Logger
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter
func NewSQSSubscriberAdapter(queueURL string, logger *zap.Logger) (*SQSSubscriberAdapter, error) {
	return &SQSSubscriberAdapter{
		queueURL: queueURL,
		logger:   logger,
	}, nil
}

type topicFilterHandler struct {
	pattern events.Topic
	handler events.EventHandler
}

func (h *topicFilterHandler) HandlerID() string {
	return h.pattern.String()
}

func (h *topicFilterHandler) Handle(ctx context.Context, event *events.Event) error {
	if !event.Topic.Matches(h.pattern) {
		return nil
	}
	return h.handler.Handle(ctx, event)
}

// Subscribe implements events.Subscriber. A single underlying queue consumer
// is started on first call; only one subscription per adapter is supported.
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, eventType string, handler events.EventHandler) error {
	if s.sqsSubscriber != nil {
		return errors.New("subscriber is already running")
	}

	pattern, err := events.NewTopic(eventType)
	if err != nil {
		return errors.Wrapf(err, "invalid topic pattern %q", eventType)
	}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	s.sqsSubscriber = NewSQSEventSubscriber(
		sqs.NewFromConfig(cfg),
		s.queueURL,
		&topicFilterHandler{pattern: pattern, handler: handler},
		s.logger,
	)

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		s.sqsSubscriber = nil
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	if s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(context.Background()); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.sqsSubscriber = nil
	return nil
}
