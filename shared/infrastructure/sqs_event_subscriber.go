package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ecocycle/waste-tracking/shared/events"
	"github.com/ecocycle/waste-tracking/shared/models"
)

const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
)

type sqsMessage struct {
	Message types.Message
	Event   *events.Event
	Err     error
}

// EventHandler routes a consumed event. Implementations decide by topic;
// returning an error leaves the message on the queue for redelivery.
type EventHandler interface {
	HandlerID() string
	Handle(ctx context.Context, event *events.Event) error
}

// EventHandlerFunc adapts a function into an EventHandler
type EventHandlerFunc struct {
	id string
	fn func(ctx context.Context, event *events.Event) error
}

func NewEventHandlerFunc(id string, fn func(ctx context.Context, event *events.Event) error) *EventHandlerFunc {
	return &EventHandlerFunc{id: id, fn: fn}
}

func (h *EventHandlerFunc) HandlerID() string {
	return h.id
}

func (h *EventHandlerFunc) Handle(ctx context.Context, event *events.Event) error {
	return h.fn(ctx, event)
}

// SQSEventSubscriber consumes events from an SQS queue subscribed to the SNS
// topic. Messages are acked on successful handling and left for redelivery
// otherwise, so consumers must tolerate at-least-once delivery.
type SQSEventSubscriber struct {
	mux     sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	options *sqsSubscriberOptions

	client   *sqs.Client
	queueURL string
	handler  EventHandler
	logger   *zap.Logger
}

type sqsSubscriberOptions struct {
	workers             int
	maxNumberOfMessages int32
	waitTimeSeconds     int32
	visibilityTimeout   int32
	sleepAfterEmpty     time.Duration
	sleepAfterError     time.Duration
}

type SQSSubscriberOption func(*sqsSubscriberOptions)

func WithWorkers(workers int) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.workers = workers
	}
}

func WithVisibilityTimeout(seconds int32) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.visibilityTimeout = seconds
	}
}

// NewSQSEventSubscriber creates a new SQS event subscriber
func NewSQSEventSubscriber(
	client *sqs.Client,
	queueURL string,
	handler EventHandler,
	logger *zap.Logger,
	opts ...SQSSubscriberOption,
) *SQSEventSubscriber {
	options := &sqsSubscriberOptions{
		workers:             10,
		maxNumberOfMessages: 5,
		waitTimeSeconds:     15,
		visibilityTimeout:   30,
		sleepAfterEmpty:     5 * time.Second,
		sleepAfterError:     10 * time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &SQSEventSubscriber{
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		logger:   logger,
		options:  options,
	}
}

// Start launches the reader and worker goroutines. It is a no-op when the
// subscriber is already running.
func (s *SQSEventSubscriber) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.running.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	inbound := make(chan *sqsMessage, s.options.workers)

	for i := 0; i < s.options.workers; i++ {
		go s.startWorker(ctx, inbound)
	}
	go s.startReader(ctx, inbound)

	s.running.Store(true)

	return nil
}

// Stop cancels the consuming goroutines
func (s *SQSEventSubscriber) Stop(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if !s.running.Load() {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	s.running.Store(false)

	return nil
}

func (s *SQSEventSubscriber) startWorker(ctx context.Context, inbound <-chan *sqsMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-inbound:
			if message == nil {
				continue
			}
			s.handle(ctx, message)
		}
	}
}

func (s *SQSEventSubscriber) startReader(ctx context.Context, inbound chan<- *sqsMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.read(ctx, inbound); err != nil {
				s.logger.Warn("failed to read from queue", zap.Error(err))
				time.Sleep(s.options.sleepAfterError)
			}
		}
	}
}

func (s *SQSEventSubscriber) read(ctx context.Context, inbound chan<- *sqsMessage) error {
	output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(s.queueURL),
		MaxNumberOfMessages:   s.options.maxNumberOfMessages,
		WaitTimeSeconds:       s.options.waitTimeSeconds,
		VisibilityTimeout:     s.options.visibilityTimeout,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to receive message from SQS")
	}

	if len(output.Messages) == 0 {
		time.Sleep(s.options.sleepAfterEmpty)
		return nil
	}

	for _, message := range output.Messages {
		event, err := s.decode(message)
		if err != nil {
			s.logger.Warn("dropping malformed message",
				zap.String("message_id", aws.ToString(message.MessageId)),
				zap.Error(err))
			continue
		}

		select {
		case inbound <- &sqsMessage{Message: message, Event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// decode rebuilds the event envelope published by SNSEventPublisher. The
// queue must be subscribed with raw message delivery enabled.
func (s *SQSEventSubscriber) decode(message types.Message) (*events.Event, error) {
	var envelope snsMessage
	if err := json.Unmarshal([]byte(aws.ToString(message.Body)), &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message body")
	}

	id, err := models.NewID(envelope.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event id")
	}

	topic, err := events.NewTopic(envelope.Topic)
	if err != nil {
		return nil, err
	}

	event := &events.Event{
		ID:        id,
		Topic:     topic,
		EventType: envelope.Topic,
		Data:      envelope.Payload,
		Metadata:  envelope.Metadata,
		Timestamp: envelope.Timestamp,
	}

	if event.Metadata == nil {
		event.Metadata = make(events.Metadata)
	}

	event.Metadata.Set(SQSMessageIDKey, aws.ToString(message.MessageId))
	if message.ReceiptHandle != nil {
		event.Metadata.Set(SQSReceiptHandleKey, aws.ToString(message.ReceiptHandle))
	}

	return event, nil
}

func (s *SQSEventSubscriber) handle(ctx context.Context, message *sqsMessage) {
	if err := s.handler.Handle(ctx, message.Event); err != nil {
		// The message stays invisible until its timeout lapses, then SQS
		// redelivers it
		s.logger.Warn("event handler failed",
			zap.String("handler", s.handler.HandlerID()),
			zap.String("topic", message.Event.Topic.String()),
			zap.Error(err))
		return
	}

	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &s.queueURL,
		ReceiptHandle: message.Message.ReceiptHandle,
	})
	if err != nil {
		s.logger.Warn("failed to ack message",
			zap.String("message_id", aws.ToString(message.Message.MessageId)),
			zap.Error(err))
	}
}
