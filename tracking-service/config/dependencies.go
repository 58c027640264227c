package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	sharedinfra "github.com/ecocycle/waste-tracking/shared/infrastructure"
	"github.com/ecocycle/waste-tracking/shared/saga"
	"github.com/ecocycle/waste-tracking/tracking-service/application"
	"github.com/ecocycle/waste-tracking/tracking-service/handlers"
	"github.com/ecocycle/waste-tracking/tracking-service/infrastructure"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Logging
	Logger *zap.Logger

	// Repositories and collaborators
	TransactionRepository *infrastructure.PostgresTransactionRepository
	DetailRepository      *infrastructure.PostgresDetailRepository
	ContainerRepository   *infrastructure.PostgresContainerRepository
	WasteTypeRepository   *infrastructure.PostgresWasteTypeRepository
	StockLedger           *infrastructure.PostgresStockLedger
	PermissionGrants      *infrastructure.PostgresPermissionGrants
	Sequencer             *infrastructure.PostgresSequencer
	Directory             *infrastructure.PostgresDirectory
	TransportAuthorizer   *infrastructure.PostgresTransportAuthorizer
	Notifier              *infrastructure.EventNotifier

	// Saga
	EventStore  *sharedinfra.PostgresEventStore
	Coordinator *saga.Coordinator

	// Use Cases
	RegisterRecover         *application.RegisterRecover
	RegisterTransferRequest *application.RegisterTransferRequest
	RegisterTransferAccept  *application.RegisterTransferAccept
	RegisterTransferReject  *application.RegisterTransferReject
	RegisterTransferCancel  *application.RegisterTransferCancel
	RegisterTransport       *application.RegisterTransport
	GetTransaction          *application.GetTransaction

	// HTTP Handlers
	TrackingHandlers *handlers.TrackingHandlers

	// Event Handlers
	NotificationHandlers *handlers.NotificationEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter
}

func BuildDependencies(config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	logger, err := newLogger(config.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	deps.Logger = logger

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize repositories and collaborators
	deps.TransactionRepository = infrastructure.NewPostgresTransactionRepository(db)
	deps.DetailRepository = infrastructure.NewPostgresDetailRepository(db)
	deps.ContainerRepository = infrastructure.NewPostgresContainerRepository(db)
	deps.WasteTypeRepository = infrastructure.NewPostgresWasteTypeRepository(db)
	deps.StockLedger = infrastructure.NewPostgresStockLedger(db)
	deps.PermissionGrants = infrastructure.NewPostgresPermissionGrants(db)
	deps.Sequencer = infrastructure.NewPostgresSequencer(db)
	deps.Directory = infrastructure.NewPostgresDirectory(db)
	deps.TransportAuthorizer = infrastructure.NewPostgresTransportAuthorizer(db)
	deps.Notifier = infrastructure.NewEventNotifier(eventPublisher)

	// Initialize saga coordinator with its audit store
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)
	deps.Coordinator = saga.NewCoordinator(logger, deps.EventStore)

	// Initialize use cases
	deps.RegisterRecover = application.NewRegisterRecover(
		deps.TransactionRepository,
		deps.DetailRepository,
		deps.ContainerRepository,
		deps.WasteTypeRepository,
		deps.StockLedger,
		deps.Sequencer,
		deps.Coordinator,
		config.Limits.MaxQtyPerItem,
	)
	deps.RegisterTransferRequest = application.NewRegisterTransferRequest(
		deps.TransactionRepository,
		deps.DetailRepository,
		deps.ContainerRepository,
		deps.WasteTypeRepository,
		deps.Directory,
		deps.PermissionGrants,
		deps.Notifier,
		deps.Sequencer,
		deps.Coordinator,
		logger,
	)
	deps.RegisterTransferAccept = application.NewRegisterTransferAccept(
		deps.TransactionRepository,
		deps.DetailRepository,
		deps.ContainerRepository,
		deps.StockLedger,
		deps.Sequencer,
		deps.Coordinator,
	)
	deps.RegisterTransferReject = application.NewRegisterTransferReject(
		deps.TransactionRepository,
		deps.DetailRepository,
		deps.ContainerRepository,
		deps.Sequencer,
		deps.Coordinator,
	)
	deps.RegisterTransferCancel = application.NewRegisterTransferCancel(
		deps.TransactionRepository,
		deps.DetailRepository,
		deps.ContainerRepository,
		deps.PermissionGrants,
		deps.Sequencer,
		deps.Coordinator,
	)
	deps.RegisterTransport = application.NewRegisterTransport(
		deps.TransactionRepository,
		deps.DetailRepository,
		deps.ContainerRepository,
		deps.WasteTypeRepository,
		deps.Directory,
		deps.TransportAuthorizer,
		deps.Notifier,
		deps.Sequencer,
		deps.Coordinator,
		logger,
	)
	deps.GetTransaction = application.NewGetTransaction(
		deps.TransactionRepository,
		deps.DetailRepository,
	)

	// Initialize handlers
	deps.TrackingHandlers = handlers.NewTrackingHandlers(
		deps.RegisterRecover,
		deps.RegisterTransferRequest,
		deps.RegisterTransferAccept,
		deps.RegisterTransferReject,
		deps.RegisterTransferCancel,
		deps.RegisterTransport,
		deps.GetTransaction,
	)
	deps.NotificationHandlers = handlers.NewNotificationEventHandlers(deps.Directory, logger)

	return deps, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
