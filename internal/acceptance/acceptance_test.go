package acceptance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"github.com/blkout/ivor-core/internal/adapters/driven/memory"
	"github.com/blkout/ivor-core/internal/adapters/driven/sqlite"
	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven/mocks"
	"github.com/blkout/ivor-core/internal/core/services"
	"github.com/blkout/ivor-core/internal/normalisers"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// world is the state shared by the steps of one scenario
type world struct {
	logger *slog.Logger

	store       *sqlite.EventStore
	broker      *memory.Broker
	tasks       *mocks.MockTaskQueue
	coordinator *services.Coordinator

	index    *memory.VectorIndex
	contents *mocks.MockContentStore
	reviews  *mocks.MockReviewQueue
	intake   *services.IntakeService

	item       *domain.ClassifiedContentItem
	validation *domain.ValidationResult
	published  bool

	mu     sync.Mutex
	ran    []string
	event  *domain.CrossDomainEvent
	result *domain.ProcessingResult
}

func newWorld() (*world, error) {
	w := &world{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tasks:    mocks.NewMockTaskQueue(),
		index:    memory.NewVectorIndex(),
		contents: mocks.NewMockContentStore(),
		reviews:  mocks.NewMockReviewQueue(),
	}

	store, err := sqlite.NewEventStore(":memory:")
	if err != nil {
		return nil, err
	}
	w.store = store
	w.broker = memory.NewBroker(w.logger)

	w.coordinator = services.NewCoordinator(services.CoordinatorConfig{
		Store:     w.store,
		Broker:    w.broker,
		TaskQueue: w.tasks,
		Logger:    w.logger,
	})

	w.intake = services.NewIntakeService(services.IntakeServiceConfig{
		Normalisers: normalisers.DefaultRegistry(),
		Embedder:    mocks.NewMockEmbeddingService(),
		Classifier:  mocks.NewMockClassifier(),
		Validation: services.NewValidationEngine(services.ValidationEngineConfig{
			Duplicates: services.NewDuplicateDetector(w.index),
			Logger:     w.logger,
		}),
		Index:    w.index,
		Contents: w.contents,
		Reviews:  w.reviews,
		Events:   w.coordinator,
		Logger:   w.logger,
	})
	return w, nil
}

func (w *world) close() {
	if w.store != nil {
		w.store.Close()
	}
}

func initializeScenario(sc *godog.ScenarioContext) {
	s := &steps{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w, err := newWorld()
		s.w = w
		return ctx, err
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if s.w != nil {
			s.w.close()
		}
		return ctx, nil
	})

	s.registerIntake(sc)
	s.registerCoordination(sc)
}

// steps binds step definitions to the current scenario's world
type steps struct {
	w *world
}
