package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven/mocks"
	"github.com/blkout/ivor-core/internal/normalisers"
)

type intakeFixture struct {
	svc        *IntakeService
	embedder   *mocks.MockEmbeddingService
	classifier *mocks.MockClassifier
	index      *mocks.MockVectorIndex
	contents   *mocks.MockContentStore
	reviews    *mocks.MockReviewQueue
	legacy     *mocks.MockLegacyPublisher
	events     *mocks.MockEventStore
	broker     *mocks.MockBroker
	recorder   *mocks.MockMetricsRecorder
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()
	f := &intakeFixture{
		embedder:   mocks.NewMockEmbeddingService(),
		classifier: mocks.NewMockClassifier(),
		index:      mocks.NewMockVectorIndex(),
		contents:   mocks.NewMockContentStore(),
		reviews:    mocks.NewMockReviewQueue(),
		legacy:     &mocks.MockLegacyPublisher{},
		events:     mocks.NewMockEventStore(),
		broker:     mocks.NewMockBroker(),
		recorder:   mocks.NewMockMetricsRecorder(),
	}
	coord := NewCoordinator(CoordinatorConfig{Store: f.events, Broker: f.broker})
	f.svc = NewIntakeService(IntakeServiceConfig{
		Normalisers: normalisers.DefaultRegistry(),
		Embedder:    f.embedder,
		Classifier:  f.classifier,
		Index:       f.index,
		Contents:    f.contents,
		Reviews:     f.reviews,
		Legacy:      f.legacy,
		Events:      coord,
		Recorder:    f.recorder,
	})
	return f
}

func relevantItem(url string) *domain.RawContentItem {
	return &domain.RawContentItem{
		SourceID:    "src_blkout",
		OriginalURL: url,
		Title:       "Black queer liberation summit",
		Description: "Community organizing, mutual aid and solidarity for Black LGBTQ activists across the UK.",
		Body:        "A grassroots movement for equality, rights and collective empowerment.",
	}
}

func TestIntake_ClassifyContent(t *testing.T) {
	f := newIntakeFixture(t)
	f.classifier.Result = domain.Classification{
		Category: domain.CategoryEvent, Subcategory: "summit", Confidence: 0.87, Tags: []string{"organizing"},
	}
	raw := relevantItem("https://blkout.example/summit")
	raw.ImageURL = "https://blkout.example/summit.png"

	item, err := f.svc.ClassifyContent(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, domain.ContentID("src_blkout", "https://blkout.example/summit"), item.ID)
	assert.Equal(t, domain.CategoryEvent, item.Category)
	assert.Equal(t, "summit", item.Subcategory)
	assert.Equal(t, 0.87, item.ConfidenceScore)
	assert.Len(t, item.Embedding, f.embedder.Dimensions())
	assert.Greater(t, item.RelevanceScore, 0.8)
	assert.Equal(t, domain.ContentStatusPending, item.Status)
	assert.Equal(t, true, item.Metadata["has_image"])
	assert.Equal(t, "mock-embedding-model", item.Metadata["embedding_model"])

	// nothing persisted
	assert.Equal(t, 0, f.contents.Count())
	assert.Equal(t, 0, f.index.Count())
}

func TestIntake_ClassifyContent_NormalisesHTML(t *testing.T) {
	f := newIntakeFixture(t)
	raw := relevantItem("https://blkout.example/html")
	raw.MimeType = "text/html"
	raw.Body = "<p>Black <b>joy</b></p><script>track()</script>"

	item, err := f.svc.ClassifyContent(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Black joy", item.Body)
}

func TestIntake_ClassifyContent_Failures(t *testing.T) {
	t.Run("embedding error", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.embedder.EmbedFn = func([]string) ([][]float32, error) { return nil, errors.New("rate limited") }
		_, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/1"))
		assert.ErrorIs(t, err, domain.ErrClassificationFailed)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.embedder.EmbedFn = func([]string) ([][]float32, error) { return [][]float32{{1, 2, 3}}, nil }
		_, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/2"))
		assert.ErrorIs(t, err, domain.ErrClassificationFailed)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("classifier error", func(t *testing.T) {
		f := newIntakeFixture(t)
		f.classifier.ClassifyFn = func(string, string) (*domain.Classification, error) {
			return nil, errors.New("upstream 500")
		}
		_, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/3"))
		assert.ErrorIs(t, err, domain.ErrClassificationFailed)
	})

	t.Run("foreign id", func(t *testing.T) {
		f := newIntakeFixture(t)
		raw := relevantItem("https://x.example/4")
		raw.ID = "content_chosen_by_client"
		_, err := f.svc.ClassifyContent(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, f.embedder.Calls())
	})

	t.Run("missing identity", func(t *testing.T) {
		f := newIntakeFixture(t)
		_, err := f.svc.ClassifyContent(context.Background(), &domain.RawContentItem{Title: "anon"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestIntake_StoreContent_Idempotent(t *testing.T) {
	f := newIntakeFixture(t)
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/idem"))
	require.NoError(t, err)

	require.NoError(t, f.svc.StoreContent(context.Background(), item))
	require.NoError(t, f.svc.StoreContent(context.Background(), item))

	assert.Equal(t, 1, f.contents.Count())
	assert.Equal(t, 1, f.index.Count())
}

func TestIntake_StoreContent_CompensatesVectorWrite(t *testing.T) {
	f := newIntakeFixture(t)
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/comp"))
	require.NoError(t, err)
	f.contents.SaveFn = func(*domain.ClassifiedContentItem) error { return errors.New("postgres down") }

	err = f.svc.StoreContent(context.Background(), item)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPersistenceInconsistency)
	assert.False(t, f.index.Has(item.ID))
}

func TestIntake_StoreContent_KeepsVectorOfStoredRecord(t *testing.T) {
	f := newIntakeFixture(t)
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/kept"))
	require.NoError(t, err)
	require.NoError(t, f.svc.StoreContent(context.Background(), item))

	f.contents.SaveFn = func(*domain.ClassifiedContentItem) error { return errors.New("transient") }
	err = f.svc.StoreContent(context.Background(), item)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPersistenceInconsistency)
	assert.True(t, f.index.Has(item.ID))
	assert.Equal(t, 1, f.contents.Count())
}

func TestIntake_StoreContent_ReportsInconsistency(t *testing.T) {
	f := newIntakeFixture(t)
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/orphan"))
	require.NoError(t, err)
	f.contents.SaveFn = func(*domain.ClassifiedContentItem) error { return errors.New("postgres down") }
	f.index.DeleteFn = func(string) error { return errors.New("vespa down") }

	err = f.svc.StoreContent(context.Background(), item)

	assert.ErrorIs(t, err, domain.ErrPersistenceInconsistency)
	assert.True(t, f.index.Has(item.ID))
}

func TestIntake_StoreContent_RejectsWrongDimension(t *testing.T) {
	f := newIntakeFixture(t)
	item := classified("content_dim", "Black Queer Organisers Weekend", longDescription, 0.9)
	item.Embedding = []float32{1, 2}

	err := f.svc.StoreContent(context.Background(), item)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, f.index.Count())
}

func TestIntake_ProcessForAutoApproval_ScenarioB(t *testing.T) {
	f := newIntakeFixture(t)
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/b"))
	require.NoError(t, err)
	item.RelevanceScore = 0.9

	validation, err := f.svc.ValidateContent(context.Background(), item)
	require.NoError(t, err)
	require.Equal(t, 1.0, validation.Score)
	require.True(t, validation.AutoApprovalEligible)

	published, err := f.svc.ProcessForAutoApproval(context.Background(), item, validation)
	require.NoError(t, err)
	assert.True(t, published)

	stored, err := f.contents.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusPublished, stored.Status)
	assert.True(t, f.index.Has(item.ID))
	assert.Equal(t, []string{item.ID}, f.legacy.Published())
	assert.Empty(t, f.reviews.Items())

	events := f.events.All()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeCommunityNotification, events[0].EventType)
	assert.Equal(t, "published", events[0].EventData["decision"])
	assert.Equal(t, 90, events[0].LiberationRelevanceScore)
	assert.Equal(t, []string{domain.DomainCommunity, domain.DomainSocial}, events[0].TargetDomains)
}

func TestIntake_ProcessForAutoApproval_NotEligibleQueuesReview(t *testing.T) {
	f := newIntakeFixture(t)
	item := classified("content_review", "AB", "short", 0.7)
	item.Embedding = make([]float32, f.embedder.Dimensions())
	item.Embedding[0] = 1

	validation, err := f.svc.ValidateContent(context.Background(), item)
	require.NoError(t, err)

	published, err := f.svc.ProcessForAutoApproval(context.Background(), item, validation)
	require.NoError(t, err)
	assert.False(t, published)

	reviews := f.reviews.Items()
	require.Len(t, reviews, 1)
	assert.Equal(t, "content_review", reviews[0].ContentID)
	assert.Equal(t, domain.ReviewPriorityNormal, reviews[0].Priority)
	assert.Len(t, reviews[0].Issues, 2)

	stored, err := f.contents.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusReview, stored.Status)
	assert.Empty(t, f.legacy.Published())

	events := f.events.All()
	require.Len(t, events, 1)
	assert.Equal(t, "review", events[0].EventData["decision"])
}

func TestIntake_ProcessForAutoApproval_LegacyFailureIsBestEffort(t *testing.T) {
	f := newIntakeFixture(t)
	f.legacy.PublishFn = func(*domain.ClassifiedContentItem) error { return errors.New("circuit open") }
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/legacy"))
	require.NoError(t, err)
	item.RelevanceScore = 0.9
	validation, _ := f.svc.ValidateContent(context.Background(), item)

	published, err := f.svc.ProcessForAutoApproval(context.Background(), item, validation)
	require.NoError(t, err)
	assert.True(t, published)
}

func TestIntake_ProcessForAutoApproval_StoreFailureFallsBackToReview(t *testing.T) {
	f := newIntakeFixture(t)
	item, err := f.svc.ClassifyContent(context.Background(), relevantItem("https://x.example/fallback"))
	require.NoError(t, err)
	item.RelevanceScore = 0.9
	validation, _ := f.svc.ValidateContent(context.Background(), item)

	saves := 0
	f.contents.SaveFn = func(*domain.ClassifiedContentItem) error {
		saves++
		if saves == 1 {
			return errors.New("transient")
		}
		return nil
	}

	published, err := f.svc.ProcessForAutoApproval(context.Background(), item, validation)
	require.NoError(t, err)
	assert.False(t, published)
	assert.Len(t, f.reviews.Items(), 1)
	assert.Empty(t, f.legacy.Published())
}

func TestIntake_IngestBatch_IsolatesFailures(t *testing.T) {
	f := newIntakeFixture(t)
	f.classifier.ClassifyFn = func(title, _ string) (*domain.Classification, error) {
		if title == "broken" {
			return nil, errors.New("classifier timeout")
		}
		c := domain.DefaultClassification()
		return &c, nil
	}

	broken := relevantItem("https://x.example/broken")
	broken.Title = "broken"
	short := &domain.RawContentItem{SourceID: "src", OriginalURL: "https://x.example/short", Title: "AB", Description: "short"}

	result := f.svc.IngestBatch(context.Background(), []*domain.RawContentItem{
		relevantItem("https://x.example/good"),
		broken,
		short,
	})

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.PendingReview)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, domain.DecisionRejected, result.Outcomes[1].Decision)
	assert.NotEmpty(t, result.Outcomes[1].Error)
	assert.NotEmpty(t, result.Outcomes[0].EventID)

	// the failed item left no partial record
	assert.Equal(t, 2, f.contents.Count())
	assert.Equal(t, 1, f.recorder.Intake[domain.DecisionRejected])
}

func TestIntake_IngestBatch_StopsOnCancel(t *testing.T) {
	f := newIntakeFixture(t)
	f.svc.callDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *domain.BatchResult, 1)
	go func() {
		done <- f.svc.IngestBatch(ctx, []*domain.RawContentItem{
			relevantItem("https://x.example/1"),
			relevantItem("https://x.example/2"),
		})
	}()

	require.Eventually(t, func() bool { return f.contents.Count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case result := <-done:
		assert.Equal(t, 1, result.Total)
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not stop after cancellation")
	}
}

func TestIntake_Process_DuplicateGoesToReview(t *testing.T) {
	f := newIntakeFixture(t)
	first := relevantItem("https://x.example/original")
	copyItem := relevantItem("https://x.example/syndicated")

	out1, err := f.svc.Process(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, domain.DecisionPublished, out1.Decision)

	// same title and description give the same embedding
	out2, err := f.svc.Process(context.Background(), copyItem)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionReview, out2.Decision)
	require.NotNil(t, out2.Validation.Duplicate)
	assert.Equal(t, out1.ContentID, out2.Validation.Duplicate.ID)
}

func TestIntake_Process_ReingestKeepsPublishedRecord(t *testing.T) {
	f := newIntakeFixture(t)
	first, err := f.svc.Process(context.Background(), relevantItem("https://x.example/stable"))
	require.NoError(t, err)
	require.Equal(t, domain.DecisionPublished, first.Decision)

	again := relevantItem("https://x.example/stable")
	again.Title = "Short"
	second, err := f.svc.Process(context.Background(), again)
	require.NoError(t, err)

	assert.Equal(t, first.ContentID, second.ContentID)
	assert.Equal(t, domain.DecisionPublished, second.Decision)
	assert.Equal(t, "Black queer liberation summit", second.Item.Title)

	stored, err := f.contents.Get(context.Background(), first.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "Black queer liberation summit", stored.Title)
	assert.Equal(t, domain.ContentStatusPublished, stored.Status)
	assert.Empty(t, f.reviews.Items())
	assert.Equal(t, []string{first.ContentID}, f.legacy.Published())
	assert.Len(t, f.events.All(), 1)
}

func TestIntake_ProcessForAutoApproval_PromotesStoredReviewRecord(t *testing.T) {
	f := newIntakeFixture(t)
	ctx := context.Background()

	item, err := f.svc.ClassifyContent(ctx, relevantItem("https://x.example/promote"))
	require.NoError(t, err)
	held := domain.NewValidationResult()
	published, err := f.svc.ProcessForAutoApproval(ctx, item, held)
	require.NoError(t, err)
	require.False(t, published)

	raw := relevantItem("https://x.example/promote")
	raw.Title = "Black queer liberation summit, updated listing"
	resubmitted, err := f.svc.ClassifyContent(ctx, raw)
	require.NoError(t, err)
	eligible := domain.NewValidationResult()
	eligible.AutoApprovalEligible = true

	published, err = f.svc.ProcessForAutoApproval(ctx, resubmitted, eligible)
	require.NoError(t, err)
	assert.True(t, published)

	stored, err := f.contents.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusPublished, stored.Status)
	assert.Equal(t, "Black queer liberation summit", stored.Title)
	assert.Equal(t, []string{item.ID}, f.legacy.Published())
	assert.Len(t, f.reviews.Items(), 1)
}

func TestIntake_ProcessForAutoApproval_StoredRecordStaysInReview(t *testing.T) {
	f := newIntakeFixture(t)
	ctx := context.Background()

	item, err := f.svc.ClassifyContent(ctx, relevantItem("https://x.example/hold"))
	require.NoError(t, err)
	_, err = f.svc.ProcessForAutoApproval(ctx, item, domain.NewValidationResult())
	require.NoError(t, err)

	eligible := domain.NewValidationResult()
	eligible.AutoApprovalEligible = true
	f.contents.UpdateStatusFn = func(string, domain.ContentStatus) error { return errors.New("postgres down") }

	again, err := f.svc.ClassifyContent(ctx, relevantItem("https://x.example/hold"))
	require.NoError(t, err)
	published, err := f.svc.ProcessForAutoApproval(ctx, again, eligible)
	require.NoError(t, err)
	assert.False(t, published)

	stored, err := f.contents.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusReview, stored.Status)
	assert.Len(t, f.reviews.Items(), 1)
	assert.Equal(t, domain.ReviewID(item.ID), f.reviews.Items()[0].ID)
	assert.Empty(t, f.legacy.Published())
}
