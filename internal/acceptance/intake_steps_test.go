package acceptance

import (
	"context"
	"fmt"
	"slices"

	"github.com/cucumber/godog"

	"github.com/blkout/ivor-core/internal/core/domain"
)

func (s *steps) registerIntake(sc *godog.ScenarioContext) {
	sc.Step(`^a classified item titled "([^"]*)" with description "([^"]*)" and relevance (\d+(?:\.\d+)?)$`, s.aClassifiedItem)
	sc.Step(`^the same content is already indexed$`, s.sameContentIndexed)
	sc.Step(`^the item is validated$`, s.itemIsValidated)
	sc.Step(`^the validation score is (\d+(?:\.\d+)?)$`, s.validationScoreIs)
	sc.Step(`^the issues include the (title|description) length issue$`, s.issuesInclude)
	sc.Step(`^the item is valid$`, s.itemIsValid)
	sc.Step(`^the item is (not )?eligible for auto-approval$`, s.itemEligibility)
	sc.Step(`^the item is flagged as a duplicate$`, s.itemIsDuplicate)
	sc.Step(`^the item is processed for auto-approval$`, s.itemIsProcessed)
	sc.Step(`^the item was (not )?published$`, s.itemWasPublished)
	sc.Step(`^the stored content has status "([^"]*)"$`, s.storedContentStatus)
	sc.Step(`^the review queue is empty$`, s.reviewQueueEmpty)
	sc.Step(`^the review queue holds (\d+) items?$`, s.reviewQueueHolds)
}

func (s *steps) aClassifiedItem(title, description string, relevance float64) error {
	item, err := s.w.intake.ClassifyContent(context.Background(), &domain.RawContentItem{
		SourceID:    "src_acceptance",
		OriginalURL: "https://blkoutuk.com/stories/acceptance",
		Title:       title,
		Description: description,
	})
	if err != nil {
		return err
	}
	item.RelevanceScore = relevance
	s.w.item = item
	return nil
}

func (s *steps) sameContentIndexed() error {
	return s.w.index.Upsert(context.Background(), "content_existing", s.w.item.Embedding, nil)
}

func (s *steps) itemIsValidated() error {
	result, err := s.w.intake.ValidateContent(context.Background(), s.w.item)
	if err != nil {
		return err
	}
	s.w.validation = result
	return nil
}

func (s *steps) validationScoreIs(want float64) error {
	if got := s.w.validation.Score; got != want {
		return fmt.Errorf("expected score %v, got %v", want, got)
	}
	return nil
}

func (s *steps) issuesInclude(kind string) error {
	issue := domain.IssueTitle
	if kind == "description" {
		issue = domain.IssueDescription
	}
	if !slices.Contains(s.w.validation.Issues, issue) {
		return fmt.Errorf("expected issue %q in %v", issue, s.w.validation.Issues)
	}
	return nil
}

func (s *steps) itemIsValid() error {
	if !s.w.validation.IsValid {
		return fmt.Errorf("expected item to be valid, score %v", s.w.validation.Score)
	}
	return nil
}

func (s *steps) itemEligibility(not string) error {
	want := not == ""
	if got := s.w.validation.AutoApprovalEligible; got != want {
		return fmt.Errorf("expected eligibility %v, got %v (issues %v)", want, got, s.w.validation.Issues)
	}
	return nil
}

func (s *steps) itemIsDuplicate() error {
	if s.w.validation.Duplicate == nil {
		return fmt.Errorf("expected a duplicate match")
	}
	if !slices.Contains(s.w.validation.Issues, domain.IssueDuplicate) {
		return fmt.Errorf("expected duplicate issue in %v", s.w.validation.Issues)
	}
	return nil
}

func (s *steps) itemIsProcessed() error {
	published, err := s.w.intake.ProcessForAutoApproval(context.Background(), s.w.item, s.w.validation)
	if err != nil {
		return err
	}
	s.w.published = published
	return nil
}

func (s *steps) itemWasPublished(not string) error {
	want := not == ""
	if s.w.published != want {
		return fmt.Errorf("expected published=%v, got %v", want, s.w.published)
	}
	return nil
}

func (s *steps) storedContentStatus(status string) error {
	stored, err := s.w.contents.Get(context.Background(), s.w.item.ID)
	if err != nil {
		return err
	}
	if string(stored.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, stored.Status)
	}
	return nil
}

func (s *steps) reviewQueueEmpty() error {
	return s.reviewQueueHolds(0)
}

func (s *steps) reviewQueueHolds(n int) error {
	if got := len(s.w.reviews.Items()); got != n {
		return fmt.Errorf("expected %d review items, got %d", n, got)
	}
	return nil
}
