package workflow

import (
	"errors"
	"testing"
	"time"

	"openjournal/internal/util"
	"openjournal/pkg/domain"
	"openjournal/pkg/store"
)

type fixture struct {
	store  *store.MemoryStore
	svc    *Service
	editor domain.User
	author domain.User
	sub    domain.Submission
	issue  domain.Issue
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := store.NewMemoryStore()
	now := time.Now().UTC()
	author := domain.User{
		ID:        util.NewID(),
		Email:     "author@example.org",
		FirstName: "A",
		LastName:  "B",
		Role:      domain.RoleAuthor,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	editor := domain.User{
		ID:        util.NewID(),
		Email:     "editor@example.org",
		FirstName: "E",
		LastName:  "D",
		Role:      domain.RoleEditor,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, u := range []domain.User{author, editor} {
		if err := st.CreateUser(u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	sub := domain.Submission{
		ID:             util.NewID(),
		Title:          "Workflows Considered",
		AuthorID:       author.ID,
		Status:         domain.StatusSubmitted,
		Stage:          domain.StageSubmission,
		SubmissionDate: now,
		UpdatedAt:      now,
	}
	if err := st.CreateSubmission(sub, nil, nil); err != nil {
		t.Fatalf("create submission: %v", err)
	}
	issue := domain.Issue{
		ID:      util.NewID(),
		Volume:  1,
		Number:  2,
		Year:    2026,
		Current: true,
		Status:  domain.IssuePublished,
	}
	if err := st.SaveIssue(issue); err != nil {
		t.Fatalf("save issue: %v", err)
	}
	return fixture{store: st, svc: New(st), editor: editor, author: author, sub: sub, issue: issue}
}

func (f fixture) transition(t *testing.T, target domain.SubmissionStatus, issueID string) domain.Submission {
	t.Helper()
	sub, err := f.svc.Transition(f.editor, f.sub.ID, target, issueID)
	if err != nil {
		t.Fatalf("transition to %s: %v", target, err)
	}
	return sub
}

func TestFullLifecycleToPublished(t *testing.T) {
	f := newFixture(t)

	sub := f.transition(t, domain.StatusUnderReview, "")
	if sub.Stage != domain.StageReview {
		t.Fatalf("stage = %q, want review", sub.Stage)
	}
	sub = f.transition(t, domain.StatusAccepted, "")
	if sub.Stage != domain.StageEditing {
		t.Fatalf("stage = %q, want editing", sub.Stage)
	}
	sub = f.transition(t, domain.StatusPublished, f.issue.ID)
	if sub.Status != domain.StatusPublished {
		t.Fatalf("status = %q, want published", sub.Status)
	}
	if sub.Stage != domain.StageProduction {
		t.Fatalf("stage = %q, want production", sub.Stage)
	}
	if sub.IssueID == nil || *sub.IssueID != f.issue.ID {
		t.Fatalf("issue reference not set")
	}
	if sub.PublishedDate == nil {
		t.Fatalf("published date not set")
	}
}

func TestPublishRequiresAcceptedStatus(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Transition(f.editor, f.sub.ID, domain.StatusPublished, f.issue.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from submitted, got: %v", err)
	}

	f.transition(t, domain.StatusUnderReview, "")
	f.transition(t, domain.StatusAccepted, "")
	f.transition(t, domain.StatusPublished, f.issue.ID)

	// Publishing again is a terminal-state violation.
	if _, err := f.svc.Transition(f.editor, f.sub.ID, domain.StatusPublished, f.issue.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition when already published, got: %v", err)
	}
}

func TestPublishRequiresIssue(t *testing.T) {
	f := newFixture(t)
	f.transition(t, domain.StatusUnderReview, "")
	f.transition(t, domain.StatusAccepted, "")

	if _, err := f.svc.Transition(f.editor, f.sub.ID, domain.StatusPublished, ""); !errors.Is(err, ErrIssueRequired) {
		t.Fatalf("expected ErrIssueRequired, got: %v", err)
	}
	if _, err := f.svc.Transition(f.editor, f.sub.ID, domain.StatusPublished, "no-such-issue"); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("expected ErrIssueNotFound, got: %v", err)
	}
}

func TestNonPublishTransitionRejectsIssue(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Transition(f.editor, f.sub.ID, domain.StatusUnderReview, f.issue.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for issue on review edge, got: %v", err)
	}
	got, _, err := f.store.GetSubmission(f.sub.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Status != domain.StatusSubmitted || got.IssueID != nil {
		t.Fatalf("submission mutated by rejected transition: %+v", got)
	}
}

func TestRejectedIsTerminalAndKeepsStage(t *testing.T) {
	f := newFixture(t)
	f.transition(t, domain.StatusUnderReview, "")

	sub := f.transition(t, domain.StatusRejected, "")
	if sub.Stage != domain.StageReview {
		t.Fatalf("stage = %q after rejection, want review kept", sub.Stage)
	}
	if sub.IssueID != nil {
		t.Fatalf("rejection must not set an issue")
	}
	if _, err := f.svc.Transition(f.editor, f.sub.ID, domain.StatusUnderReview, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected rejected to be terminal, got: %v", err)
	}
}

func TestAuthorsMayNotTransition(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Transition(f.author, f.sub.ID, domain.StatusUnderReview, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for author caller, got: %v", err)
	}
}

func TestTransitionUnknownSubmission(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Transition(f.editor, "missing", domain.StatusUnderReview, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestStageNeverRegresses(t *testing.T) {
	if got := nextStage(domain.StageProduction, domain.StatusUnderReview); got != domain.StageProduction {
		t.Fatalf("stage regressed to %q", got)
	}
	if got := nextStage(domain.StageSubmission, domain.StatusAccepted); got != domain.StageEditing {
		t.Fatalf("stage = %q, want editing", got)
	}
}
