// Package workflow is the editorial state machine governing submission
// status and stage.
package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"openjournal/pkg/domain"
	"openjournal/pkg/store"
)

var (
	// ErrInvalidTransition rejects any edge outside the defined ones.
	// The submission is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrNotFound      = errors.New("submission not found")
	ErrForbidden     = errors.New("only staff may change submission status")
	ErrIssueRequired = errors.New("publishing requires an issue")
	ErrIssueNotFound = errors.New("issue not found")
)

// legalEdges defines the full transition graph. rejected and published
// are terminal.
var legalEdges = map[domain.SubmissionStatus][]domain.SubmissionStatus{
	domain.StatusSubmitted:   {domain.StatusUnderReview},
	domain.StatusUnderReview: {domain.StatusAccepted, domain.StatusRejected},
	domain.StatusAccepted:    {domain.StatusPublished},
	domain.StatusRejected:    {},
	domain.StatusPublished:   {},
}

// Service applies editorial status transitions.
type Service struct {
	store store.Store
}

// New constructs the workflow service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Transition moves a submission along a legal status edge. Publishing
// requires an issue and records the publication date; every other edge
// leaves the issue reference null. Stage advances monotonically and never
// regresses.
func (s *Service) Transition(caller domain.User, submissionID string, target domain.SubmissionStatus, issueID string) (domain.Submission, error) {
	if !caller.IsStaff() {
		return domain.Submission{}, ErrForbidden
	}
	sub, ok, err := s.store.GetSubmission(submissionID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("fetch submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrNotFound
	}
	if !edgeAllowed(sub.Status, target) {
		slog.Warn("rejected status transition",
			"submission_id", submissionID,
			"from", string(sub.Status),
			"to", string(target),
			"caller_id", caller.ID,
		)
		return domain.Submission{}, ErrInvalidTransition
	}

	var issueRef *string
	var publishedAt *time.Time
	if target == domain.StatusPublished {
		if issueID == "" {
			return domain.Submission{}, ErrIssueRequired
		}
		if _, ok, err := s.store.GetIssue(issueID); err != nil {
			return domain.Submission{}, fmt.Errorf("fetch issue: %w", err)
		} else if !ok {
			return domain.Submission{}, ErrIssueNotFound
		}
		issueRef = &issueID
		now := time.Now().UTC()
		publishedAt = &now
	} else if issueID != "" {
		// Only publishing may carry an issue reference.
		return domain.Submission{}, ErrInvalidTransition
	}

	stage := nextStage(sub.Stage, target)
	if err := s.store.SetSubmissionState(submissionID, target, stage, issueRef, publishedAt); err != nil {
		return domain.Submission{}, fmt.Errorf("set submission state: %w", err)
	}
	sub.Status = target
	sub.Stage = stage
	sub.IssueID = issueRef
	sub.PublishedDate = publishedAt
	return sub, nil
}

func edgeAllowed(from, to domain.SubmissionStatus) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// nextStage returns the stage a submission reaches with the target status,
// never below the stage it already holds. Rejection keeps the stage
// reached so far.
func nextStage(current domain.SubmissionStage, target domain.SubmissionStatus) domain.SubmissionStage {
	var natural domain.SubmissionStage
	switch target {
	case domain.StatusSubmitted:
		natural = domain.StageSubmission
	case domain.StatusUnderReview:
		natural = domain.StageReview
	case domain.StatusAccepted:
		natural = domain.StageEditing
	case domain.StatusPublished:
		natural = domain.StageProduction
	case domain.StatusRejected:
		return current
	default:
		return current
	}
	if natural.Rank() < current.Rank() {
		return current
	}
	return natural
}
