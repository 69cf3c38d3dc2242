package store

import (
	"time"

	"openjournal/pkg/domain"
)

// Store defines persistence operations for users, submissions, files,
// sections and issues.
type Store interface {
	// users
	CreateUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// submissions. Create and Update are single transactions spanning the
	// submission row, the optional new file row, and the full co-author
	// replacement.
	CreateSubmission(sub domain.Submission, file *domain.FileAsset, coauthors []domain.CoAuthor) error
	UpdateSubmission(sub domain.Submission, file *domain.FileAsset, coauthors []domain.CoAuthor) error
	GetSubmission(id string) (domain.Submission, bool, error)
	ListSubmissionsByAuthor(authorID string) ([]domain.Submission, error)
	ListRecentSubmissions(limit int) ([]domain.Submission, error)
	SetSubmissionState(id string, status domain.SubmissionStatus, stage domain.SubmissionStage, issueID *string, publishedAt *time.Time) error
	ListCoauthors(submissionID string) ([]domain.CoAuthor, error)

	// files
	GetFile(id string) (domain.FileAsset, bool, error)

	// sections
	SaveSection(domain.Section) error
	ListActiveSections() ([]domain.Section, error)

	// issues
	SaveIssue(domain.Issue) error
	GetIssue(id string) (domain.Issue, bool, error)
	CurrentIssue() (domain.Issue, bool, error)

	// catalog reads, restricted to published submissions
	GetPublishedArticle(id string) (domain.Article, bool, error)
	ListPublishedArticles(limit int) ([]domain.Article, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
