package domain

import "time"

type SubmissionStatus string

const (
	StatusSubmitted   SubmissionStatus = "submitted"
	StatusUnderReview SubmissionStatus = "under_review"
	StatusAccepted    SubmissionStatus = "accepted"
	StatusRejected    SubmissionStatus = "rejected"
	StatusPublished   SubmissionStatus = "published"
)

type SubmissionStage string

const (
	StageSubmission SubmissionStage = "submission"
	StageReview     SubmissionStage = "review"
	StageEditing    SubmissionStage = "editing"
	StageProduction SubmissionStage = "production"
)

// Rank orders stages along the production pipeline. A submission's stage
// never moves to a lower rank.
func (s SubmissionStage) Rank() int {
	switch s {
	case StageSubmission:
		return 0
	case StageReview:
		return 1
	case StageEditing:
		return 2
	case StageProduction:
		return 3
	default:
		return 0
	}
}

type UserRole string

const (
	RoleAuthor UserRole = "author"
	RoleEditor UserRole = "editor"
	RoleAdmin  UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

type IssueStatus string

const (
	IssueDraft     IssueStatus = "draft"
	IssuePublished IssueStatus = "published"
)

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          UserRole   `json:"role"`
	Status        UserStatus `json:"status"`
	Affiliation   string     `json:"affiliation,omitempty"`
	Country       string     `json:"country,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsStaff reports whether the user may act on submissions they do not own.
func (u User) IsStaff() bool {
	switch u.Role {
	case RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Submission struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Abstract       string           `json:"abstract"`
	Keywords       []string         `json:"keywords"`
	Language       string           `json:"language"`
	SectionID      *string          `json:"sectionId,omitempty"`
	AuthorID       string           `json:"authorId"`
	Status         SubmissionStatus `json:"status"`
	Stage          SubmissionStage  `json:"stage"`
	FileID         *string          `json:"fileId,omitempty"`
	IssueID        *string          `json:"issueId,omitempty"`
	SubmissionDate time.Time        `json:"submissionDate"`
	PublishedDate  *time.Time       `json:"publishedDate,omitempty"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// CoAuthor is an email-identified contributor. UserID is nil when the email
// does not belong to a registered account.
type CoAuthor struct {
	SubmissionID string  `json:"submissionId"`
	UserID       *string `json:"userId,omitempty"`
	Email        string  `json:"email"`
}

type FileAsset struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"-"`
	MimeType   string    `json:"mimeType"`
	UploaderID string    `json:"uploaderId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Section struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sortOrder"`
}

type Issue struct {
	ID      string      `json:"id"`
	Volume  int         `json:"volume"`
	Number  int         `json:"number"`
	Year    int         `json:"year"`
	Current bool        `json:"current"`
	Status  IssueStatus `json:"status"`
}

// Article is the catalog's read view of a published submission, joined with
// author and section display data.
type Article struct {
	Submission
	AuthorFirstName   string `json:"authorFirstName"`
	AuthorLastName    string `json:"authorLastName"`
	AuthorAffiliation string `json:"authorAffiliation,omitempty"`
	SectionTitle      string `json:"sectionTitle,omitempty"`
	Issue             *Issue `json:"issue,omitempty"`
}
