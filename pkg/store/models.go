package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"uniqueIndex;not null"`
	PasswordHash  string `gorm:"not null"`
	FirstName     string `gorm:"not null"`
	LastName      string `gorm:"not null"`
	Role          string `gorm:"not null"`
	Status        string `gorm:"not null"`
	Affiliation   string
	Country       string
	EmailVerified bool
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type SubmissionModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	Abstract       string `gorm:"type:text"`
	Keywords       datatypes.JSON
	Language       string
	SectionID      *string `gorm:"index"`
	AuthorID       string  `gorm:"not null;index"`
	Status         string  `gorm:"not null"`
	Stage          string  `gorm:"not null"`
	FileID         *string
	IssueID        *string
	SubmissionDate time.Time `gorm:"not null;index"`
	PublishedDate  *time.Time
	UpdatedAt      time.Time

	Coauthors []CoauthorModel `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

type CoauthorModel struct {
	ID           uint    `gorm:"primaryKey;autoIncrement"`
	SubmissionID string  `gorm:"not null;index"`
	UserID       *string `gorm:"index"`
	Email        string  `gorm:"not null"`
}

type FileModel struct {
	ID         string `gorm:"primaryKey"`
	Filename   string `gorm:"not null"`
	StorageKey string `gorm:"not null"`
	MimeType   string
	UploaderID string    `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

type SectionModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Active    bool
	SortOrder int
}

type IssueModel struct {
	ID      string `gorm:"primaryKey"`
	Volume  int    `gorm:"not null"`
	Number  int    `gorm:"not null"`
	Year    int    `gorm:"not null"`
	Current bool
	Status  string `gorm:"not null"`
}
