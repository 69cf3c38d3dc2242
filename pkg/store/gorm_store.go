package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"openjournal/pkg/domain"
)

const migrateLockID int64 = 52815281

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&FileModel{},
			&SectionModel{},
			&IssueModel{},
			&SubmissionModel{},
			&CoauthorModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a new user row.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Create(&model).Error
}

// HasUserEmail checks if email exists. The match is case-sensitive.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateSubmission writes the submission, its optional file row, and its
// co-author rows in one transaction.
func (s *GormStore) CreateSubmission(sub domain.Submission, file *domain.FileAsset, coauthors []domain.CoAuthor) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if file != nil {
			fileModel := fileToModel(*file)
			if err := tx.Create(&fileModel).Error; err != nil {
				return err
			}
		}
		model, err := submissionToModel(sub)
		if err != nil {
			return err
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return replaceCoauthorsTx(tx, sub.ID, coauthors)
	})
}

// UpdateSubmission rewrites the mutable submission fields, inserts the new
// file row when one is attached, and fully replaces the co-author set,
// all in one transaction.
func (s *GormStore) UpdateSubmission(sub domain.Submission, file *domain.FileAsset, coauthors []domain.CoAuthor) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if file != nil {
			fileModel := fileToModel(*file)
			if err := tx.Create(&fileModel).Error; err != nil {
				return err
			}
		}
		keywords, err := keywordsToJSON(sub.Keywords)
		if err != nil {
			return err
		}
		updates := map[string]any{
			"title":      sub.Title,
			"abstract":   sub.Abstract,
			"keywords":   keywords,
			"language":   sub.Language,
			"section_id": sub.SectionID,
			"file_id":    sub.FileID,
			"updated_at": sub.UpdatedAt,
		}
		if err := tx.Model(&SubmissionModel{}).Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
			return err
		}
		return replaceCoauthorsTx(tx, sub.ID, coauthors)
	})
}

// replaceCoauthorsTx removes all co-author rows for the submission and
// reinserts the given list.
func replaceCoauthorsTx(tx *gorm.DB, submissionID string, coauthors []domain.CoAuthor) error {
	if err := tx.Delete(&CoauthorModel{}, "submission_id = ?", submissionID).Error; err != nil {
		return err
	}
	if len(coauthors) == 0 {
		return nil
	}
	models := make([]CoauthorModel, 0, len(coauthors))
	for _, ca := range coauthors {
		models = append(models, CoauthorModel{
			SubmissionID: submissionID,
			UserID:       ca.UserID,
			Email:        ca.Email,
		})
	}
	return tx.Create(&models).Error
}

// GetSubmission retrieves a submission regardless of status.
func (s *GormStore) GetSubmission(id string) (domain.Submission, bool, error) {
	var model SubmissionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, err
	}
	sub, err := submissionFromModel(model)
	if err != nil {
		return domain.Submission{}, false, err
	}
	return sub, true, nil
}

// ListSubmissionsByAuthor returns an author's submissions, newest first.
func (s *GormStore) ListSubmissionsByAuthor(authorID string) ([]domain.Submission, error) {
	var models []SubmissionModel
	if err := s.db.Where("author_id = ?", authorID).
		Order("submission_date DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return submissionsFromModels(models)
}

// ListRecentSubmissions returns the latest submissions across all authors.
func (s *GormStore) ListRecentSubmissions(limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		return []domain.Submission{}, nil
	}
	var models []SubmissionModel
	if err := s.db.Order("submission_date DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return submissionsFromModels(models)
}

// SetSubmissionState updates status, stage, issue reference and publication
// date in one statement.
func (s *GormStore) SetSubmissionState(id string, status domain.SubmissionStatus, stage domain.SubmissionStage, issueID *string, publishedAt *time.Time) error {
	return s.db.Model(&SubmissionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         string(status),
			"stage":          string(stage),
			"issue_id":       issueID,
			"published_date": publishedAt,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// ListCoauthors returns co-author rows for a submission in insertion order.
func (s *GormStore) ListCoauthors(submissionID string) ([]domain.CoAuthor, error) {
	var models []CoauthorModel
	if err := s.db.Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.CoAuthor, 0, len(models))
	for _, m := range models {
		res = append(res, domain.CoAuthor{
			SubmissionID: m.SubmissionID,
			UserID:       m.UserID,
			Email:        m.Email,
		})
	}
	return res, nil
}

// GetFile returns a file asset by ID.
func (s *GormStore) GetFile(id string) (domain.FileAsset, bool, error) {
	var model FileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.FileAsset{}, false, nil
		}
		return domain.FileAsset{}, false, err
	}
	return fileFromModel(model), true, nil
}

// SaveSection inserts or updates a section.
func (s *GormStore) SaveSection(sec domain.Section) error {
	model := SectionModel{
		ID:        sec.ID,
		Title:     sec.Title,
		Active:    sec.Active,
		SortOrder: sec.SortOrder,
	}
	return s.db.Save(&model).Error
}

// ListActiveSections returns active sections ordered by sort order.
func (s *GormStore) ListActiveSections() ([]domain.Section, error) {
	var models []SectionModel
	if err := s.db.Where("active = ?", true).
		Order("sort_order ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Section, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Section{
			ID:        m.ID,
			Title:     m.Title,
			Active:    m.Active,
			SortOrder: m.SortOrder,
		})
	}
	return res, nil
}

// SaveIssue inserts or updates an issue.
func (s *GormStore) SaveIssue(issue domain.Issue) error {
	model := IssueModel{
		ID:      issue.ID,
		Volume:  issue.Volume,
		Number:  issue.Number,
		Year:    issue.Year,
		Current: issue.Current,
		Status:  string(issue.Status),
	}
	return s.db.Save(&model).Error
}

// GetIssue returns an issue by ID.
func (s *GormStore) GetIssue(id string) (domain.Issue, bool, error) {
	var model IssueModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Issue{}, false, nil
		}
		return domain.Issue{}, false, err
	}
	return issueFromModel(model), true, nil
}

// CurrentIssue returns the single published issue flagged current.
// Uniqueness is advisory: the query takes the first match.
func (s *GormStore) CurrentIssue() (domain.Issue, bool, error) {
	var model IssueModel
	if err := s.db.Where("current = ? AND status = ?", true, string(domain.IssuePublished)).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Issue{}, false, nil
		}
		return domain.Issue{}, false, err
	}
	return issueFromModel(model), true, nil
}

type articleRow struct {
	SubmissionModel
	FirstName    string
	LastName     string
	Affiliation  string
	SectionTitle *string
	IssueVolume  *int
	IssueNumber  *int
	IssueYear    *int
	IssueCurrent *bool
	IssueStatus  *string
}

const articleSelect = `submission_models.*,
	u.first_name, u.last_name, u.affiliation,
	sec.title AS section_title,
	i.volume AS issue_volume, i.number AS issue_number, i.year AS issue_year,
	i.current AS issue_current, i.status AS issue_status`

func (s *GormStore) articleQuery() *gorm.DB {
	return s.db.Table("submission_models").
		Select(articleSelect).
		Joins("JOIN user_models u ON u.id = submission_models.author_id").
		Joins("LEFT JOIN section_models sec ON sec.id = submission_models.section_id").
		Joins("LEFT JOIN issue_models i ON i.id = submission_models.issue_id").
		Where("submission_models.status = ?", string(domain.StatusPublished))
}

// GetPublishedArticle returns the article view of one published submission.
// Unpublished submissions are not found.
func (s *GormStore) GetPublishedArticle(id string) (domain.Article, bool, error) {
	var rows []articleRow
	if err := s.articleQuery().
		Where("submission_models.id = ?", id).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return domain.Article{}, false, err
	}
	if len(rows) == 0 {
		return domain.Article{}, false, nil
	}
	article, err := articleFromRow(rows[0])
	if err != nil {
		return domain.Article{}, false, err
	}
	return article, true, nil
}

// ListPublishedArticles returns published articles, newest publication first.
func (s *GormStore) ListPublishedArticles(limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return []domain.Article{}, nil
	}
	var rows []articleRow
	if err := s.articleQuery().
		Order("submission_models.published_date DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	articles := make([]domain.Article, 0, len(rows))
	for _, row := range rows {
		article, err := articleFromRow(row)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:            u.ID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          string(u.Role),
		Status:        string(u.Status),
		Affiliation:   u.Affiliation,
		Country:       u.Country,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	status := domain.UserStatus(m.Status)
	if status == "" {
		status = domain.StatusActive
	}
	return domain.User{
		ID:            m.ID,
		Email:         m.Email,
		PasswordHash:  m.PasswordHash,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		Role:          domain.UserRole(m.Role),
		Status:        status,
		Affiliation:   m.Affiliation,
		Country:       m.Country,
		EmailVerified: m.EmailVerified,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func keywordsToJSON(keywords []string) (datatypes.JSON, error) {
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func keywordsFromJSON(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var keywords []string
	if err := json.Unmarshal(raw, &keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	return keywords, nil
}

func submissionToModel(sub domain.Submission) (SubmissionModel, error) {
	keywords, err := keywordsToJSON(sub.Keywords)
	if err != nil {
		return SubmissionModel{}, err
	}
	return SubmissionModel{
		ID:             sub.ID,
		Title:          sub.Title,
		Abstract:       sub.Abstract,
		Keywords:       keywords,
		Language:       sub.Language,
		SectionID:      sub.SectionID,
		AuthorID:       sub.AuthorID,
		Status:         string(sub.Status),
		Stage:          string(sub.Stage),
		FileID:         sub.FileID,
		IssueID:        sub.IssueID,
		SubmissionDate: sub.SubmissionDate,
		PublishedDate:  sub.PublishedDate,
		UpdatedAt:      sub.UpdatedAt,
	}, nil
}

func submissionFromModel(m SubmissionModel) (domain.Submission, error) {
	keywords, err := keywordsFromJSON(m.Keywords)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{
		ID:             m.ID,
		Title:          m.Title,
		Abstract:       m.Abstract,
		Keywords:       keywords,
		Language:       m.Language,
		SectionID:      m.SectionID,
		AuthorID:       m.AuthorID,
		Status:         domain.SubmissionStatus(m.Status),
		Stage:          domain.SubmissionStage(m.Stage),
		FileID:         m.FileID,
		IssueID:        m.IssueID,
		SubmissionDate: m.SubmissionDate,
		PublishedDate:  m.PublishedDate,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func submissionsFromModels(models []SubmissionModel) ([]domain.Submission, error) {
	res := make([]domain.Submission, 0, len(models))
	for _, m := range models {
		sub, err := submissionFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, sub)
	}
	return res, nil
}

func fileToModel(f domain.FileAsset) FileModel {
	return FileModel{
		ID:         f.ID,
		Filename:   f.Filename,
		StorageKey: f.StorageKey,
		MimeType:   f.MimeType,
		UploaderID: f.UploaderID,
		CreatedAt:  f.CreatedAt,
	}
}

func fileFromModel(m FileModel) domain.FileAsset {
	return domain.FileAsset{
		ID:         m.ID,
		Filename:   m.Filename,
		StorageKey: m.StorageKey,
		MimeType:   m.MimeType,
		UploaderID: m.UploaderID,
		CreatedAt:  m.CreatedAt,
	}
}

func issueFromModel(m IssueModel) domain.Issue {
	return domain.Issue{
		ID:      m.ID,
		Volume:  m.Volume,
		Number:  m.Number,
		Year:    m.Year,
		Current: m.Current,
		Status:  domain.IssueStatus(m.Status),
	}
}

func articleFromRow(row articleRow) (domain.Article, error) {
	sub, err := submissionFromModel(row.SubmissionModel)
	if err != nil {
		return domain.Article{}, err
	}
	article := domain.Article{
		Submission:        sub,
		AuthorFirstName:   row.FirstName,
		AuthorLastName:    row.LastName,
		AuthorAffiliation: row.Affiliation,
	}
	if row.SectionTitle != nil {
		article.SectionTitle = *row.SectionTitle
	}
	if sub.IssueID != nil && row.IssueVolume != nil {
		issue := domain.Issue{ID: *sub.IssueID, Volume: *row.IssueVolume}
		if row.IssueNumber != nil {
			issue.Number = *row.IssueNumber
		}
		if row.IssueYear != nil {
			issue.Year = *row.IssueYear
		}
		if row.IssueCurrent != nil {
			issue.Current = *row.IssueCurrent
		}
		if row.IssueStatus != nil {
			issue.Status = domain.IssueStatus(*row.IssueStatus)
		}
		article.Issue = &issue
	}
	return article, nil
}
