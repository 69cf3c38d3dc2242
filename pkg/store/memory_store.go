package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"openjournal/pkg/domain"
)

// ErrDuplicateKey is returned by the memory store when a primary key or
// unique email is reused.
var ErrDuplicateKey = errors.New("duplicate key")

// MemoryStore keeps all entities in memory. It backs tests; semantics mirror
// GormStore, including all-or-nothing create/update.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	submissions map[string]domain.Submission
	coauthors   map[string][]domain.CoAuthor
	files       map[string]domain.FileAsset
	sections    map[string]domain.Section
	issues      map[string]domain.Issue
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		submissions: make(map[string]domain.Submission),
		coauthors:   make(map[string][]domain.CoAuthor),
		files:       make(map[string]domain.FileAsset),
		sections:    make(map[string]domain.Section),
		issues:      make(map[string]domain.Issue),
	}
}

func (s *MemoryStore) CreateUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicateKey
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicateKey
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok, nil
}

// SetUserStatus flips an account's status. Test helper for the inactive
// account path; not part of the Store interface.
func (s *MemoryStore) SetUserStatus(id string, status domain.UserStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Status = status
		s.users[id] = u
	}
}

func (s *MemoryStore) CreateSubmission(sub domain.Submission, file *domain.FileAsset, coauthors []domain.CoAuthor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; ok {
		return ErrDuplicateKey
	}
	if file != nil {
		s.files[file.ID] = *file
	}
	s.submissions[sub.ID] = sub
	s.coauthors[sub.ID] = append([]domain.CoAuthor(nil), coauthors...)
	return nil
}

func (s *MemoryStore) UpdateSubmission(sub domain.Submission, file *domain.FileAsset, coauthors []domain.CoAuthor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.submissions[sub.ID]
	if !ok {
		return errors.New("submission not found")
	}
	if file != nil {
		s.files[file.ID] = *file
	}
	current.Title = sub.Title
	current.Abstract = sub.Abstract
	current.Keywords = sub.Keywords
	current.Language = sub.Language
	current.SectionID = sub.SectionID
	current.FileID = sub.FileID
	current.UpdatedAt = sub.UpdatedAt
	s.submissions[sub.ID] = current
	s.coauthors[sub.ID] = append([]domain.CoAuthor(nil), coauthors...)
	return nil
}

func (s *MemoryStore) GetSubmission(id string) (domain.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	return sub, ok, nil
}

func (s *MemoryStore) ListSubmissionsByAuthor(authorID string) ([]domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Submission
	for _, sub := range s.submissions {
		if sub.AuthorID == authorID {
			res = append(res, sub)
		}
	}
	sortNewestFirst(res)
	return res, nil
}

func (s *MemoryStore) ListRecentSubmissions(limit int) ([]domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return []domain.Submission{}, nil
	}
	res := make([]domain.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		res = append(res, sub)
	}
	sortNewestFirst(res)
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemoryStore) SetSubmissionState(id string, status domain.SubmissionStatus, stage domain.SubmissionStage, issueID *string, publishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return errors.New("submission not found")
	}
	sub.Status = status
	sub.Stage = stage
	sub.IssueID = issueID
	sub.PublishedDate = publishedAt
	sub.UpdatedAt = time.Now().UTC()
	s.submissions[id] = sub
	return nil
}

func (s *MemoryStore) ListCoauthors(submissionID string) ([]domain.CoAuthor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CoAuthor(nil), s.coauthors[submissionID]...), nil
}

func (s *MemoryStore) GetFile(id string) (domain.FileAsset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	return f, ok, nil
}

func (s *MemoryStore) SaveSection(sec domain.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[sec.ID] = sec
	return nil
}

func (s *MemoryStore) ListActiveSections() ([]domain.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Section
	for _, sec := range s.sections {
		if sec.Active {
			res = append(res, sec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SortOrder < res[j].SortOrder })
	return res, nil
}

func (s *MemoryStore) SaveIssue(issue domain.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issue.ID] = issue
	return nil
}

func (s *MemoryStore) GetIssue(id string) (domain.Issue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	return issue, ok, nil
}

func (s *MemoryStore) CurrentIssue() (domain.Issue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range s.issues {
		if issue.Current && issue.Status == domain.IssuePublished {
			return issue, true, nil
		}
	}
	return domain.Issue{}, false, nil
}

func (s *MemoryStore) GetPublishedArticle(id string) (domain.Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok || sub.Status != domain.StatusPublished {
		return domain.Article{}, false, nil
	}
	return s.articleLocked(sub), true, nil
}

func (s *MemoryStore) ListPublishedArticles(limit int) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return []domain.Article{}, nil
	}
	var published []domain.Submission
	for _, sub := range s.submissions {
		if sub.Status == domain.StatusPublished {
			published = append(published, sub)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if published[i].PublishedDate != nil {
			ti = *published[i].PublishedDate
		}
		if published[j].PublishedDate != nil {
			tj = *published[j].PublishedDate
		}
		return ti.After(tj)
	})
	if len(published) > limit {
		published = published[:limit]
	}
	articles := make([]domain.Article, 0, len(published))
	for _, sub := range published {
		articles = append(articles, s.articleLocked(sub))
	}
	return articles, nil
}

func (s *MemoryStore) articleLocked(sub domain.Submission) domain.Article {
	article := domain.Article{Submission: sub}
	if author, ok := s.users[sub.AuthorID]; ok {
		article.AuthorFirstName = author.FirstName
		article.AuthorLastName = author.LastName
		article.AuthorAffiliation = author.Affiliation
	}
	if sub.SectionID != nil {
		if sec, ok := s.sections[*sub.SectionID]; ok {
			article.SectionTitle = sec.Title
		}
	}
	if sub.IssueID != nil {
		if issue, ok := s.issues[*sub.IssueID]; ok {
			article.Issue = &issue
		}
	}
	return article
}

func sortNewestFirst(subs []domain.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].SubmissionDate.After(subs[j].SubmissionDate)
	})
}
