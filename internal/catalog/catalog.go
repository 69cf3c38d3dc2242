// Package catalog serves the public, reader-facing view of the journal:
// published articles, the current issue and the active sections. It never
// exposes submissions that have not reached publication.
package catalog

import (
	"errors"
	"fmt"

	"openjournal/pkg/domain"
	"openjournal/pkg/store"
)

var ErrNotFound = errors.New("not found")

const defaultArticleLimit = 20

type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// CurrentIssue returns the issue currently flagged as current, if any.
func (s *Service) CurrentIssue() (domain.Issue, error) {
	issue, ok, err := s.store.CurrentIssue()
	if err != nil {
		return domain.Issue{}, fmt.Errorf("fetch current issue: %w", err)
	}
	if !ok {
		return domain.Issue{}, ErrNotFound
	}
	return issue, nil
}

// RecentArticles lists published articles newest first. A non-positive
// limit falls back to the default page size.
func (s *Service) RecentArticles(limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = defaultArticleLimit
	}
	articles, err := s.store.ListPublishedArticles(limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// ArticleByID returns a published article. Submissions in any other
// status are indistinguishable from missing ones.
func (s *Service) ArticleByID(id string) (domain.Article, error) {
	article, ok, err := s.store.GetPublishedArticle(id)
	if err != nil {
		return domain.Article{}, fmt.Errorf("fetch article: %w", err)
	}
	if !ok {
		return domain.Article{}, ErrNotFound
	}
	return article, nil
}

// ActiveSections lists the sections open for browsing and submission.
func (s *Service) ActiveSections() ([]domain.Section, error) {
	sections, err := s.store.ListActiveSections()
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}
