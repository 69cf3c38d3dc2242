package submission

import (
	"fmt"
	"strings"

	"openjournal/pkg/domain"
)

// ResolveCoauthors maps the comma-separated co-author field to entries with
// an optional user reference. Unknown emails are kept with a nil user id:
// they are invited, unregistered co-authors, not an error. Input order and
// duplicates are preserved.
func (s *Service) ResolveCoauthors(raw string) ([]domain.CoAuthor, error) {
	emails := splitEmails(raw)
	coauthors := make([]domain.CoAuthor, 0, len(emails))
	for _, email := range emails {
		ca := domain.CoAuthor{Email: email}
		user, ok, err := s.store.GetUserByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("resolve coauthor %q: %w", email, err)
		}
		if ok {
			id := user.ID
			ca.UserID = &id
		}
		coauthors = append(coauthors, ca)
	}
	return coauthors, nil
}

// splitEmails trims each comma-separated segment and drops empty ones.
func splitEmails(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		email := strings.TrimSpace(part)
		if email == "" {
			continue
		}
		out = append(out, email)
	}
	return out
}
