// Package submission owns manuscript records: creation, author edits,
// listings and the attached manuscript file.
package submission

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"openjournal/internal/util"
	"openjournal/pkg/domain"
	"openjournal/pkg/storage"
	"openjournal/pkg/store"
)

// staffListLimit caps the unfiltered listing shown to editorial staff.
const staffListLimit = 50

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// Service wires submission persistence and manuscript blob storage.
type Service struct {
	store         store.Store
	objects       storage.ObjectStore
	presignExpiry time.Duration
}

// New constructs the submission service.
func New(st store.Store, objects storage.ObjectStore) *Service {
	return &Service{
		store:         st,
		objects:       objects,
		presignExpiry: 15 * time.Minute,
	}
}

// Draft carries the author-editable fields of a submission.
type Draft struct {
	Title        string
	Abstract     string
	Keywords     []string
	Language     string
	SectionID    *string
	CoauthorText string
}

// Upload is a manuscript file attached to a create or update.
type Upload struct {
	Filename string
	MimeType string
	Reader   io.Reader
	Size     int64
}

// Create stores a new submission owned by the author. The file (when
// present) is written durably before the submission row is committed; a
// failed commit removes the freshly written object again.
func (s *Service) Create(author domain.User, draft Draft, up *Upload) (domain.Submission, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return domain.Submission{}, ErrTitleRequired
	}
	coauthors, err := s.ResolveCoauthors(draft.CoauthorText)
	if err != nil {
		return domain.Submission{}, err
	}

	now := time.Now().UTC()
	sub := domain.Submission{
		ID:             util.NewID(),
		Title:          strings.TrimSpace(draft.Title),
		Abstract:       draft.Abstract,
		Keywords:       draft.Keywords,
		Language:       draft.Language,
		SectionID:      draft.SectionID,
		AuthorID:       author.ID,
		Status:         domain.StatusSubmitted,
		Stage:          domain.StageSubmission,
		SubmissionDate: now,
		UpdatedAt:      now,
	}
	for i := range coauthors {
		coauthors[i].SubmissionID = sub.ID
	}

	file, err := s.storeUpload(author, up)
	if err != nil {
		return domain.Submission{}, err
	}
	if file != nil {
		sub.FileID = &file.ID
	}

	if err := s.store.CreateSubmission(sub, file, coauthors); err != nil {
		if file != nil {
			_ = s.objects.Delete(context.Background(), file.StorageKey)
		}
		return domain.Submission{}, fmt.Errorf("save submission: %w", err)
	}
	return sub, nil
}

// Update rewrites the mutable fields and fully replaces the co-author set.
// Ownership is absolute: only the submission's author may edit it,
// regardless of the caller's role.
func (s *Service) Update(caller domain.User, id string, draft Draft, up *Upload) (domain.Submission, error) {
	sub, ok, err := s.store.GetSubmission(id)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("fetch submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrNotFound
	}
	if sub.AuthorID != caller.ID {
		return domain.Submission{}, ErrForbidden
	}
	if strings.TrimSpace(draft.Title) == "" {
		return domain.Submission{}, ErrTitleRequired
	}
	coauthors, err := s.ResolveCoauthors(draft.CoauthorText)
	if err != nil {
		return domain.Submission{}, err
	}
	for i := range coauthors {
		coauthors[i].SubmissionID = sub.ID
	}

	sub.Title = strings.TrimSpace(draft.Title)
	sub.Abstract = draft.Abstract
	sub.Keywords = draft.Keywords
	sub.Language = draft.Language
	sub.SectionID = draft.SectionID
	sub.UpdatedAt = time.Now().UTC()

	// A new upload replaces the file reference; the previous asset row is
	// kept untouched for audit.
	file, err := s.storeUpload(caller, up)
	if err != nil {
		return domain.Submission{}, err
	}
	if file != nil {
		sub.FileID = &file.ID
	}

	if err := s.store.UpdateSubmission(sub, file, coauthors); err != nil {
		if file != nil {
			_ = s.objects.Delete(context.Background(), file.StorageKey)
		}
		return domain.Submission{}, fmt.Errorf("update submission: %w", err)
	}
	return sub, nil
}

// List returns the caller's scope: authors see their own submissions,
// staff see the most recent across all authors. Newest first either way.
func (s *Service) List(caller domain.User) ([]domain.Submission, error) {
	if caller.IsStaff() {
		return s.store.ListRecentSubmissions(staffListLimit)
	}
	return s.store.ListSubmissionsByAuthor(caller.ID)
}

// GetForEdit returns a submission for its author, with the co-author list
// joined back into the raw comma-separated text for the edit form.
func (s *Service) GetForEdit(caller domain.User, id string) (domain.Submission, string, error) {
	sub, ok, err := s.store.GetSubmission(id)
	if err != nil {
		return domain.Submission{}, "", fmt.Errorf("fetch submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, "", ErrNotFound
	}
	if sub.AuthorID != caller.ID {
		return domain.Submission{}, "", ErrForbidden
	}
	coauthors, err := s.store.ListCoauthors(id)
	if err != nil {
		return domain.Submission{}, "", fmt.Errorf("fetch coauthors: %w", err)
	}
	emails := make([]string, 0, len(coauthors))
	for _, ca := range coauthors {
		emails = append(emails, ca.Email)
	}
	return sub, strings.Join(emails, ", "), nil
}

// FileDownloadURL returns a pre-signed URL and the original filename.
// The owner and staff may download.
func (s *Service) FileDownloadURL(caller domain.User, id string) (string, string, error) {
	sub, ok, err := s.store.GetSubmission(id)
	if err != nil {
		return "", "", fmt.Errorf("fetch submission: %w", err)
	}
	if !ok {
		return "", "", ErrNotFound
	}
	if sub.AuthorID != caller.ID && !caller.IsStaff() {
		return "", "", ErrForbidden
	}
	if sub.FileID == nil {
		return "", "", ErrNoFile
	}
	file, ok, err := s.store.GetFile(*sub.FileID)
	if err != nil {
		return "", "", fmt.Errorf("fetch file: %w", err)
	}
	if !ok {
		return "", "", ErrNoFile
	}
	url, err := s.objects.PresignGet(context.Background(), file.StorageKey, s.presignExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign file: %w", err)
	}
	return url, file.Filename, nil
}

// storeUpload validates the extension, writes the blob, and returns the
// file asset row to commit alongside the submission. Nil upload is fine.
func (s *Service) storeUpload(uploader domain.User, up *Upload) (*domain.FileAsset, error) {
	if up == nil {
		return nil, nil
	}
	filename := filepath.Base(strings.TrimSpace(up.Filename))
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, ErrUnsupportedFileType
	}
	contentType := up.MimeType
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	file := domain.FileAsset{
		ID:         util.NewID(),
		Filename:   filename,
		StorageKey: buildStorageKey(filename),
		MimeType:   contentType,
		UploaderID: uploader.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.objects.Put(context.Background(), file.StorageKey, up.Reader, up.Size, contentType); err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}
	return &file, nil
}

func buildStorageKey(filename string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "manuscript"
	}
	return "submissions/" + uuid.NewString() + "_" + name
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
