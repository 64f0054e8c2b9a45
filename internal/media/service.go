package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/pagination"
	"github.com/gulautos/storefront-backend/pkg/types"
)

const maxBulkDelete = 100

type mediaRepository interface {
	CreateBatch(ctx context.Context, rows []models.Media) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Media, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, search string, params pagination.Params) ([]models.Media, int64, error)
}

type objectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Service manages the admin media library.
type Service interface {
	List(ctx context.Context, input ListMediaInput) (*MediaListResult, error)
	Upload(ctx context.Context, userID uuid.UUID, files []UploadFile) ([]MediaDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID) (*BulkDeleteResult, error)
}

type ServiceParams struct {
	Repo           mediaRepository
	Objects        objectStore
	Deletions      DeletionQueue
	MaxUploadBytes int64
	MaxFiles       int
	Logger         *logger.Logger
}

type service struct {
	repo      mediaRepository
	objects   objectStore
	deletions DeletionQueue
	maxBytes  int64
	maxFiles  int
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("media repository required")
	}
	if params.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	if params.MaxFiles <= 0 {
		return nil, fmt.Errorf("max files must be positive")
	}
	deletions := params.Deletions
	if deletions == nil {
		deletions = NewSyncDeletionQueue(params.Objects)
	}
	return &service{
		repo:      params.Repo,
		objects:   params.Objects,
		deletions: deletions,
		maxBytes:  params.MaxUploadBytes,
		maxFiles:  params.MaxFiles,
		logg:      params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, input ListMediaInput) (*MediaListResult, error) {
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, pagination.NormalizeSearch(input.Search), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list media")
	}
	items := make([]MediaDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, NewMediaDTO(row))
	}
	page := pagination.NewPage(items, params, total)
	return &page, nil
}

type preparedUpload struct {
	row  models.Media
	body io.Reader
}

// Upload validates every file before writing any of them. Objects already
// written are removed again when a later step fails.
func (s *service) Upload(ctx context.Context, userID uuid.UUID, files []UploadFile) ([]MediaDTO, error) {
	if len(files) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	if len(files) > s.maxFiles {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d files per upload", s.maxFiles)
	}

	var owner *uuid.UUID
	if userID != uuid.Nil {
		owner = &userID
	}

	prepared := make([]preparedUpload, 0, len(files))
	var problems []types.FieldError
	for i, file := range files {
		field := fmt.Sprintf("files[%d]", i)
		name := strings.TrimSpace(file.FileName)
		switch {
		case file.Content == nil || file.Size <= 0:
			problems = append(problems, types.FieldError{Field: field, Message: "file is empty", Value: name})
			continue
		case file.Size > s.maxBytes:
			problems = append(problems, types.FieldError{
				Field:   field,
				Message: fmt.Sprintf("file exceeds %d bytes", s.maxBytes),
				Value:   name,
			})
			continue
		}

		mime, kind, body, err := sniff(file.Content)
		if err != nil {
			msg := "only images and PDF files are allowed"
			if !errors.Is(err, errUnsupportedType) {
				msg = "file could not be read"
			}
			problems = append(problems, types.FieldError{Field: field, Message: msg, Value: name})
			continue
		}

		id := uuid.New()
		key := buildObjectKey(kind, id, name)
		prepared = append(prepared, preparedUpload{
			row: models.Media{
				ID:        id,
				UserID:    owner,
				Kind:      kind,
				FileName:  displayName(name, id),
				ObjectKey: key,
				MimeType:  mime,
				SizeBytes: file.Size,
				URL:       s.objects.PublicURL(key),
			},
			body: body,
		})
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid upload").WithDetails(problems)
	}

	written := make([]string, 0, len(prepared))
	for _, p := range prepared {
		if err := s.objects.Upload(ctx, p.row.ObjectKey, p.row.MimeType, p.body, p.row.SizeBytes); err != nil {
			s.rollback(ctx, written)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store file")
		}
		written = append(written, p.row.ObjectKey)
	}

	rows := make([]models.Media, 0, len(prepared))
	for _, p := range prepared {
		rows = append(rows, p.row)
	}
	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		s.rollback(ctx, written)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist media rows")
	}

	out := make([]MediaDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewMediaDTO(row))
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"files": len(out)})
	s.logg.Info(logCtx, "media uploaded")
	return out, nil
}

func (s *service) rollback(ctx context.Context, keys []string) {
	var errs error
	for _, key := range keys {
		if err := IgnoreMissing(s.objects.Delete(ctx, key)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete object %s: %w", key, err))
		}
	}
	if errs != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"objects": len(keys)})
		s.logg.Error(logCtx, "upload rollback left orphaned objects", errs)
	}
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.NotFound("media")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
	}
	deleted, err := s.repo.DeleteByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete media")
	}
	if deleted == 0 {
		return pkgerrors.NotFound("media")
	}
	s.removeObjects(ctx, []models.Media{*row})
	return nil
}

func (s *service) BulkDelete(ctx context.Context, ids []uuid.UUID) (*BulkDeleteResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ids must not be empty")
	}
	if len(ids) > maxBulkDelete {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d ids per request", maxBulkDelete)
	}

	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
	}
	found := make(map[uuid.UUID]struct{}, len(rows))
	existing := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		found[row.ID] = struct{}{}
		existing = append(existing, row.ID)
	}
	if _, err := s.repo.DeleteByIDs(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete media")
	}

	result := &BulkDeleteResult{Deleted: []uuid.UUID{}, NotFound: []uuid.UUID{}}
	for _, id := range ids {
		if _, ok := found[id]; ok {
			result.Deleted = append(result.Deleted, id)
		} else {
			result.NotFound = append(result.NotFound, id)
		}
	}
	s.removeObjects(ctx, rows)
	return result, nil
}

// removeObjects hands the objects to the deletion queue. The rows are already
// gone, so failures are logged rather than returned.
func (s *service) removeObjects(ctx context.Context, rows []models.Media) {
	if len(rows) == 0 {
		return
	}
	events := make([]DeletionEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, DeletionEvent{MediaID: row.ID, ObjectKey: row.ObjectKey})
	}
	if err := s.deletions.Enqueue(ctx, events); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"objects":  len(events),
			"failures": len(multierr.Errors(err)),
		})
		s.logg.Error(logCtx, "media object deletion failed", err)
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func displayName(name string, id uuid.UUID) string {
	if clean := sanitizeFileName(name); clean != "" {
		return name
	}
	return id.String()
}
