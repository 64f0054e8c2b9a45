package media

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// MediaDTO is the public view of a stored file.
type MediaDTO struct {
	ID        uuid.UUID       `json:"_id"`
	FileName  string          `json:"fileName"`
	URL       string          `json:"url"`
	MimeType  string          `json:"mimeType"`
	Kind      enums.MediaKind `json:"kind"`
	SizeBytes int64           `json:"sizeBytes"`
	CreatedAt time.Time       `json:"createdAt"`
}

// UploadFile is one part of a multipart upload. Size is the declared length
// of Content.
type UploadFile struct {
	FileName string
	Size     int64
	Content  io.Reader
}

type ListMediaInput struct {
	Search     string
	Pagination pagination.Params
}

type MediaListResult = pagination.Page[MediaDTO]

type BulkDeleteInput struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
}

// BulkDeleteResult reports which ids were removed and which did not exist.
type BulkDeleteResult struct {
	Deleted  []uuid.UUID `json:"deleted"`
	NotFound []uuid.UUID `json:"notFound"`
}

func NewMediaDTO(m models.Media) MediaDTO {
	return MediaDTO{
		ID:        m.ID,
		FileName:  m.FileName,
		URL:       m.URL,
		MimeType:  m.MimeType,
		Kind:      m.Kind,
		SizeBytes: m.SizeBytes,
		CreatedAt: m.CreatedAt,
	}
}
