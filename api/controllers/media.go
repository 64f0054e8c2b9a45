package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gulautos/storefront-backend/api/responses"
	"github.com/gulautos/storefront-backend/api/validators"
	"github.com/gulautos/storefront-backend/internal/media"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

const (
	uploadFormField      = "files"
	multipartMemoryBytes = 8 << 20
	multipartOverhead    = 1 << 20
)

// UploadLimits bounds a single multipart request.
type UploadLimits struct {
	MaxFileBytes int64
	MaxFiles     int
}

func (l UploadLimits) requestBytes() int64 {
	return l.MaxFileBytes*int64(l.MaxFiles) + multipartOverhead
}

func MediaList(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.List(r.Context(), media.ListMediaInput{
			Search:     validators.SearchQuery(r),
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// MediaUpload stores every file of the "files" multipart field.
func MediaUpload(svc media.Service, limits UploadLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, limits.requestBytes())
		if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "upload too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		headers := r.MultipartForm.File[uploadFormField]
		files := make([]media.UploadFile, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				_ = f.Close()
			}
		}()
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload"))
				return
			}
			opened = append(opened, f)
			files = append(files, media.UploadFile{
				FileName: header.Filename,
				Size:     header.Size,
				Content:  f,
			})
		}

		items, err := svc.Upload(r.Context(), userID, files)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, items)
	}
}

func MediaDelete(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "mediaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func MediaBulkDelete(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input media.BulkDeleteInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BulkDelete(r.Context(), input.IDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
