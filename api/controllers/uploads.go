package controllers

import (
	"net/http"

	"github.com/dcastano/framevault-backend/api/responses"
	"github.com/dcastano/framevault-backend/api/validators"
	"github.com/dcastano/framevault-backend/internal/library"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/logger"
)

type uploadInitRequest struct {
	Files []library.UploadFileInput `json:"files" validate:"required,min=1,dive"`
}

type uploadCompleteRequest struct {
	Target     library.AlbumTarget     `json:"target" validate:"required"`
	Files      []library.CompletedFile `json:"files" validate:"required,min=1,dive"`
	Recipients []string                `json:"recipients,omitempty"`
}

// UploadInit hands out presigned PUT targets for a pending batch.
func UploadInit(svc *library.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "library service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body uploadInitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tickets, err := svc.UploadInit(r.Context(), actorID, body.Files)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"tickets": tickets})
	}
}

// UploadComplete verifies the uploaded blobs and commits the batch.
func UploadComplete(svc *library.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "library service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body uploadCompleteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		media, err := svc.UploadComplete(r.Context(), library.UploadCompleteInput{
			UploaderID: actorID,
			Target:     body.Target,
			Files:      body.Files,
			Recipients: body.Recipients,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"media": media})
	}
}
