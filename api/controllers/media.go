package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dcastano/framevault-backend/api/responses"
	"github.com/dcastano/framevault-backend/api/validators"
	"github.com/dcastano/framevault-backend/internal/library"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/logger"
)

type mediaMoveRequest struct {
	SourceAlbumID *uuid.UUID            `json:"source_album_id,omitempty"`
	MediaIDs      []uuid.UUID           `json:"media_ids" validate:"required,min=1"`
	Targets       []library.AlbumTarget `json:"targets" validate:"required,min=1,dive"`
}

type mediaDeleteRequest struct {
	AlbumID   *uuid.UUID  `json:"album_id,omitempty"`
	MediaIDs  []uuid.UUID `json:"media_ids" validate:"required,min=1"`
	Permanent bool        `json:"permanent"`
}

type downloadURLsRequest struct {
	MediaIDs []uuid.UUID `json:"media_ids" validate:"required,min=1"`
}

// MediaMove relocates or copies media into the requested album rows.
func MediaMove(svc *library.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body mediaMoveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := library.MoveInput{
			ActorID:  actorID,
			MediaIDs: body.MediaIDs,
			Targets:  body.Targets,
		}
		if body.SourceAlbumID != nil {
			input.SourceAlbumID = *body.SourceAlbumID
		}

		if err := svc.MoveMedia(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "moved"})
	}
}

// MediaDelete removes media from one album, or everywhere when permanent.
func MediaDelete(svc *library.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body mediaDeleteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !body.Permanent && body.AlbumID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "album_id is required unless permanent"))
			return
		}

		input := library.DeleteInput{
			ActorID:   actorID,
			MediaIDs:  body.MediaIDs,
			Permanent: body.Permanent,
		}
		if body.AlbumID != nil {
			input.AlbumID = *body.AlbumID
		}

		result, err := svc.DeleteMedia(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// MediaDownloadURLs issues short-lived download links for owned media.
func MediaDownloadURLs(svc *library.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body downloadURLsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		links, err := svc.DownloadURLs(r.Context(), actorID, body.MediaIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"links": links})
	}
}
