package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/internal/quota"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/outbox/payloads"
	"github.com/dcastano/framevault-backend/pkg/storage/s3"
)

// UploadInit validates the batch and hands out presigned PUT URLs. Nothing is
// persisted yet; the catalog row appears only at UploadComplete, after the
// blobs are verified.
func (s *Service) UploadInit(ctx context.Context, uploaderID uuid.UUID, files []UploadFileInput) ([]UploadTicket, error) {
	if len(files) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file required")
	}
	if len(files) > s.media.MaxBatchFiles {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("batch exceeds %d files", s.media.MaxBatchFiles))
	}
	maxBytes := int64(s.media.MaxUploadMB) * 1024 * 1024

	now := time.Now().UTC()
	tickets := make([]UploadTicket, 0, len(files))
	for _, file := range files {
		kind, err := enums.MediaKindForMime(file.MimeType)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		if file.SizeBytes <= 0 || file.SizeBytes > maxBytes {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("file %s exceeds the %dMB limit", file.FileName, s.media.MaxUploadMB))
		}

		key := newStorageKey(uploaderID, file.FileName, now)
		uploadURL, err := s.blobs.PresignMediaUpload(ctx, key, file.MimeType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign upload url")
		}
		ticket := UploadTicket{
			FileName:   file.FileName,
			StorageKey: key,
			UploadURL:  uploadURL,
		}
		if kind == enums.MediaKindVideo {
			thumbKey := thumbnailKeyFor(key)
			thumbURL, err := s.blobs.PresignThumbnailUpload(ctx, thumbKey, "image/jpeg")
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign thumbnail url")
			}
			ticket.ThumbnailKey = &thumbKey
			ticket.ThumbnailUploadURL = &thumbURL
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

// UploadComplete verifies every blob in the batch, then commits catalog rows,
// album attachment, quota, and any simultaneous shares in one transaction.
// If anything fails after verification the uploaded blobs are deleted so the
// batch leaves no trace.
func (s *Service) UploadComplete(ctx context.Context, input UploadCompleteInput) ([]MediaDTO, error) {
	if len(input.Files) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file required")
	}
	if len(input.Files) > s.media.MaxBatchFiles {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("batch exceeds %d files", s.media.MaxBatchFiles))
	}
	if input.Target.AlbumID == uuid.Nil || input.Target.Event == "" || input.Target.EventDate == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target album, event, and event date required")
	}

	recipients, err := s.resolveRecipients(ctx, input.Recipients)
	if err != nil {
		return nil, err
	}

	// Verify every blob before touching the database. One missing object
	// fails the whole batch.
	sizes := make([]int64, len(input.Files))
	var totalBytes int64
	for i, file := range input.Files {
		if _, err := enums.MediaKindForMime(file.MimeType); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		size, err := s.blobs.Head(ctx, file.StorageKey)
		if err != nil {
			s.cleanupBlobs(ctx, input.Files)
			if errors.Is(err, s3.ErrObjectMissing) {
				return nil, pkgerrors.New(pkgerrors.CodeBlobVerify,
					fmt.Sprintf("object %s was not uploaded", file.StorageKey))
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify uploaded object")
		}
		sizes[i] = size
		totalBytes += size
	}

	items := make([]models.MediaItem, len(input.Files))
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.ownedAlbumTx(tx, input.Target.AlbumID, input.UploaderID); err != nil {
			return err
		}

		// Quota is charged once for the full batch before any attachment.
		if err := s.quota.ChargeTx(tx, input.UploaderID, totalBytes); err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				return pkgerrors.New(pkgerrors.CodeQuota, "storage quota exceeded")
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge quota")
		}

		row, err := s.albums.FindOrCreateRowTx(tx, input.Target.AlbumID, input.Target.Event, input.Target.EventDate)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve album row")
		}

		mediaIDs := make([]uuid.UUID, len(input.Files))
		for i, file := range input.Files {
			items[i] = models.MediaItem{
				ID:           uuid.New(),
				UploaderID:   input.UploaderID,
				StorageKey:   file.StorageKey,
				ThumbnailKey: file.ThumbnailKey,
				FileName:     file.FileName,
				MimeType:     file.MimeType,
				SizeBytes:    sizes[i],
			}
			if err := s.catalog.CreateTx(tx, &items[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create catalog row")
			}
			mediaIDs[i] = items[i].ID
		}

		entered, err := s.albums.AttachTx(tx, input.Target.AlbumID, row.ID, input.UploaderID, mediaIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach media")
		}
		for _, id := range entered {
			if err := s.catalog.AddRefsTx(tx, id, 1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment ref count")
			}
		}

		// Simultaneous share: each recipient's pending request is its own
		// counted reference per item.
		for _, recipient := range recipients {
			if err := s.createTagRequestTx(ctx, tx, input.UploaderID, recipient, mediaIDs); err != nil {
				return err
			}
		}

		for i, item := range items {
			event := outbox.DomainEvent{
				EventType:     enums.EventMediaUploaded,
				AggregateType: enums.AggregateMedia,
				AggregateID:   item.ID,
				Actor:         &outbox.ActorRef{UserID: input.UploaderID},
				Data: payloads.MediaUploadedEvent{
					MediaID:    item.ID,
					UploaderID: input.UploaderID,
					AlbumID:    input.Target.AlbumID,
					SizeBytes:  sizes[i],
					MimeType:   item.MimeType,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue upload event")
			}
		}
		return nil
	})
	if err != nil {
		// Roll the blobs back too. The transaction already discarded every
		// row, so deleting the objects leaves no trace of the batch.
		s.cleanupBlobs(ctx, input.Files)
		return nil, err
	}

	out := make([]MediaDTO, 0, len(items))
	for _, item := range items {
		out = append(out, mediaDTO(item))
	}
	if s.logg != nil {
		logCtx := s.logg.WithAlbumID(ctx, input.Target.AlbumID.String())
		s.logg.Info(logCtx, fmt.Sprintf("upload batch committed (%d files)", len(items)))
	}
	return out, nil
}

// cleanupBlobs best-effort deletes the batch's uploaded objects.
func (s *Service) cleanupBlobs(ctx context.Context, files []CompletedFile) {
	mediaKeys := make([]string, 0, len(files))
	thumbKeys := make([]string, 0, len(files))
	for _, file := range files {
		mediaKeys = append(mediaKeys, file.StorageKey)
		if file.ThumbnailKey != nil {
			thumbKeys = append(thumbKeys, *file.ThumbnailKey)
		}
	}
	if err := s.blobs.DeleteMediaObjects(ctx, mediaKeys); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to clean up media objects after aborted upload")
	}
	if err := s.blobs.DeleteThumbnailObjects(ctx, thumbKeys); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to clean up thumbnail objects after aborted upload")
	}
}
