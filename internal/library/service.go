package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/config"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/logger"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/outbox/payloads"
)

// Service is the reference collector. Every mutation of album membership or
// the tag queue flows through here so media reference counts, quota
// counters, and blob lifecycles stay consistent with each other.
type Service struct {
	catalog CatalogStore
	albums  AlbumStore
	quota   QuotaStore
	tags    TagStore
	users   UserDirectory
	blobs   BlobStore
	tx      txRunner
	outbox  outboxPublisher
	media   config.MediaConfig
	logg    *logger.Logger
}

// NewService wires the collector with its stores.
func NewService(
	catalog CatalogStore,
	albums AlbumStore,
	quota QuotaStore,
	tags TagStore,
	users UserDirectory,
	blobs BlobStore,
	tx txRunner,
	ob outboxPublisher,
	media config.MediaConfig,
	logg *logger.Logger,
) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if albums == nil {
		return nil, fmt.Errorf("album store required")
	}
	if quota == nil {
		return nil, fmt.Errorf("quota store required")
	}
	if tags == nil {
		return nil, fmt.Errorf("tag store required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{
		catalog: catalog,
		albums:  albums,
		quota:   quota,
		tags:    tags,
		users:   users,
		blobs:   blobs,
		tx:      tx,
		outbox:  ob,
		media:   media,
		logg:    logg,
	}, nil
}

// ownedAlbumTx loads an album and enforces ownership.
func (s *Service) ownedAlbumTx(tx *gorm.DB, albumID, ownerID uuid.UUID) (*models.Album, error) {
	album, err := s.albums.GetByIDTx(tx, albumID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "album not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load album")
	}
	if album.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "album does not belong to user")
	}
	return album, nil
}

// purgeAndEmit deletes zero-ref catalog rows from the candidate set and
// queues a purge event per deleted row so the worker removes the blobs.
func (s *Service) purgeAndEmit(ctx context.Context, tx *gorm.DB, actorID uuid.UUID, candidates []uuid.UUID) (int, error) {
	purged, err := s.catalog.PurgeIfZeroTx(tx, candidates)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge catalog rows")
	}
	now := time.Now().UTC()
	for _, item := range purged {
		event := outbox.DomainEvent{
			EventType:     enums.EventMediaPurged,
			AggregateType: enums.AggregateMedia,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: payloads.MediaPurgedEvent{
				MediaID:      item.ID,
				StorageKey:   item.StorageKey,
				ThumbnailKey: item.ThumbnailKey,
				PurgedAt:     now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue purge event")
		}
	}
	return len(purged), nil
}

// refundUnreachable refunds the owner for every decremented item that no
// longer appears in any album they own. Items still reachable elsewhere in
// the owner's library stay charged.
func (s *Service) refundUnreachable(tx *gorm.DB, ownerID uuid.UUID, items []models.MediaItem) error {
	for _, item := range items {
		count, err := s.albums.CountOwnerMembershipsTx(tx, ownerID, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owner memberships")
		}
		if count > 0 {
			continue
		}
		if err := s.quota.RefundTx(tx, ownerID, item.SizeBytes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund quota")
		}
	}
	return nil
}

// Usage reports the caller's quota counters.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (*StorageUsage, error) {
	total, used, err := s.quota.Usage(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quota usage")
	}
	return &StorageUsage{TotalBytes: total, UsedBytes: used}, nil
}

// DownloadURLs issues short-lived attachment URLs for media the actor can
// reach through albums they own.
func (s *Service) DownloadURLs(ctx context.Context, actorID uuid.UUID, mediaIDs []uuid.UUID) ([]DownloadLink, error) {
	if len(mediaIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media ids required")
	}
	items, err := s.catalog.GetByIDs(ctx, mediaIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
	}
	if len(items) != len(dedupeIDs(mediaIDs)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more media items not found")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			count, err := s.albums.CountOwnerMembershipsTx(tx, actorID, item.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owner memberships")
			}
			if count == 0 {
				return pkgerrors.New(pkgerrors.CodeForbidden, "media not in caller's albums")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	links := make([]DownloadLink, 0, len(items))
	for _, item := range items {
		url, err := s.blobs.PresignDownload(ctx, item.StorageKey, item.FileName)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign download")
		}
		links = append(links, DownloadLink{MediaID: item.ID, URL: url})
	}
	return links, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
