package library

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
)

// CreateAlbum adds a group album for the owner. Main albums are created once
// at registration and never through this path.
func (s *Service) CreateAlbum(ctx context.Context, ownerID uuid.UUID, name string) (*AlbumDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "album name required")
	}

	album := models.Album{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Kind:    enums.AlbumKindGroup,
		Name:    name,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.albums.CreateTx(tx, &album); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create album")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := albumDTO(album)
	return &dto, nil
}

// RenameAlbum renames a group album. The main album keeps its fixed name.
func (s *Service) RenameAlbum(ctx context.Context, actorID, albumID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "album name required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		album, err := s.ownedAlbumTx(tx, albumID, actorID)
		if err != nil {
			return err
		}
		if album.Kind != enums.AlbumKindGroup {
			return pkgerrors.New(pkgerrors.CodeValidation, "main album cannot be renamed")
		}
		if err := s.albums.RenameTx(tx, albumID, name); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename album")
		}
		return nil
	})
}

// DeleteAlbum removes a group album. Every membership the album held is a
// destroyed reference, so items may lose their last reference here and get
// purged, and quota is refunded for items that leave the owner's library.
func (s *Service) DeleteAlbum(ctx context.Context, actorID, albumID uuid.UUID) (*DeleteResult, error) {
	result := &DeleteResult{LostPerAlbum: map[uuid.UUID]int{}}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		album, err := s.ownedAlbumTx(tx, albumID, actorID)
		if err != nil {
			return err
		}
		if album.Kind != enums.AlbumKindGroup {
			return pkgerrors.New(pkgerrors.CodeValidation, "main album cannot be deleted")
		}

		members, err := s.albums.MembersByAlbumTx(tx, albumID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load album members")
		}
		mediaIDs := make([]uuid.UUID, 0, len(members))
		for _, m := range members {
			mediaIDs = append(mediaIDs, m.MediaID)
		}

		removed, err := s.albums.DetachTx(tx, albumID, mediaIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach album members")
		}
		result.LostPerAlbum[albumID] = len(removed)

		items, err := s.catalog.GetByIDsTx(tx, removed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load detached media")
		}
		for _, id := range removed {
			if err := s.catalog.AddRefsTx(tx, id, -1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement ref count")
			}
		}
		if err := s.refundUnreachable(tx, actorID, items); err != nil {
			return err
		}
		purged, err := s.purgeAndEmit(ctx, tx, actorID, removed)
		if err != nil {
			return err
		}
		result.PurgedCount = purged

		if err := s.albums.DeleteTx(tx, albumID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete album")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListAlbums returns the caller's albums without their contents.
func (s *Service) ListAlbums(ctx context.Context, ownerID uuid.UUID) ([]AlbumDTO, error) {
	rows, err := s.albums.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list albums")
	}
	out := make([]AlbumDTO, 0, len(rows))
	for _, album := range rows {
		out = append(out, albumDTO(album))
	}
	return out, nil
}

// AlbumContents loads an album's rows with presigned view and thumbnail URLs
// for each member.
func (s *Service) AlbumContents(ctx context.Context, actorID, albumID uuid.UUID) (*AlbumDTO, error) {
	album, err := s.albums.GetByID(ctx, albumID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "album not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load album")
	}
	if album.OwnerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "album does not belong to user")
	}

	rows, err := s.albums.RowsByAlbum(ctx, albumID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load album rows")
	}
	members, err := s.albums.MembersByAlbum(ctx, albumID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load album members")
	}

	mediaIDs := make([]uuid.UUID, 0, len(members))
	byRow := make(map[uuid.UUID][]uuid.UUID)
	for _, m := range members {
		mediaIDs = append(mediaIDs, m.MediaID)
		byRow[m.RowID] = append(byRow[m.RowID], m.MediaID)
	}
	items, err := s.catalog.GetByIDs(ctx, mediaIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
	}
	byID := make(map[uuid.UUID]models.MediaItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	dto := albumDTO(*album)
	dto.Rows = make([]AlbumRowDTO, 0, len(rows))
	for _, row := range rows {
		rowDTO := AlbumRowDTO{ID: row.ID, Event: row.Event, EventDate: row.EventDate}
		for _, mediaID := range byRow[row.ID] {
			item, ok := byID[mediaID]
			if !ok {
				continue
			}
			media := mediaDTO(item)
			media.ViewURL, err = s.blobs.PresignView(ctx, item.StorageKey)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign view url")
			}
			if item.ThumbnailKey != nil {
				media.ThumbnailURL, err = s.blobs.PresignThumbnail(ctx, *item.ThumbnailKey)
				if err != nil {
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign thumbnail url")
				}
			}
			rowDTO.Media = append(rowDTO.Media, media)
		}
		dto.Rows = append(dto.Rows, rowDTO)
	}
	return &dto, nil
}

func albumDTO(album models.Album) AlbumDTO {
	return AlbumDTO{
		ID:        album.ID,
		OwnerID:   album.OwnerID,
		Kind:      album.Kind.String(),
		Name:      album.Name,
		CreatedAt: album.CreatedAt,
	}
}
