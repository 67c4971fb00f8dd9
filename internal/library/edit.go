package library

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/pkg/db/models"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
)

// MoveMedia relocates items into one or more target rows, or copies them
// when no source album is given. Every touched album first gives up its old
// placements, so the destination attach relocates within albums that already
// hold an item instead of stranding it in its old row. Per item the
// reference delta is entries gained minus placements lost.
func (s *Service) MoveMedia(ctx context.Context, input MoveInput) error {
	if len(input.MediaIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "media ids required")
	}
	if len(input.Targets) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one target required")
	}
	mediaIDs := dedupeIDs(input.MediaIDs)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if input.SourceAlbumID != uuid.Nil {
			if _, err := s.ownedAlbumTx(tx, input.SourceAlbumID, input.ActorID); err != nil {
				return err
			}
		}
		for _, target := range input.Targets {
			if _, err := s.ownedAlbumTx(tx, target.AlbumID, input.ActorID); err != nil {
				return err
			}
		}

		items, err := s.catalog.GetByIDsTx(tx, mediaIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
		}
		if len(items) != len(mediaIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "one or more media items not found")
		}

		// Only media already reachable from the actor's albums may be
		// rearranged; foreign media arrives through the tag queue, where the
		// recipient is charged for it.
		for _, item := range items {
			count, err := s.albums.CountOwnerMembershipsTx(tx, input.ActorID, item.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owner memberships")
			}
			if count == 0 {
				return pkgerrors.New(pkgerrors.CodeForbidden, "media not in caller's albums")
			}
		}

		touchedAlbums := make([]uuid.UUID, 0, len(input.Targets)+1)
		seenAlbums := make(map[uuid.UUID]struct{}, len(input.Targets)+1)
		for _, target := range input.Targets {
			if _, ok := seenAlbums[target.AlbumID]; ok {
				continue
			}
			seenAlbums[target.AlbumID] = struct{}{}
			touchedAlbums = append(touchedAlbums, target.AlbumID)
		}
		if input.SourceAlbumID != uuid.Nil {
			if _, ok := seenAlbums[input.SourceAlbumID]; !ok {
				touchedAlbums = append(touchedAlbums, input.SourceAlbumID)
			}
		}

		leftCount := make(map[uuid.UUID]int, len(mediaIDs))
		for _, albumID := range touchedAlbums {
			removed, err := s.albums.DetachTx(tx, albumID, mediaIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach media")
			}
			for _, id := range removed {
				leftCount[id]++
			}
		}

		enteredCount := make(map[uuid.UUID]int, len(mediaIDs))
		for _, target := range input.Targets {
			row, err := s.albums.FindOrCreateRowTx(tx, target.AlbumID, target.Event, target.EventDate)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve album row")
			}
			entered, err := s.albums.AttachTx(tx, target.AlbumID, row.ID, input.ActorID, mediaIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach media")
			}
			for _, id := range entered {
				enteredCount[id]++
			}
		}

		decremented := make([]models.MediaItem, 0)
		candidates := make([]uuid.UUID, 0)
		for _, item := range items {
			delta := enteredCount[item.ID] - leftCount[item.ID]
			if delta == 0 {
				continue
			}
			if err := s.catalog.AddRefsTx(tx, item.ID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile ref count")
			}
			if delta < 0 {
				decremented = append(decremented, item)
				candidates = append(candidates, item.ID)
			}
		}

		for _, albumID := range touchedAlbums {
			if err := s.albums.PruneEmptyRowsTx(tx, albumID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune empty rows")
			}
		}
		if err := s.refundUnreachable(tx, input.ActorID, decremented); err != nil {
			return err
		}
		if _, err := s.purgeAndEmit(ctx, tx, input.ActorID, candidates); err != nil {
			return err
		}
		return nil
	})
}

// DeleteMedia removes items from one album, or from every album that holds
// them when Permanent is set. Permanent deletion is reserved to the uploader
// and crosses ownership boundaries; each owner whose albums lose an item is
// refunded once the item leaves their last album. Each destroyed membership
// is one reference; items that drop to zero are purged.
func (s *Service) DeleteMedia(ctx context.Context, input DeleteInput) (*DeleteResult, error) {
	if len(input.MediaIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media ids required")
	}
	mediaIDs := dedupeIDs(input.MediaIDs)

	result := &DeleteResult{LostPerAlbum: map[uuid.UUID]int{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.catalog.GetByIDsTx(tx, mediaIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
		}
		if len(items) != len(mediaIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "one or more media items not found")
		}

		var targetAlbums []uuid.UUID
		ownerByAlbum := make(map[uuid.UUID]uuid.UUID)
		if input.Permanent {
			for _, item := range items {
				if item.UploaderID != input.ActorID {
					return pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader can permanently delete media")
				}
			}
			holders, err := s.albums.AlbumsHoldingTx(tx, mediaIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list holding albums")
			}
			for _, album := range holders {
				targetAlbums = append(targetAlbums, album.ID)
				ownerByAlbum[album.ID] = album.OwnerID
			}
		} else {
			if _, err := s.ownedAlbumTx(tx, input.AlbumID, input.ActorID); err != nil {
				return err
			}
			targetAlbums = []uuid.UUID{input.AlbumID}
			ownerByAlbum[input.AlbumID] = input.ActorID
		}

		itemsByID := make(map[uuid.UUID]models.MediaItem, len(items))
		for _, item := range items {
			itemsByID[item.ID] = item
		}

		touched := make([]uuid.UUID, 0, len(mediaIDs))
		touchedSet := make(map[uuid.UUID]struct{}, len(mediaIDs))
		lostByOwner := make(map[uuid.UUID][]models.MediaItem)
		lostSeen := make(map[uuid.UUID]map[uuid.UUID]struct{})
		for _, albumID := range targetAlbums {
			removed, err := s.albums.DetachTx(tx, albumID, mediaIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach media")
			}
			if len(removed) == 0 {
				continue
			}
			result.LostPerAlbum[albumID] = len(removed)
			ownerID := ownerByAlbum[albumID]
			for _, id := range removed {
				if err := s.catalog.AddRefsTx(tx, id, -1); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement ref count")
				}
				if _, ok := touchedSet[id]; !ok {
					touchedSet[id] = struct{}{}
					touched = append(touched, id)
				}
				if lostSeen[ownerID] == nil {
					lostSeen[ownerID] = make(map[uuid.UUID]struct{})
				}
				if _, ok := lostSeen[ownerID][id]; !ok {
					lostSeen[ownerID][id] = struct{}{}
					lostByOwner[ownerID] = append(lostByOwner[ownerID], itemsByID[id])
				}
			}
			if err := s.albums.PruneEmptyRowsTx(tx, albumID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune empty rows")
			}
		}

		for ownerID, lost := range lostByOwner {
			if err := s.refundUnreachable(tx, ownerID, lost); err != nil {
				return err
			}
		}
		purged, err := s.purgeAndEmit(ctx, tx, input.ActorID, touched)
		if err != nil {
			return err
		}
		result.PurgedCount = purged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
