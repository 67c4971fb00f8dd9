package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/internal/quota"
	"github.com/dcastano/framevault-backend/internal/tags"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/outbox/payloads"
)

// resolveRecipients maps usernames to users. One unknown handle aborts the
// whole set before any mutation happens.
func (s *Service) resolveRecipients(ctx context.Context, usernames []string) ([]models.User, error) {
	cleaned := make([]string, 0, len(usernames))
	seen := make(map[string]struct{}, len(usernames))
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}
		cleaned = append(cleaned, username)
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	users, err := s.users.FindByUsernames(ctx, cleaned)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve recipients")
	}
	if len(users) != len(cleaned) {
		found := make(map[string]struct{}, len(users))
		for _, u := range users {
			found[u.Username] = struct{}{}
		}
		missing := make([]string, 0)
		for _, username := range cleaned {
			if _, ok := found[username]; !ok {
				missing = append(missing, username)
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown recipients: %s", strings.Join(missing, ", ")))
	}
	return users, nil
}

// createTagRequestTx appends a pending request and takes one reference per
// item on the recipient's behalf.
func (s *Service) createTagRequestTx(ctx context.Context, tx *gorm.DB, senderID uuid.UUID, recipient models.User, mediaIDs []uuid.UUID) error {
	req, err := s.tags.CreateTx(tx, senderID, recipient.ID, mediaIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tag request")
	}
	for _, mediaID := range mediaIDs {
		if err := s.catalog.AddRefsTx(tx, mediaID, 1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment ref count")
		}
	}

	created := outbox.DomainEvent{
		EventType:     enums.EventTagCreated,
		AggregateType: enums.AggregateTagRequest,
		AggregateID:   req.ID,
		Actor:         &outbox.ActorRef{UserID: senderID},
		Data: payloads.TagCreatedEvent{
			TagRequestID: req.ID,
			SenderID:     senderID,
			RecipientID:  recipient.ID,
			MediaCount:   len(mediaIDs),
		},
	}
	if err := s.outbox.Emit(ctx, tx, created); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue tag event")
	}

	notify := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   req.ID,
		Actor:         &outbox.ActorRef{UserID: senderID},
		Data: payloads.NotificationRequestedEvent{
			UserID: recipient.ID,
			Type:   "tag_request",
			Title:  "New shared media",
			Body:   fmt.Sprintf("%d items were shared with you", len(mediaIDs)),
		},
	}
	if err := s.outbox.Emit(ctx, tx, notify); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue notification event")
	}
	return nil
}

// Share offers media the sender already holds to the named recipients.
func (s *Service) Share(ctx context.Context, input ShareInput) error {
	if len(input.MediaIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "media ids required")
	}
	if len(input.Usernames) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient required")
	}

	recipients, err := s.resolveRecipients(ctx, input.Usernames)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient required")
	}
	for _, recipient := range recipients {
		if recipient.ID == input.SenderID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot share with yourself")
		}
	}

	mediaIDs := dedupeIDs(input.MediaIDs)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.catalog.GetByIDsTx(tx, mediaIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load media")
		}
		if len(items) != len(mediaIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "one or more media items not found")
		}
		for _, item := range items {
			count, err := s.albums.CountOwnerMembershipsTx(tx, input.SenderID, item.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owner memberships")
			}
			if count == 0 {
				return pkgerrors.New(pkgerrors.CodeForbidden, "media not in sender's albums")
			}
		}

		for _, recipient := range recipients {
			if err := s.createTagRequestTx(ctx, tx, input.SenderID, recipient, mediaIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListTagRequests returns the caller's pending queue in positional order,
// with thumbnails for preview.
func (s *Service) ListTagRequests(ctx context.Context, recipientID uuid.UUID) ([]TagRequestDTO, error) {
	rows, err := s.tags.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tag requests")
	}

	out := make([]TagRequestDTO, 0, len(rows))
	for _, row := range rows {
		dto := TagRequestDTO{
			Index:      row.Position,
			SenderID:   row.SenderID,
			MediaCount: len(row.MediaIDs),
			CreatedAt:  row.CreatedAt,
			MediaIDs:   row.MediaIDs,
		}
		items, err := s.catalog.GetByIDs(ctx, row.MediaIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tagged media")
		}
		for _, item := range items {
			media := mediaDTO(item)
			media.ViewURL, err = s.blobs.PresignView(ctx, item.StorageKey)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "presign view url")
			}
			dto.Media = append(dto.Media, media)
		}
		out = append(out, dto)
	}
	return out, nil
}

// AcceptTag consumes the request at the index, attaching its media to the
// target rows. Each album performs exactly one de-duplication pass through
// its membership constraint, so an item already present in a target simply
// does not re-enter it. Per item the reference delta is the number of albums
// it newly entered minus the one reference the consumed request held.
func (s *Service) AcceptTag(ctx context.Context, input AcceptTagInput) error {
	if len(input.Targets) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one target album required")
	}
	if input.Index < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "index must not be negative")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.tags.GetByIndexTx(tx, input.RecipientID, input.Index)
		if err != nil {
			if errors.Is(err, tags.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tag request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tag request")
		}

		for _, target := range input.Targets {
			if _, err := s.ownedAlbumTx(tx, target.AlbumID, input.RecipientID); err != nil {
				return err
			}
		}

		items, err := s.catalog.GetByIDsTx(tx, req.MediaIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tagged media")
		}

		// Items not yet reachable from any of the recipient's albums are
		// charged before attachment.
		var chargeBytes int64
		for _, item := range items {
			count, err := s.albums.CountOwnerMembershipsTx(tx, input.RecipientID, item.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owner memberships")
			}
			if count == 0 {
				chargeBytes += item.SizeBytes
			}
		}
		if chargeBytes > 0 {
			if err := s.quota.ChargeTx(tx, input.RecipientID, chargeBytes); err != nil {
				if errors.Is(err, quota.ErrQuotaExceeded) {
					return pkgerrors.New(pkgerrors.CodeQuota, "storage quota exceeded")
				}
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge quota")
			}
		}

		enteredCount := make(map[uuid.UUID]int, len(req.MediaIDs))
		for _, target := range input.Targets {
			row, err := s.albums.FindOrCreateRowTx(tx, target.AlbumID, target.Event, target.EventDate)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve album row")
			}
			entered, err := s.albums.AttachTx(tx, target.AlbumID, row.ID, input.RecipientID, req.MediaIDs)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach media")
			}
			for _, id := range entered {
				enteredCount[id]++
			}
		}

		decremented := make([]uuid.UUID, 0)
		for _, mediaID := range req.MediaIDs {
			delta := enteredCount[mediaID] - 1
			if delta == 0 {
				continue
			}
			if err := s.catalog.AddRefsTx(tx, mediaID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile ref count")
			}
			if delta < 0 {
				decremented = append(decremented, mediaID)
			}
		}

		if err := s.tags.RemoveByIndexTx(tx, input.RecipientID, input.Index); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove tag request")
		}

		if _, err := s.purgeAndEmit(ctx, tx, input.RecipientID, decremented); err != nil {
			return err
		}
		return nil
	})
}

// RejectTag destroys the request at the index. Each item loses the reference
// the request held; items that reach zero are purged.
func (s *Service) RejectTag(ctx context.Context, recipientID uuid.UUID, index int) error {
	if index < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "index must not be negative")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.tags.GetByIndexTx(tx, recipientID, index)
		if err != nil {
			if errors.Is(err, tags.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tag request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tag request")
		}

		if err := s.tags.RemoveByIndexTx(tx, recipientID, index); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove tag request")
		}
		for _, mediaID := range req.MediaIDs {
			if err := s.catalog.AddRefsTx(tx, mediaID, -1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement ref count")
			}
		}
		if _, err := s.purgeAndEmit(ctx, tx, recipientID, req.MediaIDs); err != nil {
			return err
		}
		return nil
	})
}
