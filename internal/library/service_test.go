package library

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dcastano/framevault-backend/internal/albums"
	"github.com/dcastano/framevault-backend/internal/catalog"
	"github.com/dcastano/framevault-backend/internal/quota"
	"github.com/dcastano/framevault-backend/internal/tags"
	"github.com/dcastano/framevault-backend/internal/users"
	"github.com/dcastano/framevault-backend/pkg/config"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/storage/s3"
)

var testDDL = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at DATETIME,
		main_album_id TEXT,
		total_bytes INTEGER NOT NULL,
		used_bytes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE albums (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE album_rows (
		id TEXT PRIMARY KEY,
		album_id TEXT NOT NULL,
		event TEXT NOT NULL,
		event_date TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (album_id, event, event_date)
	)`,
	`CREATE TABLE album_row_members (
		id TEXT PRIMARY KEY,
		album_id TEXT NOT NULL,
		row_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		added_by TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (album_id, media_id)
	)`,
	`CREATE TABLE media_items (
		id TEXT PRIMARY KEY,
		uploader_id TEXT NOT NULL,
		storage_key TEXT NOT NULL UNIQUE,
		thumbnail_key TEXT,
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		ref_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE tag_requests (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		media_ids TEXT NOT NULL,
		created_at DATETIME
	)`,
}

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

type outboxStub struct {
	events []outbox.DomainEvent
}

func (o *outboxStub) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	o.events = append(o.events, event)
	return nil
}

func (o *outboxStub) count(eventType enums.OutboxEventType) int {
	n := 0
	for _, e := range o.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type blobStub struct {
	sizes         map[string]int64
	deletedMedia  []string
	deletedThumbs []string
}

func newBlobStub() *blobStub {
	return &blobStub{sizes: map[string]int64{}}
}

func (b *blobStub) PresignMediaUpload(_ context.Context, key, _ string) (string, error) {
	return "https://media.test/" + key, nil
}

func (b *blobStub) PresignThumbnailUpload(_ context.Context, key, _ string) (string, error) {
	return "https://thumbs.test/" + key, nil
}

func (b *blobStub) PresignView(_ context.Context, key string) (string, error) {
	return "https://media.test/view/" + key, nil
}

func (b *blobStub) PresignThumbnail(_ context.Context, key string) (string, error) {
	return "https://thumbs.test/view/" + key, nil
}

func (b *blobStub) PresignDownload(_ context.Context, key, _ string) (string, error) {
	return "https://media.test/dl/" + key, nil
}

func (b *blobStub) Head(_ context.Context, key string) (int64, error) {
	size, ok := b.sizes[key]
	if !ok {
		return 0, s3.ErrObjectMissing
	}
	return size, nil
}

func (b *blobStub) DeleteMediaObjects(_ context.Context, keys []string) error {
	b.deletedMedia = append(b.deletedMedia, keys...)
	return nil
}

func (b *blobStub) DeleteThumbnailObjects(_ context.Context, keys []string) error {
	b.deletedThumbs = append(b.deletedThumbs, keys...)
	return nil
}

type fixture struct {
	conn    *gorm.DB
	svc     *Service
	blobs   *blobStub
	outbox  *outboxStub
	catalog *catalog.Repository
	albums  *albums.Repository
	quota   *quota.Repository
	tags    *tags.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	for _, ddl := range testDDL {
		if err := conn.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	f := &fixture{
		conn:    conn,
		blobs:   newBlobStub(),
		outbox:  &outboxStub{},
		catalog: catalog.NewRepository(conn),
		albums:  albums.NewRepository(conn),
		quota:   quota.NewRepository(conn),
		tags:    tags.NewRepository(conn),
	}
	svc, err := NewService(
		f.catalog,
		f.albums,
		f.quota,
		f.tags,
		users.NewRepository(conn),
		f.blobs,
		gormTxRunner{conn: conn},
		f.outbox,
		config.MediaConfig{MaxUploadMB: 10, MaxBatchFiles: 5},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedUser(t *testing.T, totalBytes int64) (uuid.UUID, uuid.UUID) {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		Username:     "user-" + uuid.NewString()[:8],
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		TotalBytes:   totalBytes,
	}
	if err := f.conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	album := models.Album{
		ID:      uuid.New(),
		OwnerID: user.ID,
		Kind:    enums.AlbumKindMain,
		Name:    "Main",
	}
	if err := f.conn.Create(&album).Error; err != nil {
		t.Fatalf("seed main album: %v", err)
	}
	if err := f.conn.Model(&models.User{}).Where("id = ?", user.ID).
		UpdateColumn("main_album_id", album.ID).Error; err != nil {
		t.Fatalf("link main album: %v", err)
	}
	return user.ID, album.ID
}

func (f *fixture) username(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	var user models.User
	if err := f.conn.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user.Username
}

func (f *fixture) refCount(t *testing.T, mediaID uuid.UUID) int {
	t.Helper()
	var item models.MediaItem
	err := f.conn.First(&item, "id = ?", mediaID).Error
	if err == gorm.ErrRecordNotFound {
		return -1
	}
	if err != nil {
		t.Fatalf("load media: %v", err)
	}
	return item.RefCount
}

func (f *fixture) usedBytes(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	_, used, err := f.quota.Usage(context.Background(), userID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	return used
}

func (f *fixture) upload(t *testing.T, uploaderID, albumID uuid.UUID, sizes ...int64) []MediaDTO {
	t.Helper()
	files := make([]CompletedFile, 0, len(sizes))
	for i, size := range sizes {
		key := fmt.Sprintf("users/%s/2026/08/%s.jpg", uploaderID, uuid.NewString())
		f.blobs.sizes[key] = size
		files = append(files, CompletedFile{
			StorageKey: key,
			FileName:   fmt.Sprintf("photo-%d.jpg", i),
			MimeType:   "image/jpeg",
		})
	}
	media, err := f.svc.UploadComplete(context.Background(), UploadCompleteInput{
		UploaderID: uploaderID,
		Target:     AlbumTarget{AlbumID: albumID, Event: "picnic", EventDate: "2026-08-20"},
		Files:      files,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return media
}

func TestUploadInitIssuesThumbnailForVideo(t *testing.T) {
	f := newFixture(t)
	uploaderID, _ := f.seedUser(t, 1<<20)

	tickets, err := f.svc.UploadInit(context.Background(), uploaderID, []UploadFileInput{
		{FileName: "clip.mp4", MimeType: "video/mp4", SizeBytes: 1024},
		{FileName: "photo.jpg", MimeType: "image/jpeg", SizeBytes: 1024},
	})
	if err != nil {
		t.Fatalf("upload init: %v", err)
	}
	if tickets[0].ThumbnailKey == nil || tickets[0].ThumbnailUploadURL == nil {
		t.Fatal("video upload must include a thumbnail target")
	}
	if tickets[1].ThumbnailKey != nil {
		t.Fatal("image upload must not include a thumbnail target")
	}
	if tickets[0].StorageKey == tickets[1].StorageKey {
		t.Fatal("storage keys must be unique per file")
	}
}

func TestUploadInitRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t)
	uploaderID, _ := f.seedUser(t, 1<<20)

	files := make([]UploadFileInput, 6)
	for i := range files {
		files[i] = UploadFileInput{FileName: "p.jpg", MimeType: "image/jpeg", SizeBytes: 10}
	}
	_, err := f.svc.UploadInit(context.Background(), uploaderID, files)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadCompleteChargesQuotaAndCountsRefs(t *testing.T) {
	f := newFixture(t)
	uploaderID, albumID := f.seedUser(t, 10_000)

	media := f.upload(t, uploaderID, albumID, 3000, 2000)

	if used := f.usedBytes(t, uploaderID); used != 5000 {
		t.Fatalf("expected 5000 bytes charged, got %d", used)
	}
	for _, m := range media {
		if got := f.refCount(t, m.ID); got != 1 {
			t.Fatalf("expected ref count 1 after upload, got %d", got)
		}
	}
	if got := f.outbox.count(enums.EventMediaUploaded); got != 2 {
		t.Fatalf("expected 2 upload events, got %d", got)
	}
}

func TestUploadCompleteOverQuotaRollsBackBlobs(t *testing.T) {
	f := newFixture(t)
	uploaderID, albumID := f.seedUser(t, 1000)

	key := fmt.Sprintf("users/%s/2026/08/%s.jpg", uploaderID, uuid.NewString())
	f.blobs.sizes[key] = 5000
	_, err := f.svc.UploadComplete(context.Background(), UploadCompleteInput{
		UploaderID: uploaderID,
		Target:     AlbumTarget{AlbumID: albumID, Event: "picnic", EventDate: "2026-08-20"},
		Files:      []CompletedFile{{StorageKey: key, FileName: "big.jpg", MimeType: "image/jpeg"}},
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeQuota {
		t.Fatalf("expected quota error, got %v", err)
	}

	if used := f.usedBytes(t, uploaderID); used != 0 {
		t.Fatalf("failed upload must not charge quota, got %d", used)
	}
	var count int64
	if err := f.conn.Model(&models.MediaItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count media: %v", err)
	}
	if count != 0 {
		t.Fatal("no catalog row may survive a failed upload")
	}
	if len(f.blobs.deletedMedia) != 1 || f.blobs.deletedMedia[0] != key {
		t.Fatalf("uploaded blob must be deleted on rollback, got %v", f.blobs.deletedMedia)
	}
}

func TestUploadCompleteMissingBlobFailsBatch(t *testing.T) {
	f := newFixture(t)
	uploaderID, albumID := f.seedUser(t, 10_000)

	present := fmt.Sprintf("users/%s/2026/08/%s.jpg", uploaderID, uuid.NewString())
	missing := fmt.Sprintf("users/%s/2026/08/%s.jpg", uploaderID, uuid.NewString())
	f.blobs.sizes[present] = 100

	_, err := f.svc.UploadComplete(context.Background(), UploadCompleteInput{
		UploaderID: uploaderID,
		Target:     AlbumTarget{AlbumID: albumID, Event: "picnic", EventDate: "2026-08-20"},
		Files: []CompletedFile{
			{StorageKey: present, FileName: "a.jpg", MimeType: "image/jpeg"},
			{StorageKey: missing, FileName: "b.jpg", MimeType: "image/jpeg"},
		},
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeBlobVerify {
		t.Fatalf("expected blob verification error, got %v", err)
	}
	if used := f.usedBytes(t, uploaderID); used != 0 {
		t.Fatalf("aborted batch must not charge quota, got %d", used)
	}
	if len(f.blobs.deletedMedia) != 2 {
		t.Fatalf("whole batch must be cleaned up, got %v", f.blobs.deletedMedia)
	}
}

func TestShareAndRejectReturnsRefToPreShareValue(t *testing.T) {
	f := newFixture(t)
	senderID, senderAlbum := f.seedUser(t, 10_000)
	recipientID, _ := f.seedUser(t, 10_000)

	media := f.upload(t, senderID, senderAlbum, 500)
	mediaID := media[0].ID

	err := f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Usernames: []string{f.username(t, recipientID)},
	})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if got := f.refCount(t, mediaID); got != 2 {
		t.Fatalf("expected ref count 2 after share, got %d", got)
	}
	if got := f.outbox.count(enums.EventTagCreated); got != 1 {
		t.Fatalf("expected 1 tag event, got %d", got)
	}
	if got := f.outbox.count(enums.EventNotificationRequested); got != 1 {
		t.Fatalf("expected 1 notification event, got %d", got)
	}

	if err := f.svc.RejectTag(context.Background(), recipientID, 0); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := f.refCount(t, mediaID); got != 1 {
		t.Fatalf("reject must return ref count to pre-share value, got %d", got)
	}
}

func TestShareUnknownRecipientAborts(t *testing.T) {
	f := newFixture(t)
	senderID, senderAlbum := f.seedUser(t, 10_000)
	recipientID, _ := f.seedUser(t, 10_000)

	media := f.upload(t, senderID, senderAlbum, 500)

	err := f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{media[0].ID},
		Usernames: []string{f.username(t, recipientID), "nobody-here"},
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := f.refCount(t, media[0].ID); got != 1 {
		t.Fatalf("aborted share must not touch ref counts, got %d", got)
	}
	reqs, err := f.svc.ListTagRequests(context.Background(), recipientID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 0 {
		t.Fatal("aborted share must not enqueue any request")
	}
}

func TestAcceptTagAttachesAndCharges(t *testing.T) {
	f := newFixture(t)
	senderID, senderAlbum := f.seedUser(t, 10_000)
	recipientID, recipientAlbum := f.seedUser(t, 10_000)

	media := f.upload(t, senderID, senderAlbum, 700)
	mediaID := media[0].ID

	err := f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Usernames: []string{f.username(t, recipientID)},
	})
	if err != nil {
		t.Fatalf("share: %v", err)
	}

	err = f.svc.AcceptTag(context.Background(), AcceptTagInput{
		RecipientID: recipientID,
		Index:       0,
		Targets:     []AlbumTarget{{AlbumID: recipientAlbum, Event: "gift", EventDate: "2026-08-21"}},
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	// One album membership gained, one tag reference consumed.
	if got := f.refCount(t, mediaID); got != 2 {
		t.Fatalf("expected ref count 2 after accept, got %d", got)
	}
	if used := f.usedBytes(t, recipientID); used != 700 {
		t.Fatalf("recipient must be charged for newly reachable media, got %d", used)
	}
	var count int64
	err = f.conn.Model(&models.AlbumRowMember{}).
		Where("album_id = ? AND media_id = ?", recipientAlbum, mediaID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count members: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one membership in recipient album, got %d", count)
	}
}

func TestAcceptTagAlreadyPresentRemovesEntryWithoutIncrement(t *testing.T) {
	f := newFixture(t)
	senderID, senderAlbum := f.seedUser(t, 10_000)

	media := f.upload(t, senderID, senderAlbum, 300)
	mediaID := media[0].ID

	// Sender shares to themselves is blocked, so use a second user who then
	// shares the item back after accepting it once.
	recipientID, recipientAlbum := f.seedUser(t, 10_000)
	err := f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Usernames: []string{f.username(t, recipientID)},
	})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	err = f.svc.AcceptTag(context.Background(), AcceptTagInput{
		RecipientID: recipientID,
		Index:       0,
		Targets:     []AlbumTarget{{AlbumID: recipientAlbum, Event: "gift", EventDate: "2026-08-21"}},
	})
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	refAfterFirst := f.refCount(t, mediaID)
	usedAfterFirst := f.usedBytes(t, recipientID)

	// Second share of the same item; the recipient already holds it in the
	// target album, so accepting only consumes the tag reference.
	err = f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Usernames: []string{f.username(t, recipientID)},
	})
	if err != nil {
		t.Fatalf("second share: %v", err)
	}
	err = f.svc.AcceptTag(context.Background(), AcceptTagInput{
		RecipientID: recipientID,
		Index:       0,
		Targets:     []AlbumTarget{{AlbumID: recipientAlbum, Event: "gift", EventDate: "2026-08-21"}},
	})
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}

	if got := f.refCount(t, mediaID); got != refAfterFirst {
		t.Fatalf("accept into an album already holding the item must not change refs: got %d want %d", got, refAfterFirst)
	}
	if used := f.usedBytes(t, recipientID); used != usedAfterFirst {
		t.Fatalf("already reachable media must not be charged again: got %d want %d", used, usedAfterFirst)
	}
	var count int64
	err = f.conn.Model(&models.AlbumRowMember{}).
		Where("album_id = ? AND media_id = ?", recipientAlbum, mediaID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count members: %v", err)
	}
	if count != 1 {
		t.Fatalf("no duplicate membership allowed, got %d", count)
	}
	reqs, err := f.svc.ListTagRequests(context.Background(), recipientID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 0 {
		t.Fatal("accepted request must be removed from the queue")
	}
}

func TestDeletePermanentPurgesAndRefunds(t *testing.T) {
	f := newFixture(t)
	uploaderID, albumID := f.seedUser(t, 10_000)

	media := f.upload(t, uploaderID, albumID, 1200)
	mediaID := media[0].ID

	result, err := f.svc.DeleteMedia(context.Background(), DeleteInput{
		ActorID:   uploaderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Permanent: true,
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if result.PurgedCount != 1 {
		t.Fatalf("expected 1 purged item, got %d", result.PurgedCount)
	}
	if got := f.refCount(t, mediaID); got != -1 {
		t.Fatal("catalog row must be gone after purge")
	}
	if used := f.usedBytes(t, uploaderID); used != 0 {
		t.Fatalf("purged media must be refunded, got %d", used)
	}
	if got := f.outbox.count(enums.EventMediaPurged); got != 1 {
		t.Fatalf("expected 1 purge event, got %d", got)
	}
}

func TestDeleteFromOneAlbumKeepsSharedReference(t *testing.T) {
	f := newFixture(t)
	uploaderID, mainAlbum := f.seedUser(t, 10_000)
	group, err := f.svc.CreateAlbum(context.Background(), uploaderID, "Trips")
	if err != nil {
		t.Fatalf("create album: %v", err)
	}

	media := f.upload(t, uploaderID, mainAlbum, 800)
	mediaID := media[0].ID

	// Copy into the group album: no source, so nothing detaches.
	err = f.svc.MoveMedia(context.Background(), MoveInput{
		ActorID:  uploaderID,
		MediaIDs: []uuid.UUID{mediaID},
		Targets:  []AlbumTarget{{AlbumID: group.ID, Event: "trip", EventDate: "2026-08-22"}},
	})
	if err != nil {
		t.Fatalf("copy to group album: %v", err)
	}
	if got := f.refCount(t, mediaID); got != 2 {
		t.Fatalf("expected ref count 2 after copy, got %d", got)
	}

	result, err := f.svc.DeleteMedia(context.Background(), DeleteInput{
		ActorID:  uploaderID,
		AlbumID:  group.ID,
		MediaIDs: []uuid.UUID{mediaID},
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if result.PurgedCount != 0 {
		t.Fatal("item still referenced from the main album must not purge")
	}
	if got := f.refCount(t, mediaID); got != 1 {
		t.Fatalf("expected ref count 1, got %d", got)
	}
	if used := f.usedBytes(t, uploaderID); used != 800 {
		t.Fatalf("still reachable media must stay charged, got %d", used)
	}
}

func TestMoveMediaKeepsRefAndPrunesEmptyRows(t *testing.T) {
	f := newFixture(t)
	uploaderID, mainAlbum := f.seedUser(t, 10_000)
	group, err := f.svc.CreateAlbum(context.Background(), uploaderID, "Trips")
	if err != nil {
		t.Fatalf("create album: %v", err)
	}

	media := f.upload(t, uploaderID, mainAlbum, 600)
	mediaID := media[0].ID

	err = f.svc.MoveMedia(context.Background(), MoveInput{
		ActorID:       uploaderID,
		SourceAlbumID: mainAlbum,
		MediaIDs:      []uuid.UUID{mediaID},
		Targets:       []AlbumTarget{{AlbumID: group.ID, Event: "trip", EventDate: "2026-08-22"}},
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	if got := f.refCount(t, mediaID); got != 1 {
		t.Fatalf("move must keep the ref count at 1, got %d", got)
	}
	var sourceRows int64
	if err := f.conn.Model(&models.AlbumRow{}).Where("album_id = ?", mainAlbum).Count(&sourceRows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if sourceRows != 0 {
		t.Fatalf("emptied source row must be pruned, got %d", sourceRows)
	}
	if used := f.usedBytes(t, uploaderID); used != 600 {
		t.Fatalf("moving inside own library must not change quota, got %d", used)
	}
}

func (f *fixture) memberRowEvent(t *testing.T, albumID, mediaID uuid.UUID) string {
	t.Helper()
	var member models.AlbumRowMember
	if err := f.conn.First(&member, "album_id = ? AND media_id = ?", albumID, mediaID).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}
	var row models.AlbumRow
	if err := f.conn.First(&row, "id = ?", member.RowID).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	return row.Event
}

func TestMoveRelocatesItemInEveryTargetAlbum(t *testing.T) {
	f := newFixture(t)
	uploaderID, mainAlbum := f.seedUser(t, 10_000)
	group, err := f.svc.CreateAlbum(context.Background(), uploaderID, "Trips")
	if err != nil {
		t.Fatalf("create album: %v", err)
	}

	media := f.upload(t, uploaderID, mainAlbum, 500)
	mediaID := media[0].ID

	// Copy into the group album so both albums hold the item in row "picnic".
	err = f.svc.MoveMedia(context.Background(), MoveInput{
		ActorID:  uploaderID,
		MediaIDs: []uuid.UUID{mediaID},
		Targets:  []AlbumTarget{{AlbumID: group.ID, Event: "picnic", EventDate: "2026-08-20"}},
	})
	if err != nil {
		t.Fatalf("copy to group album: %v", err)
	}

	err = f.svc.MoveMedia(context.Background(), MoveInput{
		ActorID:  uploaderID,
		MediaIDs: []uuid.UUID{mediaID},
		Targets: []AlbumTarget{
			{AlbumID: mainAlbum, Event: "reunion", EventDate: "2026-08-23"},
			{AlbumID: group.ID, Event: "reunion", EventDate: "2026-08-23"},
		},
	})
	if err != nil {
		t.Fatalf("move to new row: %v", err)
	}

	if got := f.refCount(t, mediaID); got != 2 {
		t.Fatalf("net associations unchanged, ref count must stay 2, got %d", got)
	}
	for _, albumID := range []uuid.UUID{mainAlbum, group.ID} {
		if event := f.memberRowEvent(t, albumID, mediaID); event != "reunion" {
			t.Fatalf("item must relocate to the destination row in album %s, still in row %q", albumID, event)
		}
		var rows int64
		if err := f.conn.Model(&models.AlbumRow{}).Where("album_id = ?", albumID).Count(&rows).Error; err != nil {
			t.Fatalf("count rows: %v", err)
		}
		if rows != 1 {
			t.Fatalf("emptied rows must be pruned in album %s, got %d rows", albumID, rows)
		}
	}
	if used := f.usedBytes(t, uploaderID); used != 500 {
		t.Fatalf("rearranging inside own library must not change quota, got %d", used)
	}
}

func TestMoveForeignMediaRejected(t *testing.T) {
	f := newFixture(t)
	ownerID, ownerAlbum := f.seedUser(t, 10_000)
	intruderID, intruderAlbum := f.seedUser(t, 10_000)

	media := f.upload(t, ownerID, ownerAlbum, 900)
	mediaID := media[0].ID

	err := f.svc.MoveMedia(context.Background(), MoveInput{
		ActorID:  intruderID,
		MediaIDs: []uuid.UUID{mediaID},
		Targets:  []AlbumTarget{{AlbumID: intruderAlbum, Event: "stolen", EventDate: "2026-08-23"}},
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	if got := f.refCount(t, mediaID); got != 1 {
		t.Fatalf("rejected copy must not touch ref counts, got %d", got)
	}
	if used := f.usedBytes(t, intruderID); used != 0 {
		t.Fatalf("rejected copy must not move quota, got %d", used)
	}
	var count int64
	err = f.conn.Model(&models.AlbumRowMember{}).
		Where("album_id = ? AND media_id = ?", intruderAlbum, mediaID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count members: %v", err)
	}
	if count != 0 {
		t.Fatal("foreign media must not enter the caller's album")
	}
}

func TestPermanentDeleteDetachesFromAllOwnersAlbums(t *testing.T) {
	f := newFixture(t)
	senderID, senderAlbum := f.seedUser(t, 10_000)
	recipientID, recipientAlbum := f.seedUser(t, 10_000)

	media := f.upload(t, senderID, senderAlbum, 800)
	mediaID := media[0].ID

	err := f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Usernames: []string{f.username(t, recipientID)},
	})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	err = f.svc.AcceptTag(context.Background(), AcceptTagInput{
		RecipientID: recipientID,
		Index:       0,
		Targets:     []AlbumTarget{{AlbumID: recipientAlbum, Event: "gift", EventDate: "2026-08-21"}},
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := f.svc.DeleteMedia(context.Background(), DeleteInput{
		ActorID:   senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Permanent: true,
	})
	if err != nil {
		t.Fatalf("permanent delete: %v", err)
	}
	if result.PurgedCount != 1 {
		t.Fatalf("expected 1 purged item, got %d", result.PurgedCount)
	}
	if got := f.refCount(t, mediaID); got != -1 {
		t.Fatal("catalog row must be gone after permanent delete")
	}
	var count int64
	if err := f.conn.Model(&models.AlbumRowMember{}).Where("media_id = ?", mediaID).Count(&count).Error; err != nil {
		t.Fatalf("count members: %v", err)
	}
	if count != 0 {
		t.Fatalf("permanent delete must clear every album, %d memberships left", count)
	}
	if used := f.usedBytes(t, senderID); used != 0 {
		t.Fatalf("uploader must be refunded, got %d", used)
	}
	if used := f.usedBytes(t, recipientID); used != 0 {
		t.Fatalf("other holders must be refunded too, got %d", used)
	}
	if got := f.outbox.count(enums.EventMediaPurged); got != 1 {
		t.Fatalf("expected 1 purge event, got %d", got)
	}
}

func TestPermanentDeleteByNonUploaderRejected(t *testing.T) {
	f := newFixture(t)
	senderID, senderAlbum := f.seedUser(t, 10_000)
	recipientID, recipientAlbum := f.seedUser(t, 10_000)

	media := f.upload(t, senderID, senderAlbum, 300)
	mediaID := media[0].ID

	err := f.svc.Share(context.Background(), ShareInput{
		SenderID:  senderID,
		MediaIDs:  []uuid.UUID{mediaID},
		Usernames: []string{f.username(t, recipientID)},
	})
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	err = f.svc.AcceptTag(context.Background(), AcceptTagInput{
		RecipientID: recipientID,
		Index:       0,
		Targets:     []AlbumTarget{{AlbumID: recipientAlbum, Event: "gift", EventDate: "2026-08-21"}},
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = f.svc.DeleteMedia(context.Background(), DeleteInput{
		ActorID:   recipientID,
		MediaIDs:  []uuid.UUID{mediaID},
		Permanent: true,
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if got := f.refCount(t, mediaID); got != 2 {
		t.Fatalf("rejected delete must not touch ref counts, got %d", got)
	}
}

func TestDeleteAlbumReleasesReferences(t *testing.T) {
	f := newFixture(t)
	uploaderID, mainAlbum := f.seedUser(t, 10_000)
	group, err := f.svc.CreateAlbum(context.Background(), uploaderID, "Trips")
	if err != nil {
		t.Fatalf("create album: %v", err)
	}

	media := f.upload(t, uploaderID, group.ID, 400)
	mediaID := media[0].ID
	_ = mainAlbum

	result, err := f.svc.DeleteAlbum(context.Background(), uploaderID, group.ID)
	if err != nil {
		t.Fatalf("delete album: %v", err)
	}
	if result.PurgedCount != 1 {
		t.Fatalf("sole reference gone, item must purge: got %d", result.PurgedCount)
	}
	if got := f.refCount(t, mediaID); got != -1 {
		t.Fatal("catalog row must be gone")
	}
	if used := f.usedBytes(t, uploaderID); used != 0 {
		t.Fatalf("expected refund after album delete, got %d", used)
	}
}

func TestDeleteMainAlbumRejected(t *testing.T) {
	f := newFixture(t)
	uploaderID, mainAlbum := f.seedUser(t, 10_000)

	_, err := f.svc.DeleteAlbum(context.Background(), uploaderID, mainAlbum)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := f.svc.RenameAlbum(context.Background(), uploaderID, mainAlbum, "new name"); err == nil {
		t.Fatal("main album must not be renamed")
	}
}
