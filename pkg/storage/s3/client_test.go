package s3

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	signerv4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type stubPresigner struct {
	putInputs  []*awss3.PutObjectInput
	getInputs  []*awss3.GetObjectInput
	getExpires []time.Duration
	err        error
}

func (s *stubPresigner) PresignPutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.PresignOptions)) (*signerv4.PresignedHTTPRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.putInputs = append(s.putInputs, in)
	return &signerv4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key}, nil
}

func (s *stubPresigner) PresignGetObject(_ context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*signerv4.PresignedHTTPRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	var opts awss3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	s.getInputs = append(s.getInputs, in)
	s.getExpires = append(s.getExpires, opts.Expires)
	return &signerv4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key}, nil
}

type stubObjects struct {
	headSize     int64
	headErr      error
	deleteCalls  []*awss3.DeleteObjectsInput
	deleteErr    error
	headRequests []string
}

func (s *stubObjects) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	s.headRequests = append(s.headRequests, *in.Key)
	if s.headErr != nil {
		return nil, s.headErr
	}
	return &awss3.HeadObjectOutput{ContentLength: aws.Int64(s.headSize)}, nil
}

func (s *stubObjects) DeleteObjects(_ context.Context, in *awss3.DeleteObjectsInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error) {
	s.deleteCalls = append(s.deleteCalls, in)
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	return &awss3.DeleteObjectsOutput{}, nil
}

func newTestClient(presigner presignAPI, objects objectAPI) *Client {
	return &Client{
		objects:         objects,
		presigner:       presigner,
		mediaBucket:     "media",
		thumbnailBucket: "thumbs",
		uploadExpiry:    5 * time.Minute,
		downloadExpiry:  10 * time.Minute,
		viewExpiry:      15 * time.Minute,
	}
}

func TestPresignMediaUploadSetsBucketAndContentType(t *testing.T) {
	t.Parallel()
	presigner := &stubPresigner{}
	client := newTestClient(presigner, &stubObjects{})

	url, err := client.PresignMediaUpload(context.Background(), "users/u/2026/01/x.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url == "" {
		t.Fatal("expected a url")
	}
	if len(presigner.putInputs) != 1 {
		t.Fatalf("expected one put presign, got %d", len(presigner.putInputs))
	}
	in := presigner.putInputs[0]
	if *in.Bucket != "media" {
		t.Fatalf("unexpected bucket %s", *in.Bucket)
	}
	if in.ContentType == nil || *in.ContentType != "image/jpeg" {
		t.Fatal("content type not propagated")
	}
}

func TestPresignThumbnailUploadTargetsThumbnailBucket(t *testing.T) {
	t.Parallel()
	presigner := &stubPresigner{}
	client := newTestClient(presigner, &stubObjects{})

	if _, err := client.PresignThumbnailUpload(context.Background(), "users/u/2026/01/x.jpg", "image/jpeg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *presigner.putInputs[0].Bucket != "thumbs" {
		t.Fatalf("unexpected bucket %s", *presigner.putInputs[0].Bucket)
	}
}

func TestPresignDownloadForcesAttachment(t *testing.T) {
	t.Parallel()
	presigner := &stubPresigner{}
	client := newTestClient(presigner, &stubObjects{})

	if _, err := client.PresignDownload(context.Background(), "users/u/x.jpg", "holiday.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := presigner.getInputs[0]
	if in.ResponseContentDisposition == nil || !strings.Contains(*in.ResponseContentDisposition, "attachment") {
		t.Fatal("expected attachment disposition")
	}
	if !strings.Contains(*in.ResponseContentDisposition, "holiday.jpg") {
		t.Fatal("expected filename in disposition")
	}
}

func TestPresignGetExpiriesPerPurpose(t *testing.T) {
	t.Parallel()
	presigner := &stubPresigner{}
	client := newTestClient(presigner, &stubObjects{})

	if _, err := client.PresignView(context.Background(), "users/u/x.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.PresignThumbnail(context.Background(), "users/u/x.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.PresignDownload(context.Background(), "users/u/x.jpg", "x.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := presigner.getExpires[0]; got != client.viewExpiry {
		t.Fatalf("view url must use the view expiry, got %s", got)
	}
	if got := presigner.getExpires[1]; got != client.viewExpiry {
		t.Fatalf("thumbnail url must use the view expiry, got %s", got)
	}
	if got := presigner.getExpires[2]; got != client.downloadExpiry {
		t.Fatalf("download url must use the download expiry, got %s", got)
	}
}

func TestHeadReturnsSize(t *testing.T) {
	t.Parallel()
	objects := &stubObjects{headSize: 1234}
	client := newTestClient(&stubPresigner{}, objects)

	size, err := client.Head(context.Background(), "users/u/x.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 1234 {
		t.Fatalf("expected size 1234, got %d", size)
	}
}

func TestHeadMissingObject(t *testing.T) {
	t.Parallel()
	objects := &stubObjects{headErr: &types.NotFound{}}
	client := newTestClient(&stubPresigner{}, objects)

	_, err := client.Head(context.Background(), "users/u/missing.jpg")
	if !errors.Is(err, ErrObjectMissing) {
		t.Fatalf("expected ErrObjectMissing, got %v", err)
	}
}

func TestDeleteBatchSkipsEmptyKeysAndChunks(t *testing.T) {
	t.Parallel()
	objects := &stubObjects{}
	client := newTestClient(&stubPresigner{}, objects)

	keys := make([]string, 0, deleteBatchMax+2)
	for i := 0; i < deleteBatchMax+1; i++ {
		keys = append(keys, "k")
	}
	keys = append(keys, "")

	if err := client.DeleteMediaObjects(context.Background(), keys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objects.deleteCalls) != 2 {
		t.Fatalf("expected 2 delete batches, got %d", len(objects.deleteCalls))
	}
	if got := len(objects.deleteCalls[0].Delete.Objects); got != deleteBatchMax {
		t.Fatalf("first batch should be full, got %d", got)
	}
	if got := len(objects.deleteCalls[1].Delete.Objects); got != 1 {
		t.Fatalf("second batch should hold the remainder, got %d", got)
	}
}

func TestDeleteBatchNoKeysNoCalls(t *testing.T) {
	t.Parallel()
	objects := &stubObjects{}
	client := newTestClient(&stubPresigner{}, objects)

	if err := client.DeleteThumbnailObjects(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objects.deleteCalls) != 0 {
		t.Fatalf("expected no delete calls, got %d", len(objects.deleteCalls))
	}
}
