package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/reelproof/reelproof/internal/common"
	sc "github.com/reelproof/reelproof/internal/server/config"
	"github.com/reelproof/reelproof/internal/server/models"
	"github.com/reelproof/reelproof/internal/server/repositories/repomanager"
	"github.com/reelproof/reelproof/internal/server/storage"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// RecordMeta is the caller-supplied description of an expected upload.
type RecordMeta struct {
	FileName string
	FileSize int64
	MimeType string
	Category string
}

// RecordService owns the placeholder-record lifecycle: creation before any
// bytes arrive, chunk-by-chunk staging, finalization into object storage,
// and deletion of abandoned uploads.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	staging     *storage.Staging
	config      *sc.Config
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, staging *storage.Staging, config *sc.Config) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: m,
		staging:     staging,
		config:      config,
	}
}

func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("media/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Create registers a placeholder record in awaiting_upload state.
func (s *RecordService) Create(ctx context.Context, userID string, meta RecordMeta) (*models.MediaRecord, error) {
	if meta.FileName == "" || meta.FileSize <= 0 {
		return nil, fmt.Errorf("invalid file metadata: %w", common.ErrorInternal)
	}
	repo := s.repomanager.MediaRecords(s.db)
	rec := &models.MediaRecord{
		UserID:   userID,
		FileName: meta.FileName,
		FileSize: meta.FileSize,
		MimeType: meta.MimeType,
		Category: meta.Category,
	}
	return repo.Create(ctx, rec)
}

// Get returns the record if it belongs to userID; records of other users
// are indistinguishable from missing ones.
func (s *RecordService) Get(ctx context.Context, userID, recordID string) (*models.MediaRecord, error) {
	repo := s.repomanager.MediaRecords(s.db)
	rec, err := repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

// Offset reports the committed byte offset for an upload-eligible record.
func (s *RecordService) Offset(ctx context.Context, userID, recordID string) (int64, error) {
	rec, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return 0, err
	}
	if !rec.UploadEligible() {
		return 0, common.ErrRecordGone
	}
	return s.staging.Size(rec.ID)
}

// AppendChunk stages one chunk at the given offset and returns the new
// committed offset. When the staged size reaches the expected file size the
// record is finalized: the bytes are pushed to object storage and the record
// moves to uploaded state.
func (s *RecordService) AppendChunk(ctx context.Context, userID, recordID string, offset int64, data io.Reader) (int64, error) {
	rec, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return 0, err
	}
	if !rec.UploadEligible() {
		return 0, common.ErrRecordGone
	}

	committed, err := s.staging.Append(rec.ID, offset, data)
	if err != nil {
		if errors.Is(err, common.ErrOffsetMismatch) {
			return committed, err
		}
		return committed, fmt.Errorf("staging chunk: %w", err)
	}
	if committed > rec.FileSize {
		return committed, fmt.Errorf("staged %d bytes exceeds declared size %d", committed, rec.FileSize)
	}

	repo := s.repomanager.MediaRecords(s.db)
	if committed < rec.FileSize {
		if err := repo.UpdateProgress(ctx, rec.ID, committed, models.StateUploading); err != nil {
			return committed, err
		}
		return committed, nil
	}

	if err := s.finalize(ctx, rec); err != nil {
		return committed, err
	}
	return committed, nil
}

// finalize pushes the fully staged file to object storage, marks the record
// uploaded, and drops the staged copy.
func (s *RecordService) finalize(ctx context.Context, rec *models.MediaRecord) error {
	staged, err := s.staging.Open(rec.ID)
	if err != nil {
		return err
	}
	defer staged.Close()

	client, err := s.getS3Client()
	if err != nil {
		return err
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey()

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          staged,
		ContentType:   &rec.MimeType,
		ContentLength: aws.Int64(rec.FileSize),
	}); err != nil {
		return fmt.Errorf("pushing to object storage: %w", err)
	}

	repo := s.repomanager.MediaRecords(s.db)
	if err := repo.Finalize(ctx, rec.ID, key); err != nil {
		return err
	}
	return s.staging.Remove(rec.ID)
}

// Delete removes an abandoned record plus its staged bytes, and the stored
// object if the upload had already been finalized.
func (s *RecordService) Delete(ctx context.Context, userID, recordID string) error {
	rec, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return err
	}

	if rec.StorageKey != "" {
		client, cerr := s.getS3Client()
		if cerr != nil {
			return cerr
		}
		bucket := s.config.S3Bucket
		if _, derr := deleteObject(client, ctx, &s3.DeleteObjectInput{
			Bucket: &bucket,
			Key:    &rec.StorageKey,
		}); derr != nil {
			return fmt.Errorf("deleting stored object: %w", derr)
		}
	}

	repo := s.repomanager.MediaRecords(s.db)
	if err := repo.Delete(ctx, rec.ID); err != nil {
		return err
	}
	return s.staging.Remove(rec.ID)
}

// DownloadURL returns a time-limited presigned GET for an uploaded record.
func (s *RecordService) DownloadURL(ctx context.Context, userID, recordID string) (string, error) {
	rec, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return "", err
	}
	if rec.StorageKey == "" {
		return "", common.ErrRecordNotPending
	}

	client, err := s.getS3Client()
	if err != nil {
		return "", err
	}
	presignClient := newS3PresignClient(client)

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &rec.StorageKey,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *RecordService) getS3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}
