// internal/services/storage_service.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/propaintco/proppaint-backend/internal/config"
	"github.com/propaintco/proppaint-backend/internal/models"
)

var (
	ErrFileNotFound       = errors.New("file not found")
	ErrFileTooLarge       = errors.New("file exceeds the maximum allowed size")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
)

const (
	maxUploadBytes = 25 * 1024 * 1024
	previewURLTTL  = 15 * time.Minute
)

var allowedUploadExts = []string{".jpg", ".jpeg", ".png", ".gif", ".pdf", ".heic"}

// StorageService keeps work-order photos and documents in S3 under
// {work_order_id}/{filename}. Without AWS credentials it runs in a local
// no-op mode so development does not need a bucket.
type StorageService struct {
	db       *gorm.DB
	s3Client *s3.S3
	config   *config.Config
}

func NewStorageService(db *gorm.DB, cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		return &StorageService{db: db, config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		db:       db,
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// Upload stores the file and records a JobFile row. The storage key is
// {work_order_id}/{filename}; the filename is prefixed with a short uuid so
// re-uploads of the same name never collide.
func (s *StorageService) Upload(job *models.Job, file multipart.File, header *multipart.FileHeader, uploadedBy *uuid.UUID) (*models.JobFile, error) {
	if header.Size > maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, allowedExt := range allowedUploadExts {
		if ext == allowedExt {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrFileTypeNotAllowed
	}

	if job.WorkOrder == nil {
		return nil, ErrWorkOrderNotFound
	}

	fileName := fmt.Sprintf("%s_%s", uuid.New().String()[:8], filepath.Base(header.Filename))
	key := fmt.Sprintf("%s/%s", job.WorkOrder.ID, fileName)
	contentType := header.Header.Get("Content-Type")

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if s.s3Client != nil {
		_, err = s.s3Client.PutObject(&s3.PutObjectInput{
			Bucket:        aws.String(s.config.AWS.S3Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(fileBytes),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(fileBytes))),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload to S3: %w", err)
		}
	} else {
		logrus.WithField("key", key).Debug("S3 not configured, skipping upload")
	}

	record := &models.JobFile{
		JobID:       job.ID,
		WorkOrderID: &job.WorkOrder.ID,
		FileName:    fileName,
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   int64(len(fileBytes)),
		UploadedBy:  uploadedBy,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to record file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id": job.ID,
		"key":    key,
		"size":   record.SizeBytes,
	}).Info("File uploaded")

	return record, nil
}

// List returns the stored files for a job, newest first.
func (s *StorageService) List(jobID uuid.UUID) ([]models.JobFile, error) {
	var files []models.JobFile
	if err := s.db.Where("job_id = ?", jobID).
		Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// PreviewURL returns a short-lived presigned GET URL for the stored object.
func (s *StorageService) PreviewURL(fileID uuid.UUID) (string, error) {
	var file models.JobFile
	if err := s.db.First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("database error: %w", err)
	}

	if s.s3Client == nil {
		return fmt.Sprintf("http://localhost:%s/uploads/%s", s.config.Server.Port, file.StorageKey), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(file.StorageKey),
	})
	url, err := req.Presign(previewURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

// DeleteFile removes the database row and the stored object.
func (s *StorageService) DeleteFile(fileID uuid.UUID) error {
	var file models.JobFile
	if err := s.db.First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := s.db.Delete(&file).Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	return s.Remove(file.StorageKey)
}

// Remove deletes the object from the bucket. No-op without S3.
func (s *StorageService) Remove(key string) error {
	if s.s3Client == nil {
		logrus.WithField("key", key).Debug("S3 not configured, skipping removal")
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}
