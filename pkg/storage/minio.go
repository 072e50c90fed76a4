package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage keeps files in a MinIO (or S3-compatible) bucket.
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig holds MinIO storage settings.
type MinioConfig struct {
	Endpoint  string // server endpoint
	AccessKey string // access key ID
	SecretKey string // secret access key
	UseSSL    bool   // use TLS
	Bucket    string // bucket name
}

// NewMinioStorage creates a MinIO-backed storage, creating the bucket
// when missing.
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save uploads the file under a fresh UUID.
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	now := time.Now()
	objectName := fmt.Sprintf("%04d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), id, ext)
	contentType := getMimeType(filename)

	// size -1 streams the upload without buffering the whole file
	info, err := s.client.PutObject(
		context.Background(),
		s.bucketName,
		objectName,
		reader,
		-1,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     info.Size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get returns the file content.
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	objectName, err := s.findObjectByID(id)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Delete removes the file.
func (s *MinioStorage) Delete(id string) error {
	objectName, err := s.findObjectByID(id)
	if err != nil {
		return err
	}

	err = s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns all stored files.
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}

		fileName := filepath.Base(object.Key)
		files = append(files, FileInfo{
			ID:       strings.TrimSuffix(fileName, filepath.Ext(fileName)),
			Name:     fileName,
			Size:     object.Size,
			MimeType: getMimeType(fileName),
			Path:     object.Key,
		})
	}

	return files, nil
}

// Exists reports whether the file is stored.
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.findObjectByID(id)
	if err != nil {
		if err == ErrFileNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findObjectByID scans the bucket for the object with this ID.
func (s *MinioStorage) findObjectByID(id string) (string, error) {
	files, err := s.List()
	if err != nil {
		return "", err
	}

	for _, file := range files {
		if file.ID == id {
			return file.Path, nil
		}
	}
	return "", ErrFileNotFound
}
