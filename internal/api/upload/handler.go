package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/services/ingest"
	"rag-chatbot/pkg/apperror"
	"rag-chatbot/pkg/apperror/status"
	"rag-chatbot/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v3"
)

var contentTypes = map[string]string{
	".txt":      "text/plain; charset=utf-8",
	".md":       "text/markdown; charset=utf-8",
	".markdown": "text/markdown; charset=utf-8",
	".json":     "application/json",
	".pdf":      "application/pdf",
}

// FileIngester chunks and writes uploaded files.
type FileIngester interface {
	IngestFiles(ctx context.Context, files []ingest.File, progress ingest.Progress) (ingest.Report, error)
}

// Archive is the subset of the S3 client used to keep a copy of each upload.
type Archive interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type uploadResponse struct {
	File     string        `json:"file"`
	SHA256   string        `json:"sha256"`
	Archived string        `json:"archived,omitempty"`
	Report   ingest.Report `json:"report"`
}

type Handler struct {
	ingester FileIngester
	archive  Archive
	bucket   string
	timeout  time.Duration
}

// NewHandler builds the upload handler. Uploads are archived to bucket when
// both archive and bucket are set.
func NewHandler(ingester FileIngester, archive Archive, bucket string, timeout time.Duration) *Handler {
	return &Handler{ingester: ingester, archive: archive, bucket: strings.TrimSpace(bucket), timeout: timeout}
}

func (h *Handler) HandleUpload(c fiber.Ctx) error {
	// Parse multipart file
	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentsMissingFile, "file is required")
	}
	if fh == nil || fh.Size == 0 {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentsMissingFile, "empty file")
	}
	name := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	if _, ok := contentTypes[ext]; !ok {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentsUnsupportedFormat,
			fmt.Sprintf("unsupported file type %q, expected .txt, .md, .json or .pdf", ext))
	}

	file, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentsMissingFile, "cannot open file")
	}
	defer file.Close()

	// Hash while reading
	hasher := sha256.New()
	data, err := io.ReadAll(io.TeeReader(file, hasher))
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.DocumentsInternal, err))
	}
	shaHex := hex.EncodeToString(hasher.Sum(nil))

	ctx := c.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	// same-named uploads with different content get distinct sources
	uri := fmt.Sprintf("upload://%s/%s", shaHex[:12], name)
	var archived string
	if h.archive != nil && h.bucket != "" {
		archived, err = h.storeToS3(ctx, data, shaHex, ext)
		if err != nil {
			return apperror.InternalError(config.ModuleUpload, c, status.New(status.DocumentsArchiveFailed, err))
		}
		uri = archived
	}

	report, err := h.ingester.IngestFiles(ctx, []ingest.File{{URI: uri, Name: name, Data: data}}, nil)
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.DocumentsIngestFailed, err))
	}
	if report.Documents == 0 {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentsInvalidDocument, "file contains no extractable text")
	}

	return apperror.Success(config.ModuleUpload, c, apperror.FiberSuccessMessage{
		Code:    status.OK,
		Message: "File uploaded successfully",
		Data: uploadResponse{
			File:     name,
			SHA256:   shaHex,
			Archived: archived,
			Report:   report,
		},
	})
}

func (h *Handler) storeToS3(ctx context.Context, data []byte, shaHex, ext string) (string, error) {
	key := fmt.Sprintf("documents/%s%s", shaHex, ext)
	_, err := h.archive.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypes[ext]),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", h.bucket, key), nil
}

// EnsureBucket creates bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, archive Archive, bucket string) error {
	if _, err := archive.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	_, err := archive.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return fmt.Errorf("%v: create bucket %s: %w", config.ModuleS3, bucket, err)
		}
	}
	logger.Info("%v: bucket %s ready", config.ModuleS3, bucket)
	return nil
}
