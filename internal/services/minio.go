package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

const productImagePrefix = "products/"

// lecture publique des images produits uniquement
const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/products/*"]}]}`

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedImage est renvoyée pour un type MIME non accepté
var ErrUnsupportedImage = errors.New("unsupported image type")

// ImageStore range les images produits dans un bucket MinIO
type ImageStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	log     *zap.Logger
}

func NewImageStore(client *minio.Client, cfg config.MinIOSettings, log *zap.Logger) *ImageStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageStore{client: client, bucket: cfg.Bucket, baseURL: cfg.ImageBaseURL(), log: log}
}

// EnsureBucket crée le bucket au démarrage s'il n'existe pas
func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("minio make bucket: %w", err)
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, fmt.Sprintf(publicReadPolicy, s.bucket)); err != nil {
		return fmt.Errorf("minio bucket policy: %w", err)
	}
	s.log.Info("🪣 Bucket MinIO créé", zap.String("bucket", s.bucket))
	return nil
}

// Upload envoie l'image sous products/{uuid}.{ext} et retourne son URL publique
func (s *ImageStore) Upload(ctx context.Context, img models.ImageUpload) (string, error) {
	key, err := imageKey(img)
	if err != nil {
		return "", err
	}

	f, err := img.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, s.bucket, key, f, img.Size,
		minio.PutObjectOptions{ContentType: img.ContentType})
	if err != nil {
		return "", fmt.Errorf("minio put object: %w", err)
	}

	s.log.Debug("📤 Image envoyée", zap.String("key", key), zap.Int64("size", img.Size))
	return s.baseURL + "/" + key, nil
}

// Delete supprime l'objet désigné par une URL produite par Upload.
// Une URL étrangère au bucket est ignorée.
func (s *ImageStore) Delete(ctx context.Context, imageURL string) error {
	key, ok := s.objectKey(imageURL)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object: %w", err)
	}
	return nil
}

func (s *ImageStore) objectKey(imageURL string) (string, bool) {
	key, ok := strings.CutPrefix(imageURL, s.baseURL+"/")
	if !ok || !strings.HasPrefix(key, productImagePrefix) {
		return "", false
	}
	return key, true
}

func imageKey(img models.ImageUpload) (string, error) {
	ext, ok := allowedImageTypes[strings.ToLower(img.ContentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, img.ContentType)
	}
	if fromName := strings.ToLower(path.Ext(img.Filename)); fromName == ".jpeg" || fromName == ext {
		ext = fromName
	}
	return productImagePrefix + uuid.NewString() + ext, nil
}
