package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nastyaeremenko/yatube/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidImage is returned for uploads that are not decodable images.
	ErrInvalidImage = errors.New("upload a valid image")

	errInvalidKey = errors.New("invalid object key")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type Image struct {
	ID          string
	Key         string
	URL         string
	ContentType string
}

type Service struct {
	db    db.Querier
	store Store
}

func NewService(db db.Querier, store Store) *Service {
	return &Service{db: db, store: store}
}

// SaveImage validates an uploaded file, writes it under posts/ and records it.
func (s *Service) SaveImage(ctx context.Context, userID string, fh *multipart.FileHeader) (Image, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExtensions[ext] {
		return Image{}, ErrInvalidImage
	}

	f, err := fh.Open()
	if err != nil {
		return Image{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	contentType, err := sniff(f)
	if err != nil {
		return Image{}, err
	}

	img := Image{
		ID:          uuid.NewString(),
		Key:         "posts/" + uuid.NewString() + ext,
		ContentType: contentType,
	}
	img.URL = s.store.URL(img.Key)

	if err := s.store.Put(ctx, img.Key, contentType, f); err != nil {
		return Image{}, err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, key, url, content_type)
		VALUES ($1,$2,$3,$4,$5)
	`, img.ID, userID, img.Key, img.URL, img.ContentType)
	if err != nil {
		if delErr := s.store.Delete(ctx, img.Key); delErr != nil {
			log.WithError(delErr).WithField("key", img.Key).Warn("orphaned upload")
		}
		return Image{}, err
	}
	return img, nil
}

// Discard removes an image whose owning post could not be saved.
func (s *Service) Discard(ctx context.Context, img Image) error {
	if err := s.store.Delete(ctx, img.Key); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM storage_objects WHERE id=$1`, img.ID)
	return err
}

// DiscardURL removes the recorded object published at url. URLs with no
// record are ignored.
func (s *Service) DiscardURL(ctx context.Context, url string) error {
	var img Image
	err := s.db.QueryRow(ctx, `
		DELETE FROM storage_objects WHERE url = $1 RETURNING id, key
	`, url).Scan(&img.ID, &img.Key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, img.Key)
}

func sniff(f io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return "", ErrInvalidImage
	}
	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrInvalidImage
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return contentType, nil
}
