// Package storage persists texts and paragraphs and stores generated images.
package storage

import (
	"context"
	"errors"

	"github.com/DekelUsach/Loomi-backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines text and paragraph persistence.
//
// Library texts are shared; user texts are per-owner copies that point at the
// library text they were created from. Paragraph inserts assign ids and the
// owning text id to the given slice in place.
type Store interface {
	CreateLibraryText(ctx context.Context, t *models.LibraryText) error
	InsertLibraryParagraphs(ctx context.Context, textID int64, ps []models.Paragraph) error
	GetLibraryText(ctx context.Context, id int64) (*models.LibraryText, error)
	ListLibraryTexts(ctx context.Context) ([]models.LibraryText, error)
	ListLibraryParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error)
	// FindLibraryTextBySource only matches shared texts, those with no owner.
	FindLibraryTextBySource(ctx context.Context, sourceHash string) (*models.LibraryText, error)

	CreateUserText(ctx context.Context, t *models.UserText) error
	InsertUserParagraphs(ctx context.Context, textID int64, ps []models.Paragraph) error
	GetUserText(ctx context.Context, id int64) (*models.UserText, error)
	ListUserTexts(ctx context.Context, ownerID string) ([]models.UserText, error)
	ListUserParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error)
	DeleteUserText(ctx context.Context, id int64) error

	Counts(ctx context.Context) (models.Counts, error)
	Close() error
}
