package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/fileid"
	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/storage"
)

// LibraryExtensions are the file types imported from library directories.
var LibraryExtensions = []string{".pdf", ".docx"}

// ImportLibraryFile ingests the file at path as a shared library text with no
// owner. Files whose content is already stored are skipped, so re-importing a
// directory or renaming a file does not duplicate texts.
func (s *Service) ImportLibraryFile(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !extensionAllowed(filepath.Ext(absPath), LibraryExtensions) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	existing, err := s.store.FindLibraryTextBySource(ctx, fileid.ContentID(content))
	switch {
	case err == nil:
		s.logger.Debug("library file already imported",
			zap.String("path", absPath), zap.Int64("library_text_id", existing.ID))
		return &Result{
			DocumentID:    existing.ID,
			LibraryTextID: existing.ID,
			StoryID:       models.LibraryStoryID(existing.ID),
			Title:         existing.Title,
			Skipped:       true,
		}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("lookup library text: %w", err)
	}

	base := filepath.Base(absPath)
	res, err := s.Upload(ctx, Upload{
		Content:    content,
		FileName:   base,
		Title:      titleFromFileName(base),
		SourcePath: absPath,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("library file imported", zap.String("path", absPath), zap.Int64("library_text_id", res.LibraryTextID))
	return res, nil
}

// ImportDirectory walks dir and imports each library file in it. Files that
// fail are logged and skipped. It returns the number of newly stored texts.
func (s *Service) ImportDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensionAllowed(filepath.Ext(path), LibraryExtensions) {
			return nil
		}
		res, err := s.ImportLibraryFile(ctx, path)
		if err != nil {
			s.logger.Warn("library import failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !res.Skipped {
			n++
		}
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// titleFromFileName turns "el_zorro-y-el_gato.pdf" into "el zorro y el gato".
func titleFromFileName(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
}
