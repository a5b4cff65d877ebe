// Package storage implements attachment persistence on the local
// filesystem. The workflow core only ever holds references, never bytes.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/legalworks/docflow/internal/application/port"
)

// LocalAttachmentStore implements port.AttachmentStore on a base directory
type LocalAttachmentStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalAttachmentStore creates a new local attachment store
func NewLocalAttachmentStore(baseDir string, logger *zap.Logger) *LocalAttachmentStore {
	return &LocalAttachmentStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Store writes attachment bytes under the owner's directory and returns an
// opaque reference. The generated ID keeps original filenames from
// colliding within an owner.
func (s *LocalAttachmentStore) Store(ctx context.Context, data []byte, meta port.FileMetadata) (port.FileRef, error) {
	id := uuid.New().String()
	relPath := filepath.Join(meta.Owner, id+"_"+sanitizeFilename(meta.Filename))
	fullPath := filepath.Join(s.baseDir, relPath)

	if err := s.validatePath(fullPath); err != nil {
		return port.FileRef{}, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create attachment directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return port.FileRef{}, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return port.FileRef{}, fmt.Errorf("failed to write attachment: %w", err)
	}

	s.logger.Debug("Attachment stored",
		zap.String("ref", relPath),
		zap.Int("size", len(data)))

	return port.FileRef{ID: id, Path: relPath}, nil
}

// Copy duplicates an existing attachment under a new owner. Used when a
// discussion's attachments carry forward into an agreement overview.
func (s *LocalAttachmentStore) Copy(ctx context.Context, ref port.FileRef, newOwner string) (port.FileRef, error) {
	srcPath := filepath.Join(s.baseDir, ref.Path)
	if err := s.validatePath(srcPath); err != nil {
		return port.FileRef{}, err
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		s.logger.Error("Failed to read attachment for copy",
			zap.String("ref", ref.Path),
			zap.Error(err))
		return port.FileRef{}, fmt.Errorf("failed to read attachment: %w", err)
	}

	return s.Store(ctx, data, port.FileMetadata{
		Owner:    newOwner,
		Filename: filepath.Base(ref.Path),
	})
}

// sanitizeFilename strips path separators from a client-supplied filename
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" || name == "." {
		name = "attachment"
	}
	return name
}

// validatePath checks that the path stays within baseDir
func (s *LocalAttachmentStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// Verify interface compliance
var _ port.AttachmentStore = (*LocalAttachmentStore)(nil)
