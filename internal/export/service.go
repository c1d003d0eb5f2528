package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storyforest/api/internal/story"
)

// Service renders resolved reading paths and optionally archives them.
type Service struct {
	archive   Archiver
	logger    *slog.Logger
	renderPDF func(ctx context.Context, html string) ([]byte, error)
	now       func() time.Time
}

// NewService creates an export service. archive may be nil.
func NewService(archive Archiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		archive:   archive,
		logger:    logger,
		renderPDF: renderPDF,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportPath renders path, ordered root first, in the requested format. A
// failed archive upload is logged and does not fail the export.
func (s *Service) ExportPath(ctx context.Context, bookTitle string, path []story.Item, format Format) (*Result, error) {
	if len(path) == 0 {
		return nil, story.ErrNodeNotFound
	}
	leaf := path[len(path)-1]

	data := TemplateData{
		Title:       leaf.Title,
		BookTitle:   bookTitle,
		GeneratedAt: s.now(),
		Chapters:    make([]Chapter, 0, len(path)),
	}
	for _, item := range path {
		data.Chapters = append(data.Chapters, Chapter{
			Title:       item.Title,
			BranchName:  item.BranchName,
			Author:      item.Author.Username,
			Depth:       item.Depth,
			Content:     item.Content,
			PublishedAt: item.PublishedAt,
		})
	}

	html, err := RenderPathHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	result := &Result{
		Filename: sanitizeFilename(leaf.Title) + "." + string(format),
		MimeType: format.mimeType(),
	}
	switch format {
	case FormatHTML:
		result.Data = []byte(html)
	case FormatPDF:
		if result.Data, err = s.renderPDF(ctx, html); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if s.archive != nil {
		key := fmt.Sprintf("paths/%d/%s.%s", leaf.ID, uuid.NewString(), format)
		if err := s.archive.Put(ctx, key, result.MimeType, result.Data); err != nil {
			s.logger.WarnContext(ctx, "archive export", "node_id", leaf.ID, "error", err)
		} else {
			result.ArchiveKey = key
		}
	}
	return result, nil
}
