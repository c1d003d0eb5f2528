package app

import (
	"context"
	"strings"

	"storyforest/api/internal/rbac"
	"storyforest/api/internal/story"
)

type CreateBookInput struct {
	Title       string `json:"title" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=2000"`
	CoverImage  string `json:"coverImage" validate:"omitempty,url,max=500"`
	Active      *bool  `json:"active"`
}

type UpdateBookInput struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=100"`
	Description *string `json:"description" validate:"omitnil,max=2000"`
	CoverImage  *string `json:"coverImage" validate:"omitnil,max=500,optional_url"`
	Active      *bool   `json:"active"`
}

func (s *Service) CreateBook(ctx context.Context, session Session, in CreateBookInput) (story.Book, error) {
	if err := session.Actor().CheckAccount(rbac.ActionManageBooks); err != nil {
		return story.Book{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return s.store.CreateBook(ctx, story.Book{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Active:      active,
	})
}

// UpdateBook applies in under the book's row lock, so toggling the active
// flag serializes with node creation in that book.
func (s *Service) UpdateBook(ctx context.Context, session Session, bookID int64, in UpdateBookInput) (story.Book, error) {
	actor := session.Actor()
	if err := actor.CheckAccount(rbac.ActionManageBooks); err != nil {
		return story.Book{}, err
	}
	var toggled bool
	book, err := s.store.UpdateBook(ctx, bookID, func(book *story.Book) error {
		if in.Title != nil {
			book.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			book.Description = strings.TrimSpace(*in.Description)
		}
		if in.CoverImage != nil {
			book.CoverImage = strings.TrimSpace(*in.CoverImage)
		}
		if in.Active != nil && *in.Active != book.Active {
			book.Active = *in.Active
			toggled = true
		}
		return nil
	})
	if err != nil {
		return story.Book{}, err
	}
	if toggled {
		s.logger.InfoContext(ctx, "book availability changed", "book_id", book.ID, "active", book.Active, "admin_id", actor.UserID)
	}
	return book, nil
}

// ListBooks lists books newest first. Only administrators see closed books
// here; a closed book stays readable by id.
func (s *Service) ListBooks(ctx context.Context, session Session, skip, limit int) ([]story.Book, error) {
	return s.store.ListBooks(ctx, session.Viewer().IsAdmin(), page(skip, limit))
}

func (s *Service) GetBook(ctx context.Context, bookID int64) (story.Book, error) {
	return s.store.GetBook(ctx, bookID)
}

func (s *Service) DeleteBook(ctx context.Context, session Session, bookID int64) error {
	actor := session.Actor()
	if err := actor.CheckAccount(rbac.ActionManageBooks); err != nil {
		return err
	}
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "book deleted", "book_id", bookID, "admin_id", actor.UserID)
	return nil
}
