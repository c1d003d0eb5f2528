package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storyforest/api/internal/story"
)

const bookColumns = `id, title, description, cover_image, is_active, created_at`

func scanBook(row scanner) (story.Book, error) {
	var book story.Book
	err := row.Scan(&book.ID, &book.Title, &book.Description, &book.CoverImage, &book.Active, &book.CreatedAt)
	return book, err
}

func getBook(ctx context.Context, q queryer, bookID int64, lock string) (story.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id=$1`
	if lock != "" {
		query += " FOR " + lock
	}
	book, err := scanBook(q.QueryRowContext(ctx, query, bookID))
	if errors.Is(err, sql.ErrNoRows) {
		return story.Book{}, story.ErrBookNotFound
	}
	if err != nil {
		return story.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (s *PostgresStore) CreateBook(ctx context.Context, book story.Book) (story.Book, error) {
	created, err := scanBook(s.db.QueryRowContext(ctx, `
		INSERT INTO books (title, description, cover_image, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+bookColumns,
		book.Title, book.Description, book.CoverImage, book.Active))
	if err != nil {
		return story.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetBook(ctx context.Context, bookID int64) (story.Book, error) {
	return getBook(ctx, s.db, bookID, "")
}

// ListBooks returns books newest first. Closed books are included only when
// includeInactive is set.
func (s *PostgresStore) ListBooks(ctx context.Context, includeInactive bool, page Page) ([]story.Book, error) {
	page = page.normalized()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE is_active OR $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, includeInactive, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]story.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// UpdateBook locks the book row, lets apply mutate it and writes it back.
func (s *PostgresStore) UpdateBook(ctx context.Context, bookID int64, apply func(*story.Book) error) (story.Book, error) {
	var updated story.Book
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		book, err := getBook(ctx, tx, bookID, "UPDATE")
		if err != nil {
			return err
		}
		if err := apply(&book); err != nil {
			return err
		}
		updated, err = scanBook(tx.QueryRowContext(ctx, `
			UPDATE books
			SET title=$2, description=$3, cover_image=$4, is_active=$5, updated_at=NOW()
			WHERE id=$1
			RETURNING `+bookColumns,
			book.ID, book.Title, book.Description, book.CoverImage, book.Active))
		if err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		return nil
	})
	return updated, err
}

// DeleteBook removes an empty book. Books that still hold nodes are kept
// and ErrBookNotEmpty is returned.
func (s *PostgresStore) DeleteBook(ctx context.Context, bookID int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := getBook(ctx, tx, bookID, "UPDATE"); err != nil {
			return err
		}
		var hasNodes bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE book_id=$1)`, bookID).Scan(&hasNodes); err != nil {
			return fmt.Errorf("check book nodes: %w", err)
		}
		if hasNodes {
			return ErrBookNotEmpty
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id=$1`, bookID); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
}
