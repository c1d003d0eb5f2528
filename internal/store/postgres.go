package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storyforest/api/internal/story"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, email, avatar, role, is_active, is_verified, created_at`

func scanUser(row scanner) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Avatar, &user.Role, &user.IsActive, &user.IsVerified, &user.CreatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.Role == "" {
		user.Role = "writer"
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, avatar, role, is_active, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		user.Username, user.Email, user.Avatar, user.Role, user.IsActive, user.IsVerified)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) AuthorsByID(ctx context.Context, ids []int64) (map[int64]story.Author, error) {
	authors := make(map[int64]story.Author, len(ids))
	if len(ids) == 0 {
		return authors, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, avatar FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var author story.Author
		if err := rows.Scan(&author.ID, &author.Username, &author.Avatar); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors[author.ID] = author
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authors: %w", err)
	}
	return authors, nil
}

// UserStats counts the author's nodes inside scope and the likes they hold.
func (s *PostgresStore) UserStats(ctx context.Context, authorID int64, scope story.Scope) (UserStats, error) {
	filter, args := scopeFilter(scope, 2)
	var stats UserStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(n.likes_count), 0)
		FROM nodes n
		WHERE n.author_id=$1 AND `+filter,
		append([]any{authorID}, args...)...).Scan(&stats.NodesCount, &stats.TotalLikes)
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

// Node rows.

const nodeColumns = `n.id, n.book_id, n.parent_id, n.author_id, n.title, n.content, n.summary, n.branch_name,
	n.status, n.depth, n.likes_count, n.created_at, n.updated_at, n.published_at`

// treeColumns leaves out the body text for listings.
const treeColumns = `n.id, n.book_id, n.parent_id, n.author_id, n.title, '' AS content, n.summary, n.branch_name,
	n.status, n.depth, n.likes_count, n.created_at, n.updated_at, n.published_at`

const authorColumns = `u.id, u.username, u.avatar`

func nodeDest(node *story.Node, parentID *sql.NullInt64, publishedAt *sql.NullTime) []any {
	return []any{
		&node.ID, &node.BookID, parentID, &node.AuthorID, &node.Title, &node.Content, &node.Summary, &node.BranchName,
		&node.Status, &node.Depth, &node.LikesCount, &node.CreatedAt, &node.UpdatedAt, publishedAt,
	}
}

func fillNullable(node *story.Node, parentID sql.NullInt64, publishedAt sql.NullTime) {
	if parentID.Valid {
		id := parentID.Int64
		node.ParentID = &id
	}
	if publishedAt.Valid {
		at := publishedAt.Time
		node.PublishedAt = &at
	}
}

func scanNode(row scanner) (story.Node, error) {
	var (
		node        story.Node
		parentID    sql.NullInt64
		publishedAt sql.NullTime
	)
	if err := row.Scan(nodeDest(&node, &parentID, &publishedAt)...); err != nil {
		return story.Node{}, err
	}
	fillNullable(&node, parentID, publishedAt)
	return node, nil
}

func scanItem(row scanner) (story.Item, error) {
	var (
		item        story.Item
		parentID    sql.NullInt64
		publishedAt sql.NullTime
	)
	dest := append(nodeDest(&item.Node, &parentID, &publishedAt), &item.Author.ID, &item.Author.Username, &item.Author.Avatar)
	if err := row.Scan(dest...); err != nil {
		return story.Item{}, err
	}
	fillNullable(&item.Node, parentID, publishedAt)
	return item, nil
}

func collectItems(rows *sql.Rows, what string) ([]story.Item, error) {
	defer rows.Close()
	items := make([]story.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return items, nil
}

// scopeFilter renders a visibility scope as a WHERE fragment whose
// placeholders start at $next.
func scopeFilter(scope story.Scope, next int) (string, []any) {
	if scope.All {
		return "TRUE", nil
	}
	var owner any
	if scope.OwnerID != nil {
		owner = *scope.OwnerID
	}
	clause := fmt.Sprintf("(n.status = ANY($%d) OR n.author_id = $%d)", next, next+1)
	return clause, []any{scope.StatusStrings(), owner}
}

func lockClause(mode string) string {
	if mode == "" {
		return ""
	}
	return " FOR " + mode + " OF n"
}

func getNode(ctx context.Context, q queryer, nodeID int64, lock string) (story.Node, error) {
	node, err := scanNode(q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes n WHERE n.id=$1`+lockClause(lock), nodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return story.Node{}, story.ErrNodeNotFound
	}
	if err != nil {
		return story.Node{}, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

func getItem(ctx context.Context, q queryer, nodeID int64) (story.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`, `+authorColumns+`
		FROM nodes n
		JOIN users u ON u.id = n.author_id
		WHERE n.id=$1
	`, nodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return story.Item{}, story.ErrNodeNotFound
	}
	if err != nil {
		return story.Item{}, fmt.Errorf("get node item: %w", err)
	}
	return item, nil
}

// NodeByID reads one node without visibility filtering.
func (s *PostgresStore) NodeByID(ctx context.Context, nodeID int64) (story.Node, error) {
	return getNode(ctx, s.db, nodeID, "")
}

// ItemByID reads one node with its author.
func (s *PostgresStore) ItemByID(ctx context.Context, nodeID int64) (story.Item, error) {
	return getItem(ctx, s.db, nodeID)
}

func now() time.Time {
	return time.Now().UTC()
}
