package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"storyforest/api/internal/config"
	"storyforest/api/internal/notify"
	"storyforest/api/internal/store"
	"storyforest/api/internal/story"
)

// fakeStore keeps the whole forest in memory. Compound operations hold mu
// for their duration, standing in for the row locks of the real store.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]store.User
	books    map[int64]story.Book
	nodes    map[int64]story.Node
	likes    map[[2]int64]bool
	comments []store.Comment
	notes    []notify.Notification

	pingFn               func(context.Context) error
	insertNotificationFn func(context.Context, notify.Notification) (notify.Notification, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]store.User{},
		books: map[int64]story.Book{},
		nodes: map[int64]story.Node{},
		likes: map[[2]int64]bool{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addUser(username, role string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := store.User{ID: f.id(), Username: username, Role: role, IsActive: true, IsVerified: true}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addBook(title string, active bool) story.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := story.Book{ID: f.id(), Title: title, Active: active, CreatedAt: time.Now()}
	f.books[b.ID] = b
	return b
}

func (f *fakeStore) notifications() []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification(nil), f.notes...)
}

func (f *fakeStore) item(n story.Node) story.Item {
	return story.Item{Node: n, Author: f.users[n.AuthorID].Author()}
}

func (f *fakeStore) sortedNodes() []story.Node {
	out := make([]story.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) AuthorsByID(_ context.Context, ids []int64) (map[int64]story.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]story.Author{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u.Author()
		}
	}
	return out, nil
}

func (f *fakeStore) UserStats(_ context.Context, authorID int64, scope story.Scope) (store.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats store.UserStats
	for _, n := range f.nodes {
		if n.AuthorID == authorID && scope.Allows(n.Status, n.AuthorID) {
			stats.NodesCount++
			stats.TotalLikes += n.LikesCount
		}
	}
	return stats, nil
}

func (f *fakeStore) NodeByID(_ context.Context, id int64) (story.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return story.Node{}, story.ErrNodeNotFound
	}
	return n, nil
}

func (f *fakeStore) ItemByID(_ context.Context, id int64) (story.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return story.Item{}, story.ErrNodeNotFound
	}
	return f.item(n), nil
}

func (f *fakeStore) CreateBook(_ context.Context, b story.Book) (story.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.id()
	b.CreatedAt = time.Now()
	f.books[b.ID] = b
	return b, nil
}

func (f *fakeStore) GetBook(_ context.Context, id int64) (story.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return story.Book{}, story.ErrBookNotFound
	}
	return b, nil
}

func (f *fakeStore) ListBooks(_ context.Context, includeInactive bool, _ store.Page) ([]story.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []story.Book
	for _, b := range f.books {
		if b.Active || includeInactive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateBook(_ context.Context, id int64, apply func(*story.Book) error) (story.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return story.Book{}, story.ErrBookNotFound
	}
	if err := apply(&b); err != nil {
		return story.Book{}, err
	}
	f.books[id] = b
	return b, nil
}

func (f *fakeStore) DeleteBook(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.books[id]; !ok {
		return story.ErrBookNotFound
	}
	for _, n := range f.nodes {
		if n.BookID == id {
			return store.ErrBookNotEmpty
		}
	}
	delete(f.books, id)
	return nil
}

func (f *fakeStore) CreateNode(_ context.Context, draft story.Draft, plan func(*story.Book, *story.Node) (story.Node, error)) (story.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bookRef *story.Book
	if b, ok := f.books[draft.BookID]; ok {
		bookRef = &b
	}
	var parentRef *story.Node
	if draft.ParentID != nil {
		if p, ok := f.nodes[*draft.ParentID]; ok {
			parentRef = &p
		}
	}
	node, err := plan(bookRef, parentRef)
	if err != nil {
		return story.Item{}, err
	}
	node.ID = f.id()
	f.nodes[node.ID] = node
	return f.item(node), nil
}

func (f *fakeStore) ListBookItems(_ context.Context, bookID int64, scope story.Scope) ([]story.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []story.Item
	for _, n := range f.sortedNodes() {
		if n.BookID == bookID && scope.Allows(n.Status, n.AuthorID) {
			out = append(out, f.item(n))
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserItems(_ context.Context, authorID int64, scope story.Scope, status *story.Status, _ store.Page) ([]story.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []story.Item
	for _, n := range f.sortedNodes() {
		if n.AuthorID != authorID || !scope.Allows(n.Status, n.AuthorID) {
			continue
		}
		if status != nil && n.Status != *status {
			continue
		}
		// listings carry no body text, like the SQL projection
		n.Content = ""
		out = append(out, f.item(n))
	}
	return out, nil
}

func (f *fakeStore) ListPendingItems(_ context.Context, _ store.Page) ([]story.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []story.Item
	for _, n := range f.sortedNodes() {
		if n.Status == story.StatusPending {
			out = append(out, f.item(n))
		}
	}
	return out, nil
}

func (f *fakeStore) AuditNode(
	ctx context.Context,
	id int64,
	decide func(story.Node) (story.Transition, error),
	notice func(story.Node, story.Transition) *notify.Notification,
) (story.Item, story.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[id]
	if !ok {
		return story.Item{}, story.Transition{}, story.ErrNodeNotFound
	}
	tr, err := decide(node)
	if err != nil {
		return story.Item{}, story.Transition{}, err
	}
	if tr.Changed() {
		tr.Apply(&node, time.Now())
		if n := notice(node, tr); n != nil {
			if err := f.emitLocked(ctx, *n); err != nil {
				return story.Item{}, story.Transition{}, err
			}
		}
		f.nodes[id] = node
	}
	return f.item(node), tr, nil
}

func (f *fakeStore) EditNode(_ context.Context, id int64, apply func(*story.Node) error) (story.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[id]
	if !ok {
		return story.Item{}, story.ErrNodeNotFound
	}
	if err := apply(&node); err != nil {
		return story.Item{}, err
	}
	f.nodes[id] = node
	return f.item(node), nil
}

func (f *fakeStore) DeleteNode(_ context.Context, id int64, check func(story.Node, bool) error) (story.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[id]
	if !ok {
		return story.Node{}, story.ErrNodeNotFound
	}
	hasChildren := false
	for _, n := range f.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			hasChildren = true
		}
	}
	if err := check(node, hasChildren); err != nil {
		return story.Node{}, err
	}
	delete(f.nodes, id)
	return node, nil
}

func (f *fakeStore) ToggleLike(
	ctx context.Context,
	userID, nodeID int64,
	check func(story.Node) error,
	notice func(story.Node) *notify.Notification,
) (store.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[nodeID]
	if !ok {
		return store.LikeResult{}, story.ErrNodeNotFound
	}
	if err := check(node); err != nil {
		return store.LikeResult{}, err
	}
	key := [2]int64{userID, nodeID}
	result := store.LikeResult{Action: store.Unliked}
	if f.likes[key] {
		delete(f.likes, key)
	} else {
		if n := notice(node); n != nil {
			if err := f.emitLocked(ctx, *n); err != nil {
				return store.LikeResult{}, err
			}
		}
		f.likes[key] = true
		result.Action = store.Liked
	}
	count := 0
	for k := range f.likes {
		if k[1] == nodeID {
			count++
		}
	}
	node.LikesCount = count
	f.nodes[nodeID] = node
	result.LikesCount = count
	return result, nil
}

func (f *fakeStore) HasLiked(_ context.Context, userID, nodeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[[2]int64{userID, nodeID}], nil
}

func (f *fakeStore) CreateComment(
	ctx context.Context,
	userID, nodeID int64,
	content string,
	check func(story.Node) error,
	notice func(story.Node, int64) *notify.Notification,
) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[nodeID]
	if !ok {
		return store.Comment{}, story.ErrNodeNotFound
	}
	if err := check(node); err != nil {
		return store.Comment{}, err
	}
	c := store.Comment{ID: f.id(), NodeID: nodeID, Author: f.users[userID].Author(), Content: content, CreatedAt: time.Now()}
	if n := notice(node, c.ID); n != nil {
		if err := f.emitLocked(ctx, *n); err != nil {
			return store.Comment{}, err
		}
	}
	f.comments = append(f.comments, c)
	return c, nil
}

func (f *fakeStore) ListComments(_ context.Context, nodeID int64, _ store.Page) ([]store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Comment
	for _, c := range f.comments {
		if c.NodeID == nodeID {
			out = append(out, c)
		}
	}
	return out, nil
}

type lockedSink struct{ f *fakeStore }

func (s lockedSink) InsertNotification(ctx context.Context, n notify.Notification) (notify.Notification, error) {
	return s.f.insertLocked(ctx, n)
}

// emitLocked mirrors the store's in-transaction fan-out.
func (f *fakeStore) emitLocked(ctx context.Context, n notify.Notification) error {
	_, err := notify.Emit(ctx, lockedSink{f}, n)
	return err
}

func (f *fakeStore) insertLocked(ctx context.Context, n notify.Notification) (notify.Notification, error) {
	if f.insertNotificationFn != nil {
		return f.insertNotificationFn(ctx, n)
	}
	n.ID = f.id()
	n.CreatedAt = time.Now()
	f.notes = append(f.notes, n)
	return n, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n notify.Notification) (notify.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(ctx, n)
}

func (f *fakeStore) ListNotifications(_ context.Context, receiverID int64, unreadOnly bool, _ store.Page) ([]store.NotificationItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.NotificationItem
	for i := len(f.notes) - 1; i >= 0; i-- {
		n := f.notes[i]
		if n.ReceiverID != receiverID || (unreadOnly && n.IsRead) {
			continue
		}
		item := store.NotificationItem{Notification: n}
		if n.SenderID != nil {
			if u, ok := f.users[*n.SenderID]; ok {
				sender := u.Author()
				item.Sender = &sender
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeStore) UnreadCount(_ context.Context, receiverID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notes {
		if n.ReceiverID == receiverID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) MarkAllRead(_ context.Context, receiverID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for i := range f.notes {
		if f.notes[i].ReceiverID == receiverID && !f.notes[i].IsRead {
			f.notes[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// recordingPublisher captures notifications published after commit.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n notify.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *recordingPublisher) published() []notify.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Notification(nil), p.sent...)
}

const testSecret = "test-secret"

func testConfig() config.Config {
	return config.Config{JWTSecret: testSecret}
}

func newTestService(fs *fakeStore, pub notify.Publisher) *Service {
	return newService(testConfig(), fs, Deps{Publisher: pub})
}

func sessionOf(u store.User) Session {
	return Session{User: u}
}
