package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storyforest/api/internal/notify"
	"storyforest/api/internal/store"
	"storyforest/api/internal/story"
	"storyforest/api/internal/validation"
)

const body = "Once upon a time in a forest of forking paths."

type world struct {
	fs    *fakeStore
	pub   *recordingPublisher
	svc   *Service
	admin store.User
	w1    store.User
	w2    store.User
	w3    store.User
	book  story.Book
}

func newWorld(t *testing.T) world {
	t.Helper()
	fs := newFakeStore()
	pub := &recordingPublisher{}
	w := world{
		fs:    fs,
		pub:   pub,
		svc:   newTestService(fs, pub),
		admin: fs.addUser("admin", "admin"),
		w1:    fs.addUser("w1", "writer"),
		w2:    fs.addUser("w2", "writer"),
		w3:    fs.addUser("w3", "writer"),
		book:  fs.addBook("Forest", true),
	}
	return w
}

func (w world) create(t *testing.T, u store.User, parent *int64) story.Item {
	t.Helper()
	item, err := w.svc.CreateNode(context.Background(), sessionOf(u), CreateNodeInput{
		BookID:   w.book.ID,
		ParentID: parent,
		Title:    u.Username + " chapter",
		Content:  body,
	})
	if err != nil {
		t.Fatalf("create node as %s: %v", u.Username, err)
	}
	return item
}

func treeIDs(roots []*story.TreeNode) []int64 {
	var ids []int64
	var walk func([]*story.TreeNode)
	walk = func(nodes []*story.TreeNode) {
		for _, n := range nodes {
			ids = append(ids, n.ID)
			walk(n.Children)
		}
	}
	walk(roots)
	return ids
}

func notesOfType(notes []notify.Notification, typ notify.Type, receiver int64) int {
	count := 0
	for _, n := range notes {
		if n.Type == typ && n.ReceiverID == receiver {
			count++
		}
	}
	return count
}

func TestModerationScenario(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	root := w.create(t, w.admin, nil)
	if root.Status != story.StatusPublished || root.Depth != 1 {
		t.Fatalf("expected published root at depth 1, got %s/%d", root.Status, root.Depth)
	}
	child := w.create(t, w.w1, &root.ID)
	if child.Status != story.StatusPending || child.Depth != 2 {
		t.Fatalf("expected pending child at depth 2, got %s/%d", child.Status, child.Depth)
	}

	tree, err := w.svc.GetTree(ctx, Session{}, w.book.ID)
	if err != nil {
		t.Fatalf("guest tree: %v", err)
	}
	if ids := treeIDs(tree.Nodes); len(ids) != 1 || ids[0] != root.ID {
		t.Fatalf("guest should only see the root, got %v", ids)
	}

	authorTree, err := w.svc.GetTree(ctx, sessionOf(w.w1), w.book.ID)
	if err != nil {
		t.Fatalf("author tree: %v", err)
	}
	if authorTree.Total != 2 {
		t.Fatalf("author should see own pending child, got %d nodes", authorTree.Total)
	}

	approved, err := w.svc.AuditNode(ctx, sessionOf(w.admin), child.ID, "published")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != story.StatusPublished || approved.PublishedAt == nil {
		t.Fatalf("expected published with timestamp, got %+v", approved.Node)
	}
	if got := notesOfType(w.fs.notifications(), notify.TypeApproved, w.w1.ID); got != 1 {
		t.Fatalf("expected one approved notification for w1, got %d", got)
	}

	tree, err = w.svc.GetTree(ctx, Session{}, w.book.ID)
	if err != nil {
		t.Fatalf("guest tree after approval: %v", err)
	}
	if ids := treeIDs(tree.Nodes); len(ids) != 2 {
		t.Fatalf("guest should now see both nodes, got %v", ids)
	}
}

func TestCreateNodePublishesBranchedToParentAuthor(t *testing.T) {
	w := newWorld(t)
	root := w.create(t, w.admin, nil)
	child := w.create(t, w.w1, &root.ID)

	sent := w.pub.published()
	if len(sent) != 1 {
		t.Fatalf("expected one branched notification, got %d", len(sent))
	}
	n := sent[0]
	if n.Type != notify.TypeBranched || n.ReceiverID != w.admin.ID || *n.SenderID != w.w1.ID || *n.NodeID != root.ID {
		t.Fatalf("unexpected notification %+v for child %d", n, child.ID)
	}
}

func TestCreateNodePolicy(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	pending := w.create(t, w.w1, &root.ID)
	closed := w.fs.addBook("Closed", false)

	cases := []struct {
		name string
		user store.User
		in   CreateNodeInput
		want error
	}{
		{name: "writer root", user: w.w3, in: CreateNodeInput{BookID: w.book.ID, Content: body}, want: story.ErrRootRequiresAdmin},
		{name: "writer root in closed book", user: w.w3, in: CreateNodeInput{BookID: closed.ID, Content: body}, want: story.ErrRootRequiresAdmin},
		{name: "closed book", user: w.w2, in: CreateNodeInput{BookID: closed.ID, ParentID: &root.ID, Content: body}, want: story.ErrBookClosed},
		{name: "missing parent", user: w.w2, in: CreateNodeInput{BookID: w.book.ID, ParentID: ptr(int64(9999)), Content: body}, want: story.ErrParentNotFound},
		{name: "pending parent", user: w.w2, in: CreateNodeInput{BookID: w.book.ID, ParentID: &pending.ID, Content: body}, want: story.ErrParentNotPublished},
		{name: "missing book", user: w.admin, in: CreateNodeInput{BookID: 9999, Content: body}, want: story.ErrBookNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.svc.CreateNode(ctx, sessionOf(tc.user), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), root.ID, "locked"); err != nil {
		t.Fatalf("lock root: %v", err)
	}
	if _, err := w.svc.CreateNode(ctx, sessionOf(w.w2), CreateNodeInput{BookID: w.book.ID, ParentID: &root.ID, Content: body}); !errors.Is(err, story.ErrBranchLocked) {
		t.Fatalf("expected branch locked, got %v", err)
	}
	if _, err := w.svc.CreateNode(ctx, sessionOf(w.admin), CreateNodeInput{BookID: w.book.ID, ParentID: &root.ID, Content: body}); err != nil {
		t.Fatalf("admin may branch a locked node: %v", err)
	}
}

func TestRestrictedAccountsCannotWrite(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)

	unverified := w.w2
	unverified.IsVerified = false
	banned := w.w3
	banned.Role = "banned"

	for _, u := range []store.User{unverified, banned} {
		_, err := w.svc.CreateNode(ctx, sessionOf(u), CreateNodeInput{BookID: w.book.ID, ParentID: &root.ID, Content: body})
		if !errors.Is(err, story.ErrAccountRestricted) {
			t.Fatalf("%s: expected account restricted, got %v", u.Username, err)
		}
		if _, err := w.svc.ToggleLike(ctx, sessionOf(u), root.ID); !errors.Is(err, story.ErrAccountRestricted) {
			t.Fatalf("%s like: expected account restricted, got %v", u.Username, err)
		}
	}
}

func TestLikeScenario(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	child := w.create(t, w.w1, &root.ID)
	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), child.ID, "published"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	liked, err := w.svc.ToggleLike(ctx, sessionOf(w.w2), child.ID)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if liked.Action != store.Liked || liked.LikesCount != 1 {
		t.Fatalf("expected liked/1, got %+v", liked)
	}
	if got := notesOfType(w.fs.notifications(), notify.TypeLiked, w.w1.ID); got != 1 {
		t.Fatalf("expected one liked notification, got %d", got)
	}

	unliked, err := w.svc.ToggleLike(ctx, sessionOf(w.w2), child.ID)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if unliked.Action != store.Unliked || unliked.LikesCount != 0 {
		t.Fatalf("expected unliked/0, got %+v", unliked)
	}
	if got := notesOfType(w.fs.notifications(), notify.TypeLiked, w.w1.ID); got != 1 {
		t.Fatalf("unlike must not notify, got %d liked notifications", got)
	}

	if _, err := w.svc.ToggleLike(ctx, sessionOf(w.w1), child.ID); err != nil {
		t.Fatalf("self like: %v", err)
	}
	if got := notesOfType(w.fs.notifications(), notify.TypeLiked, w.w1.ID); got != 1 {
		t.Fatalf("self like must not notify, got %d", got)
	}
}

func TestLikeHiddenNodeIsNotFound(t *testing.T) {
	w := newWorld(t)
	root := w.create(t, w.admin, nil)
	pending := w.create(t, w.w1, &root.ID)

	_, err := w.svc.ToggleLike(context.Background(), sessionOf(w.w2), pending.ID)
	if !errors.Is(err, story.ErrNodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteScenario(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	child := w.create(t, w.w1, &root.ID)

	if err := w.svc.DeleteNode(ctx, sessionOf(w.w1), root.ID); !errors.Is(err, story.ErrForbidden) {
		t.Fatalf("non-owner delete: expected forbidden, got %v", err)
	}
	if err := w.svc.DeleteNode(ctx, sessionOf(w.admin), root.ID); !errors.Is(err, story.ErrHasChildren) {
		t.Fatalf("expected has children, got %v", err)
	}
	if err := w.svc.DeleteNode(ctx, sessionOf(w.w2), child.ID); !errors.Is(err, story.ErrNodeNotFound) {
		t.Fatalf("stranger deleting a pending node should not see it, got %v", err)
	}
	if err := w.svc.DeleteNode(ctx, sessionOf(w.w1), child.ID); err != nil {
		t.Fatalf("author deletes own leaf: %v", err)
	}
	if err := w.svc.DeleteNode(ctx, sessionOf(w.admin), root.ID); err != nil {
		t.Fatalf("delete root after children: %v", err)
	}
}

func TestAuditRules(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	child := w.create(t, w.w1, &root.ID)

	if _, err := w.svc.AuditNode(ctx, sessionOf(w.w2), child.ID, "published"); !errors.Is(err, story.ErrForbidden) {
		t.Fatalf("writer audit: expected forbidden, got %v", err)
	}
	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), child.ID, "archived"); !errors.Is(err, story.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), child.ID, "pending"); err != nil {
		t.Fatalf("no-op audit: %v", err)
	}
	if len(w.fs.notifications()) != 0 {
		t.Fatalf("no-op audit must not notify")
	}
	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), child.ID, "rejected"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := notesOfType(w.fs.notifications(), notify.TypeRejected, w.w1.ID); got != 1 {
		t.Fatalf("expected one rejected notification, got %d", got)
	}
	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), child.ID, "published"); err != nil {
		t.Fatalf("override audit is allowed for admins: %v", err)
	}
}

func TestPathIsAllOrNothing(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	middle := w.create(t, w.w1, &root.ID)
	leaf := w.create(t, w.admin, &middle.ID)

	if _, err := w.svc.GetPath(ctx, Session{}, leaf.ID); !errors.Is(err, story.ErrNodeNotFound) {
		t.Fatalf("guest path through pending node: expected not found, got %v", err)
	}
	if _, err := w.svc.GetPath(ctx, sessionOf(w.w2), leaf.ID); !errors.Is(err, story.ErrNodeNotFound) {
		t.Fatalf("stranger path through pending node: expected not found, got %v", err)
	}

	path, err := w.svc.GetPath(ctx, sessionOf(w.w1), leaf.ID)
	if err != nil {
		t.Fatalf("author path: %v", err)
	}
	if len(path) != 3 || path[0].ID != root.ID || path[2].ID != leaf.ID {
		t.Fatalf("unexpected path %v", path)
	}
	if path[1].Author.Username != "w1" {
		t.Fatalf("expected author on path items, got %+v", path[1].Author)
	}

	tree, err := w.svc.GetTree(ctx, Session{}, w.book.ID)
	if err != nil {
		t.Fatalf("guest tree: %v", err)
	}
	if ids := treeIDs(tree.Nodes); len(ids) != 1 {
		t.Fatalf("leaf under hidden node must be dropped, got %v", ids)
	}
}

func TestNodeDetailVisibility(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	pending := w.create(t, w.w1, &root.ID)

	if _, err := w.svc.GetNodeDetail(ctx, Session{}, pending.ID); !errors.Is(err, story.ErrNodeNotFound) {
		t.Fatalf("guest detail: expected not found, got %v", err)
	}
	detail, err := w.svc.GetNodeDetail(ctx, sessionOf(w.w1), pending.ID)
	if err != nil {
		t.Fatalf("author detail: %v", err)
	}
	if detail.Content != body || detail.Liked {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, err := w.svc.GetNodeDetail(ctx, sessionOf(w.admin), pending.ID); err != nil {
		t.Fatalf("admin detail: %v", err)
	}
}

func TestEditNode(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	child := w.create(t, w.w1, &root.ID)

	var verr *validation.Error
	if _, err := w.svc.EditNode(ctx, sessionOf(w.w1), child.ID, EditNodeInput{}); !errors.As(err, &verr) {
		t.Fatalf("empty patch: expected validation error, got %v", err)
	}
	title := "  Renamed  "
	edited, err := w.svc.EditNode(ctx, sessionOf(w.w1), child.ID, EditNodeInput{Title: &title})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Title != "Renamed" || edited.Status != story.StatusPending || edited.Depth != 2 {
		t.Fatalf("edit must only change text, got %+v", edited.Node)
	}
	if _, err := w.svc.EditNode(ctx, sessionOf(w.w1), root.ID, EditNodeInput{Title: &title}); !errors.Is(err, story.ErrForbidden) {
		t.Fatalf("edit someone else's node: expected forbidden, got %v", err)
	}
}

func TestListUserNodesAppliesVisibility(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	w.create(t, w.w1, &root.ID)

	guestView, err := w.svc.ListUserNodes(ctx, Session{}, w.w1.ID, "", 0, 0)
	if err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if len(guestView) != 0 {
		t.Fatalf("guest must not see pending nodes, got %d", len(guestView))
	}
	own, err := w.svc.ListUserNodes(ctx, sessionOf(w.w1), w.w1.ID, "pending", 0, 0)
	if err != nil {
		t.Fatalf("own list: %v", err)
	}
	if len(own) != 1 {
		t.Fatalf("author should see own pending node, got %d", len(own))
	}
	if _, err := w.svc.ListUserNodes(ctx, Session{}, 9999, "", 0, 0); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestCommentsAndNotifications(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)

	comment, err := w.svc.CreateComment(ctx, sessionOf(w.w2), root.ID, "  lovely opening  ")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if comment.Content != "lovely opening" || comment.Author.ID != w.w2.ID {
		t.Fatalf("unexpected comment %+v", comment)
	}
	notes := w.fs.notifications()
	if len(notes) != 1 || notes[0].Type != notify.TypeCommented || notes[0].CommentID == nil || *notes[0].CommentID != comment.ID {
		t.Fatalf("expected commented notification referencing the comment, got %+v", notes)
	}

	comments, err := w.svc.ListComments(ctx, Session{}, root.ID, 0, 0)
	if err != nil || len(comments) != 1 {
		t.Fatalf("list comments: %v (%d)", err, len(comments))
	}

	admin := sessionOf(w.admin)
	listed, err := w.svc.ListNotifications(ctx, admin, false, 0, 0)
	if err != nil || len(listed) != 1 {
		t.Fatalf("list notifications: %v (%d)", err, len(listed))
	}
	if listed[0].Sender == nil || listed[0].Sender.Username != "w2" {
		t.Fatalf("expected the commenter as sender, got %+v", listed[0].Sender)
	}
	if count, _ := w.svc.UnreadCount(ctx, admin); count != 1 {
		t.Fatalf("expected one unread, got %d", count)
	}
	first, err := w.svc.MarkAllRead(ctx, admin)
	if err != nil || first != 1 {
		t.Fatalf("first mark all read: %d %v", first, err)
	}
	second, err := w.svc.MarkAllRead(ctx, admin)
	if err != nil || second != 0 {
		t.Fatalf("second mark all read should change nothing: %d %v", second, err)
	}
	if count, _ := w.svc.UnreadCount(ctx, admin); count != 0 {
		t.Fatalf("expected zero unread, got %d", count)
	}
}

func TestUserProfileCountsOnlyVisibleNodes(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)
	pending := w.create(t, w.w1, &root.ID)
	if _, err := w.svc.ToggleLike(ctx, sessionOf(w.w2), root.ID); err != nil {
		t.Fatalf("like: %v", err)
	}

	guest, err := w.svc.GetUserProfile(ctx, Session{}, w.w1.ID)
	if err != nil {
		t.Fatalf("guest profile: %v", err)
	}
	if guest.Username != "w1" || guest.NodesCount != 0 {
		t.Fatalf("guest must not count pending nodes, got %+v", guest)
	}
	own, err := w.svc.GetUserProfile(ctx, sessionOf(w.w1), w.w1.ID)
	if err != nil || own.NodesCount != 1 {
		t.Fatalf("author should count own pending node: %+v %v", own, err)
	}

	if _, err := w.svc.AuditNode(ctx, sessionOf(w.admin), pending.ID, "published"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	guest, _ = w.svc.GetUserProfile(ctx, Session{}, w.w1.ID)
	if guest.NodesCount != 1 {
		t.Fatalf("published node should count, got %+v", guest)
	}
	admin, err := w.svc.GetUserProfile(ctx, Session{}, w.admin.ID)
	if err != nil || admin.NodesCount != 1 || admin.TotalLikes != 1 {
		t.Fatalf("unexpected admin profile %+v %v", admin, err)
	}
	if _, err := w.svc.GetUserProfile(ctx, Session{}, 9999); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestBooks(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	if _, err := w.svc.CreateBook(ctx, sessionOf(w.w1), CreateBookInput{Title: "Nope"}); !errors.Is(err, story.ErrForbidden) {
		t.Fatalf("writer create book: expected forbidden, got %v", err)
	}
	book, err := w.svc.CreateBook(ctx, sessionOf(w.admin), CreateBookInput{Title: " Second "})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.Title != "Second" || !book.Active {
		t.Fatalf("unexpected book %+v", book)
	}

	inactive := false
	if _, err := w.svc.UpdateBook(ctx, sessionOf(w.admin), book.ID, UpdateBookInput{Active: &inactive}); err != nil {
		t.Fatalf("close book: %v", err)
	}
	guestBooks, _ := w.svc.ListBooks(ctx, Session{}, 0, 0)
	adminBooks, _ := w.svc.ListBooks(ctx, sessionOf(w.admin), 0, 0)
	if len(guestBooks) != 1 || len(adminBooks) != 2 {
		t.Fatalf("closed books are admin-only in listings: guest=%d admin=%d", len(guestBooks), len(adminBooks))
	}

	w.create(t, w.admin, nil)
	if err := w.svc.DeleteBook(ctx, sessionOf(w.admin), w.book.ID); !errors.Is(err, store.ErrBookNotEmpty) {
		t.Fatalf("expected book not empty, got %v", err)
	}
	if err := w.svc.DeleteBook(ctx, sessionOf(w.admin), book.ID); err != nil {
		t.Fatalf("delete empty book: %v", err)
	}
}

func TestExportPathHTML(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	root := w.create(t, w.admin, nil)

	result, err := w.svc.ExportPath(ctx, Session{}, root.ID, "html")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(result.Data), "Forest") || !strings.HasSuffix(result.Filename, ".html") {
		t.Fatalf("unexpected export %q %q", result.Filename, result.Data)
	}
	if _, err := w.svc.ExportPath(ctx, Session{}, root.ID, "docx"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestDispatcherFallbackDeliversBranched(t *testing.T) {
	fs := newFakeStore()
	svc := newService(testConfig(), fs, Deps{})
	admin := fs.addUser("admin", "admin")
	writer := fs.addUser("writer", "writer")
	book := fs.addBook("Forest", true)
	ctx := context.Background()

	root, err := svc.CreateNode(ctx, sessionOf(admin), CreateNodeInput{BookID: book.ID, Content: body})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if _, err := svc.CreateNode(ctx, sessionOf(writer), CreateNodeInput{BookID: book.ID, ParentID: &root.ID, Content: body}); err != nil {
		t.Fatalf("child: %v", err)
	}
	svc.Wait()

	if got := notesOfType(fs.notifications(), notify.TypeBranched, admin.ID); got != 1 {
		t.Fatalf("expected branched notification persisted, got %d", got)
	}
}

func TestSecondaryNotificationFailureKeepsNode(t *testing.T) {
	fs := newFakeStore()
	fs.insertNotificationFn = func(context.Context, notify.Notification) (notify.Notification, error) {
		return notify.Notification{}, errors.New("disk full")
	}
	svc := newService(testConfig(), fs, Deps{})
	admin := fs.addUser("admin", "admin")
	writer := fs.addUser("writer", "writer")
	book := fs.addBook("Forest", true)
	ctx := context.Background()

	root, err := svc.CreateNode(ctx, sessionOf(admin), CreateNodeInput{BookID: book.ID, Content: body})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	child, err := svc.CreateNode(ctx, sessionOf(writer), CreateNodeInput{BookID: book.ID, ParentID: &root.ID, Content: body})
	if err != nil {
		t.Fatalf("child creation must survive a failed notification: %v", err)
	}
	svc.Wait()
	if _, err := fs.NodeByID(ctx, child.ID); err != nil {
		t.Fatalf("child should exist: %v", err)
	}
}

func TestSessionFromToken(t *testing.T) {
	w := newWorld(t)
	token, err := w.svc.IssueToken(w.w1, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := w.svc.SessionFromToken(context.Background(), token); err == nil {
		t.Fatalf("expected an expired token to be rejected")
	}
}

func ptr[T any](v T) *T { return &v }
