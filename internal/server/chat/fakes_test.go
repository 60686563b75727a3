package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/server/hub"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
	"github.com/dmitrijs2005/pdcc/internal/server/services"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var errStore = fmt.Errorf("%w: connection refused", common.ErrorInternal)

// fakeConn records outbound frames and the close code.
type fakeConn struct {
	id     string
	out    chan *protocol.Outbound
	mu     sync.Mutex
	closed bool
	code   int
	done   chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, out: make(chan *protocol.Outbound, 256), done: make(chan struct{})}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(f *protocol.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hub.ErrClosed
	}
	c.out <- f
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.code = code
	close(c.done)
	return nil
}

func (c *fakeConn) closeCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// fakeAccounts is an in-memory credential store. Passwords are kept in clear
// and tokens are "tok-<username>"; "expired" is always expired.
type fakeAccounts struct {
	mu        sync.Mutex
	users     map[string]*models.User
	passwords map[string]string
	fail      bool
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: map[string]*models.User{}, passwords: map[string]string{}}
}

func (a *fakeAccounts) add(name, password string, level int) *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := &models.User{ID: "id-" + name, UserName: name, Permission: level}
	a.users[u.ID] = u
	a.passwords[u.ID] = password
	return u
}

func (a *fakeAccounts) byName(name string) *models.User {
	for _, u := range a.users {
		if u.UserName == name {
			return u
		}
	}
	return nil
}

func (a *fakeAccounts) user(name string) models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.byName(name)
}

func (a *fakeAccounts) Register(_ context.Context, userName, password string) (*models.User, error) {
	if userName == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}
	a.mu.Lock()
	exists := a.byName(userName) != nil
	a.mu.Unlock()
	if exists {
		return nil, common.ErrorAlreadyExists
	}
	return a.add(userName, password, models.LevelUser), nil
}

func (a *fakeAccounts) Authenticate(_ context.Context, userName, password string) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return nil, errStore
	}
	u := a.byName(userName)
	if u == nil || a.passwords[u.ID] != password {
		return nil, common.ErrorUnauthorized
	}
	if u.Banned {
		return nil, common.ErrorBanned
	}
	c := *u
	return &c, nil
}

func (a *fakeAccounts) AuthenticateToken(_ context.Context, token string) (*models.User, error) {
	if token == "expired" {
		return nil, common.ErrTokenExpired
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.byName(strings.TrimPrefix(token, "tok-"))
	if !strings.HasPrefix(token, "tok-") || u == nil {
		return nil, common.ErrInvalidToken
	}
	if u.Banned {
		return nil, common.ErrorBanned
	}
	c := *u
	return &c, nil
}

func (a *fakeAccounts) IssueToken(userName string) (string, error) {
	return "tok-" + userName, nil
}

func (a *fakeAccounts) Lookup(ctx context.Context, identifier string) (*models.User, error) {
	if u, err := a.GetByID(ctx, identifier); err == nil {
		return u, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if u := a.byName(identifier); u != nil {
		c := *u
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

func (a *fakeAccounts) GetByID(_ context.Context, id string) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (a *fakeAccounts) Usernames(_ context.Context, ids []string) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return nil, errStore
	}
	out := map[string]string{}
	for _, id := range ids {
		if u, ok := a.users[id]; ok {
			out[id] = u.UserName
		}
	}
	return out, nil
}

func (a *fakeAccounts) setBanned(userName string, banned bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.byName(userName)
	if u == nil {
		return common.ErrorNotFound
	}
	u.Banned = banned
	return nil
}

func (a *fakeAccounts) Ban(_ context.Context, userName string) error {
	return a.setBanned(userName, true)
}

func (a *fakeAccounts) Unban(_ context.Context, userName string) error {
	return a.setBanned(userName, false)
}

func (a *fakeAccounts) ListBanned(context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var names []string
	for _, u := range a.users {
		if u.Banned {
			names = append(names, u.UserName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (a *fakeAccounts) Grant(_ context.Context, userName string, level int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.byName(userName)
	if u == nil {
		return common.ErrorNotFound
	}
	u.Permission = level
	return nil
}

// fakeSocial keeps directed edges and blocks in maps.
type fakeSocial struct {
	mu       sync.Mutex
	accounts *fakeAccounts
	edges    map[[2]string]models.RelationshipStatus
	blocks   map[[2]string]bool
}

func newFakeSocial(a *fakeAccounts) *fakeSocial {
	return &fakeSocial{
		accounts: a,
		edges:    map[[2]string]models.RelationshipStatus{},
		blocks:   map[[2]string]bool{},
	}
}

func (f *fakeSocial) edge(from, to string) (models.RelationshipStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.edges[[2]string{from, to}]
	return st, ok
}

func (f *fakeSocial) SendRequest(ctx context.Context, requesterID, targetID string) (services.RequestResult, error) {
	if requesterID == targetID {
		return services.RequestUnchanged, fmt.Errorf("%w: cannot send a friend request to yourself", common.ErrorValidation)
	}
	if _, err := f.accounts.GetByID(ctx, targetID); err != nil {
		return services.RequestUnchanged, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	reverse := [2]string{targetID, requesterID}
	if f.edges[reverse] == models.StatusPending {
		f.edges[reverse] = models.StatusAccepted
		f.edges[[2]string{requesterID, targetID}] = models.StatusAccepted
		return services.RequestAccepted, nil
	}
	key := [2]string{requesterID, targetID}
	if st, ok := f.edges[key]; ok && st != models.StatusRejected {
		return services.RequestUnchanged, nil
	}
	f.edges[key] = models.StatusPending
	return services.RequestSent, nil
}

func (f *fakeSocial) Respond(_ context.Context, responderID, requesterID string, accept bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{requesterID, responderID}
	if f.edges[key] != models.StatusPending {
		return common.ErrorNotFound
	}
	if !accept {
		f.edges[key] = models.StatusRejected
		return nil
	}
	f.edges[key] = models.StatusAccepted
	f.edges[[2]string{responderID, requesterID}] = models.StatusAccepted
	return nil
}

func (f *fakeSocial) Remove(_ context.Context, ownerID, peerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := false
	for _, key := range [][2]string{{ownerID, peerID}, {peerID, ownerID}} {
		if _, ok := f.edges[key]; ok {
			delete(f.edges, key)
			removed = true
		}
	}
	return removed, nil
}

func (f *fakeSocial) Block(ctx context.Context, ownerID, targetID string) (bool, error) {
	if ownerID == targetID {
		return false, fmt.Errorf("%w: cannot block yourself", common.ErrorValidation)
	}
	if _, err := f.accounts.GetByID(ctx, targetID); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{ownerID, targetID}
	created := !f.blocks[key]
	f.blocks[key] = true
	return created, nil
}

func (f *fakeSocial) Unblock(_ context.Context, ownerID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{ownerID, targetID}
	removed := f.blocks[key]
	delete(f.blocks, key)
	return removed, nil
}

func (f *fakeSocial) IsBlocked(_ context.Context, ownerID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[[2]string{ownerID, targetID}], nil
}

func (f *fakeSocial) Snapshot(ctx context.Context, userID string) (*services.Snapshot, error) {
	f.mu.Lock()
	var friends, incoming, blocked []string
	for key, st := range f.edges {
		switch {
		case key[0] == userID && st == models.StatusAccepted:
			friends = append(friends, key[1])
		case key[1] == userID && st == models.StatusPending:
			incoming = append(incoming, key[0])
		}
	}
	for key := range f.blocks {
		if key[0] == userID {
			blocked = append(blocked, key[1])
		}
	}
	f.mu.Unlock()

	snap := &services.Snapshot{Usernames: map[string]string{}}
	contacts := func(ids []string) []models.Contact {
		sort.Strings(ids)
		var out []models.Contact
		for _, id := range ids {
			u, err := f.accounts.GetByID(ctx, id)
			if err != nil {
				continue
			}
			out = append(out, models.Contact{ID: u.ID, UserName: u.UserName})
			snap.Usernames[u.ID] = u.UserName
		}
		return out
	}
	snap.Friends = contacts(friends)
	snap.Incoming = contacts(incoming)
	snap.Blocked = contacts(blocked)
	return snap, nil
}

type fakeMessages struct {
	mu       sync.Mutex
	accounts *fakeAccounts
	log      []*models.Message
}

func (m *fakeMessages) Send(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message text is required", common.ErrorValidation)
	}
	if _, err := m.accounts.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := &models.Message{
		ID:          int64(len(m.log) + 1),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Date(2024, 1, 1, 12, 0, len(m.log), 0, time.UTC),
	}
	m.log = append(m.log, msg)
	return msg, nil
}

func (m *fakeMessages) History(_ context.Context, a, b string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.log {
		if (msg.SenderID == a && msg.RecipientID == b) || (msg.SenderID == b && msg.RecipientID == a) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *fakeMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}

// client drives one Serve goroutine.
type client struct {
	t      *testing.T
	conn   *fakeConn
	frames chan []byte
	done   chan struct{}
}

func (c *client) send(v any) {
	c.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(c.t, err)
	c.raw(b)
}

func (c *client) raw(b []byte) {
	c.t.Helper()
	select {
	case c.frames <- b:
	case <-time.After(waitFor):
		c.t.Fatal("frame not accepted")
	}
}

func (c *client) next() *protocol.Outbound {
	c.t.Helper()
	select {
	case f := <-c.conn.out:
		return f
	case <-time.After(waitFor):
		c.t.Fatal("no frame received")
		return nil
	}
}

// expect reads the next frame and checks its type.
func (c *client) expect(typ string) *protocol.Outbound {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, typ, f.Type, "frame: %+v", f)
	return f
}

func (c *client) waitClosed() int {
	c.t.Helper()
	select {
	case <-c.conn.done:
		return c.conn.closeCode()
	case <-time.After(waitFor):
		c.t.Fatal("connection not closed")
		return 0
	}
}

func (c *client) waitExit() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(waitFor):
		c.t.Fatal("session did not exit")
	}
}

func (c *client) assertNoFrame() {
	c.t.Helper()
	select {
	case f := <-c.conn.out:
		c.t.Fatalf("unexpected frame %+v", f)
	default:
	}
}

// login authenticates with a password and drains the login and token frames.
func (c *client) login(name, password string) *protocol.Outbound {
	c.t.Helper()
	c.send(map[string]string{"type": "login", "username": name, "password": password})
	f := c.expect(protocol.OutLogin)
	require.NotNil(c.t, f.Success)
	require.True(c.t, *f.Success, "login failed: %s", f.Message)
	c.expect(protocol.OutToken)
	return f
}

func (c *client) command(text string) *protocol.Outbound {
	c.t.Helper()
	c.send(map[string]string{"type": "command", "text": text})
	return c.next()
}
