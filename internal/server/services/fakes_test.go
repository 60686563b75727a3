package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/dbx"
	"github.com/dmitrijs2005/pdcc/internal/server/config"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/blocks"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/messages"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/relationships"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:             "k",
		TokenValidityDuration: time.Hour,
		BcryptCost:            bcrypt.MinCost,
	}
}

// fakeStore backs all four repositories with maps. failOn makes the named
// operation return errBoom.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	edges    map[[2]string]models.RelationshipStatus
	blocks   map[[2]string]time.Time
	messages []*models.Message
	failOn   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  map[string]*models.User{},
		edges:  map[[2]string]models.RelationshipStatus{},
		blocks: map[[2]string]time.Time{},
		failOn: map[string]bool{},
	}
}

func (f *fakeStore) fail(op string) error {
	if f.failOn[op] {
		return errBoom{}
	}
	return nil
}

func (f *fakeStore) addUser(id, name string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, UserName: name, Permission: models.LevelUser}
	f.users[id] = u
	return u
}

// users.Repository

type fakeUsers struct{ *fakeStore }

func (f fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range f.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	cp.ID = "id-" + u.UserName
	cp.CreatedAt = time.Now()
	f.users[cp.ID] = &cp
	return &cp, nil
}

func (f fakeUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.GetUserByLogin"); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.UserName == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) byLogin(login string) (*models.User, error) {
	for _, u := range f.users {
		if u.UserName == login {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) SetBanned(ctx context.Context, login string, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.SetBanned"); err != nil {
		return err
	}
	u, err := f.byLogin(login)
	if err != nil {
		return err
	}
	u.Banned = banned
	return nil
}

func (f fakeUsers) SetPermission(ctx context.Context, login string, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.SetPermission"); err != nil {
		return err
	}
	u, err := f.byLogin(login)
	if err != nil {
		return err
	}
	u.Permission = level
	return nil
}

func (f fakeUsers) ListBanned(ctx context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.ListBanned"); err != nil {
		return nil, err
	}
	var out []*models.User
	for _, u := range f.users {
		if u.Banned {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

func (f fakeUsers) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("users.GetUsernames"); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u.UserName
		}
	}
	return out, nil
}

// relationships.Repository

type fakeRelationships struct{ *fakeStore }

func (f fakeRelationships) Request(ctx context.Context, owner, peer string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("relationships.Request"); err != nil {
		return false, err
	}
	key := [2]string{owner, peer}
	if st, ok := f.edges[key]; ok && st != models.StatusRejected {
		return false, nil
	}
	f.edges[key] = models.StatusPending
	return true, nil
}

func (f fakeRelationships) LockPair(ctx context.Context, a, b string) error {
	return f.fail("relationships.LockPair")
}

func (f fakeRelationships) HasPending(ctx context.Context, owner, peer string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("relationships.HasPending"); err != nil {
		return false, err
	}
	return f.edges[[2]string{owner, peer}] == models.StatusPending, nil
}

func (f fakeRelationships) Resolve(ctx context.Context, owner, peer string, status models.RelationshipStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("relationships.Resolve"); err != nil {
		return err
	}
	key := [2]string{owner, peer}
	if f.edges[key] != models.StatusPending {
		return common.ErrorNotFound
	}
	f.edges[key] = status
	return nil
}

func (f fakeRelationships) Upsert(ctx context.Context, owner, peer string, status models.RelationshipStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("relationships.Upsert"); err != nil {
		return err
	}
	f.edges[[2]string{owner, peer}] = status
	return nil
}

func (f fakeRelationships) DeletePair(ctx context.Context, a, b string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("relationships.DeletePair"); err != nil {
		return 0, err
	}
	var n int64
	for _, key := range [][2]string{{a, b}, {b, a}} {
		if _, ok := f.edges[key]; ok {
			delete(f.edges, key)
			n++
		}
	}
	return n, nil
}

func (f fakeRelationships) Get(ctx context.Context, owner, peer string) (*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.edges[[2]string{owner, peer}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.Relationship{OwnerID: owner, PeerID: peer, Status: st}, nil
}

func (f fakeRelationships) contacts(match func(key [2]string, st models.RelationshipStatus) (string, bool)) []models.Contact {
	var out []models.Contact
	for key, st := range f.edges {
		if id, ok := match(key, st); ok {
			out = append(out, models.Contact{ID: id, UserName: f.users[id].UserName})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out
}

func (f fakeRelationships) Friends(ctx context.Context, owner string) ([]models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("relationships.Friends"); err != nil {
		return nil, err
	}
	return f.contacts(func(key [2]string, st models.RelationshipStatus) (string, bool) {
		return key[1], key[0] == owner && st == models.StatusAccepted
	}), nil
}

func (f fakeRelationships) Incoming(ctx context.Context, peer string) ([]models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts(func(key [2]string, st models.RelationshipStatus) (string, bool) {
		return key[0], key[1] == peer && st == models.StatusPending
	}), nil
}

// blocks.Repository

type fakeBlocks struct{ *fakeStore }

func (f fakeBlocks) Add(ctx context.Context, owner, blocked string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("blocks.Add"); err != nil {
		return false, err
	}
	key := [2]string{owner, blocked}
	if _, ok := f.blocks[key]; ok {
		return false, nil
	}
	f.blocks[key] = time.Now()
	return true, nil
}

func (f fakeBlocks) Remove(ctx context.Context, owner, blocked string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{owner, blocked}
	_, ok := f.blocks[key]
	delete(f.blocks, key)
	return ok, nil
}

func (f fakeBlocks) Exists(ctx context.Context, owner, blocked string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("blocks.Exists"); err != nil {
		return false, err
	}
	_, ok := f.blocks[[2]string{owner, blocked}]
	return ok, nil
}

func (f fakeBlocks) List(ctx context.Context, owner string) ([]models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Contact
	for key := range f.blocks {
		if key[0] == owner {
			out = append(out, models.Contact{ID: key[1], UserName: f.users[key[1]].UserName})
		}
	}
	return out, nil
}

// messages.Repository

type fakeMessages struct{ *fakeStore }

func (f fakeMessages) Append(ctx context.Context, m *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("messages.Append"); err != nil {
		return nil, err
	}
	m.ID = int64(len(f.messages) + 1)
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, m)
	return m, nil
}

func (f fakeMessages) History(ctx context.Context, a, b string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("messages.History"); err != nil {
		return nil, err
	}
	var out []*models.Message
	for _, m := range f.messages {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return fakeUsers{m.s} }
func (m *fakeRepoManager) Relationships(dbx.DBTX) relationships.Repository {
	return fakeRelationships{m.s}
}
func (m *fakeRepoManager) Blocks(dbx.DBTX) blocks.Repository     { return fakeBlocks{m.s} }
func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository { return fakeMessages{m.s} }
