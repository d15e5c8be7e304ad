package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/pkg/assistant"
	"github.com/CeliaPro/ysm2-sub001/pkg/geo"
	"github.com/CeliaPro/ysm2-sub001/pkg/hash"
	"github.com/CeliaPro/ysm2-sub001/pkg/jwt"
	"github.com/CeliaPro/ysm2-sub001/pkg/storage"
	"github.com/CeliaPro/ysm2-sub001/pkg/throttle"
	"github.com/CeliaPro/ysm2-sub001/pkg/totp"
)

const testSecret = "test-secret-test-secret-test-secret"

var testHashConfig = hash.Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*domain.User
	order []uuid.UUID
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uuid.UUID]*domain.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(u)
}

func (f *fakeUsers) insert(u *domain.User) error {
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return errs.E(errs.Conflict, "a user with this email already exists")
		}
	}
	cp := *u
	f.byID[u.ID] = &cp
	f.order = append(f.order, u.ID)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, addr string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, strings.TrimSpace(addr)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.E(errs.NotFound, "user not found")
}

func (f *fakeUsers) List(_ context.Context, limit, offset int, search string) ([]*domain.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*domain.User
	for _, id := range f.order {
		u := f.byID[id]
		if search == "" || strings.Contains(strings.ToLower(u.Email+" "+u.Name), strings.ToLower(search)) {
			cp := *u
			all = append(all, &cp)
		}
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeUsers) update(id uuid.UUID, fn func(*domain.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errs.E(errs.NotFound, "user not found")
	}
	fn(u)
	return nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id uuid.UUID, role domain.Role) error {
	return f.update(id, func(u *domain.User) { u.Role = role })
}

func (f *fakeUsers) UpdateStatus(_ context.Context, id uuid.UUID, status domain.UserStatus) error {
	return f.update(id, func(u *domain.User) { u.Status = status })
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return f.update(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.update(id, func(u *domain.User) { u.LastLoginAt = &at })
}

func (f *fakeUsers) SetTwoFactor(_ context.Context, id uuid.UUID, secret *string, enabled bool) error {
	return f.update(id, func(u *domain.User) {
		u.TwoFactorSecret = secret
		u.TwoFactorEnabled = enabled
	})
}

type fakeSessions struct {
	mu   sync.Mutex
	byID map[string]*domain.Session
}

func newFakeSessions() *fakeSessions { return &fakeSessions{byID: map[string]*domain.Session{}} }

func (f *fakeSessions) Create(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "session not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) ListByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Session{}
	for _, s := range f.byID {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsedAt.After(out[j].LastUsedAt) })
	return out, nil
}

func (f *fakeSessions) Touch(_ context.Context, id string, userID uuid.UUID, at time.Time) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return uuid.Nil, false, nil
	}
	if s.UserID == userID {
		s.LastUsedAt = at
	}
	return s.UserID, true, nil
}

func (f *fakeSessions) DeleteOwned(_ context.Context, id string, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok || s.UserID != userID {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

func (f *fakeSessions) DeleteByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.byID {
		if s.UserID == userID {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeActivities struct {
	mu      sync.Mutex
	entries []*domain.ActivityLog
	err     error
}

func (f *fakeActivities) Append(_ context.Context, e *domain.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *e
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeActivities) List(_ context.Context, filter domain.ActivityFilter) ([]*domain.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.ActivityLog{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if filter.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filter.ActorID) {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return []*domain.ActivityLog{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeActivities) all() []*domain.ActivityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ActivityLog(nil), f.entries...)
}

func (f *fakeActivities) withAction(tag string) []*domain.ActivityLog {
	var out []*domain.ActivityLog
	for _, e := range f.all() {
		if e.Action == tag {
			out = append(out, e)
		}
	}
	return out
}

type fakeInvites struct {
	mu    sync.Mutex
	users *fakeUsers
	byID  map[uuid.UUID]*domain.Invite
	now   func() time.Time
}

func (f *fakeInvites) Create(_ context.Context, inv *domain.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *inv
	f.byID[inv.ID] = &cp
	return nil
}

func (f *fakeInvites) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.byID {
		if inv.TokenHash == tokenHash {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, errs.E(errs.NotFound, "invite not found")
}

func (f *fakeInvites) List(_ context.Context, limit, offset int) ([]*domain.Invite, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Invite{}
	for _, inv := range f.byID {
		cp := *inv
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeInvites) Redeem(_ context.Context, inviteID uuid.UUID, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[inviteID]
	if !ok || !inv.IsValid(f.now()) {
		return errs.E(errs.Conflict, "invalid or expired invite")
	}

	f.users.mu.Lock()
	err := f.users.insert(user)
	f.users.mu.Unlock()
	if err != nil {
		return err
	}

	at := f.now()
	inv.Used = true
	inv.UsedAt = &at
	return nil
}

type fakeResets struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.PasswordReset
	now  func() time.Time
}

func (f *fakeResets) Create(_ context.Context, r *domain.PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.byID[r.ID] = &cp
	return nil
}

func (f *fakeResets) GetByTokenHash(_ context.Context, tokenHash string) (*domain.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.TokenHash == tokenHash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errs.E(errs.NotFound, "password reset not found")
}

func (f *fakeResets) MarkUsed(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.UsedAt != nil {
		return false, nil
	}
	at := f.now()
	r.UsedAt = &at
	return true, nil
}

type fakeProjects struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Project
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{byID: map[uuid.UUID]*domain.Project{}, members: map[uuid.UUID]map[uuid.UUID]bool{}}
}

func (f *fakeProjects) Create(_ context.Context, p *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "project not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) List(_ context.Context, viewer *uuid.UUID, limit, offset int) ([]*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Project{}
	for _, p := range f.byID {
		if viewer == nil || p.OwnerID == *viewer || f.members[p.ID][*viewer] {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, p *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return errs.E(errs.NotFound, "project not found")
	}
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeProjects) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return errs.E(errs.NotFound, "project not found")
	}
	delete(f.byID, id)
	delete(f.members, id)
	return nil
}

func (f *fakeProjects) AddMember(_ context.Context, projectID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[projectID] == nil {
		f.members[projectID] = map[uuid.UUID]bool{}
	}
	f.members[projectID][userID] = true
	return nil
}

func (f *fakeProjects) RemoveMember(_ context.Context, projectID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.members[projectID][userID] {
		return errs.E(errs.NotFound, "project member not found")
	}
	delete(f.members[projectID], userID)
	return nil
}

func (f *fakeProjects) ListMembers(_ context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.ProjectMember{}
	for id := range f.members[projectID] {
		out = append(out, &domain.ProjectMember{ProjectID: projectID, UserID: id})
	}
	return out, nil
}

func (f *fakeProjects) IsMember(_ context.Context, projectID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[projectID]
	if !ok {
		return false, nil
	}
	return p.OwnerID == userID || f.members[projectID][userID], nil
}

type fakeDocuments struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Document
}

func (f *fakeDocuments) Create(_ context.Context, d *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.byID[d.ID] = &cp
	return nil
}

func (f *fakeDocuments) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "document not found")
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocuments) List(_ context.Context, viewer *uuid.UUID, filter domain.DocumentFilter) ([]*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Document{}
	for _, d := range f.byID {
		if viewer != nil && d.OwnerID != *viewer {
			continue
		}
		if !filter.IncludeArchived && d.Status == domain.ResourceArchived {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDocuments) Update(_ context.Context, d *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[d.ID]; !ok {
		return errs.E(errs.NotFound, "document not found")
	}
	cp := *d
	f.byID[d.ID] = &cp
	return nil
}

func (f *fakeDocuments) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return errs.E(errs.NotFound, "document not found")
	}
	delete(f.byID, id)
	return nil
}

type fakeChats struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
	messages      []*domain.Message
}

func (f *fakeChats) CreateConversation(_ context.Context, c *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.conversations[c.ID] = &cp
	return nil
}

func (f *fakeChats) GetConversation(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "conversation not found")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChats) ListConversations(_ context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Conversation{}
	for _, c := range f.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeChats) DeleteConversation(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, id)
	return nil
}

func (f *fakeChats) AddMessage(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeChats) ListMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type sentMail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, html})
	return nil
}

func (f *fakeMailer) messages() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeStore) PresignUpload(_ context.Context, key, _ string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://bucket.example.com/" + key, Method: "PUT", Key: key}, nil
}

func (f *fakeStore) PresignDownload(_ context.Context, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://bucket.example.com/" + key, Method: "GET", Key: key}, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeAssistant struct {
	mu    sync.Mutex
	turns [][]assistant.Turn
	reply string
	err   error
}

func (f *fakeAssistant) Reply(_ context.Context, turns []assistant.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turns)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeLocator struct {
	loc *geo.Location
	err error
}

func (f fakeLocator) Lookup(context.Context, string) (*geo.Location, error) {
	return f.loc, f.err
}

var errBoom = errors.New("boom")

// testEnv wires every service against in-memory repositories.
type testEnv struct {
	now time.Time

	users      *fakeUsers
	sessions   *fakeSessions
	activities *fakeActivities
	invites    *fakeInvites
	resets     *fakeResets
	projects   *fakeProjects
	documents  *fakeDocuments
	chats      *fakeChats
	mailer     *fakeMailer
	store      *fakeStore
	asst       *fakeAssistant
	redis      *miniredis.Miniredis

	hasher    *hash.Hasher
	tokens    *jwt.TokenService
	recorder  *ActivityRecorder
	sessionSv *SessionService
	auth      *AuthService
	userSv    *UserService
	inviteSv  *InviteService
	projectSv *ProjectService
	docSv     *DocumentService
	chatSv    *ChatService
}

var ctxBg = context.Background()

var testRC = domain.RequestContext{IP: "203.0.113.7", Device: "Windows 10 - Chrome 120.0.0.0", UserAgent: "Mozilla/5.0"}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	clockFn := func() time.Time { return env.now }

	env.users = newFakeUsers()
	env.sessions = newFakeSessions()
	env.activities = &fakeActivities{}
	env.invites = &fakeInvites{users: env.users, byID: map[uuid.UUID]*domain.Invite{}, now: clockFn}
	env.resets = &fakeResets{byID: map[uuid.UUID]*domain.PasswordReset{}, now: clockFn}
	env.projects = newFakeProjects()
	env.documents = &fakeDocuments{byID: map[uuid.UUID]*domain.Document{}}
	env.chats = &fakeChats{conversations: map[uuid.UUID]*domain.Conversation{}}
	env.mailer = &fakeMailer{}
	env.store = &fakeStore{}
	env.asst = &fakeAssistant{reply: "Here is a summary."}

	env.redis = miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	env.hasher = hash.NewHasher(testHashConfig)

	tokens, err := jwt.NewTokenService(testSecret, time.Hour, "docflow-test", jwt.WithClock(clockFn))
	require.NoError(t, err)
	env.tokens = tokens

	env.recorder = NewActivityRecorder(env.activities, logger)
	env.recorder.now = clockFn

	env.sessionSv = NewSessionService(env.sessions, nil, env.recorder, logger)
	env.sessionSv.now = clockFn

	env.auth = NewAuthService(
		env.users, env.sessionSv, env.recorder, tokens, env.hasher,
		totp.NewAuthenticator("Docflow", clockFn),
		throttle.NewLoginThrottle(client, 3, 15*time.Minute),
		logger,
	)
	env.auth.now = clockFn

	env.userSv = NewUserService(env.users, env.resets, env.sessionSv, env.recorder, env.hasher, env.mailer, logger, "https://app.example.com/", time.Hour)
	env.userSv.now = clockFn

	env.inviteSv = NewInviteService(env.invites, env.users, env.recorder, env.hasher, env.mailer, logger, "https://app.example.com", 7*24*time.Hour)
	env.inviteSv.now = clockFn

	env.projectSv = NewProjectService(env.projects, env.users, env.recorder, logger)
	env.projectSv.now = clockFn

	env.docSv = NewDocumentService(env.documents, env.projects, env.store, env.recorder, logger)
	env.docSv.now = clockFn

	env.chatSv = NewChatService(env.chats, env.docSv, env.asst, 10, logger)
	env.chatSv.now = clockFn

	return env
}

func (env *testEnv) createUser(t *testing.T, addr string, role domain.Role, password string) *domain.User {
	t.Helper()
	passwordHash, err := env.hasher.Hash(password)
	require.NoError(t, err)

	u := &domain.User{
		ID:           uuid.New(),
		Email:        addr,
		Name:         strings.Split(addr, "@")[0],
		Role:         role,
		PasswordHash: passwordHash,
		Status:       domain.UserStatusActive,
		CreatedAt:    env.now,
		UpdatedAt:    env.now,
	}
	require.NoError(t, env.users.Create(ctxBg, u))
	return u
}

func principal(u *domain.User) domain.Principal {
	return domain.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}
