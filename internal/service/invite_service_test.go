package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
)

func TestInviteRegistrationEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin, "admin-password")

	created, err := env.inviteSv.CreateInvite(ctxBg, principal(admin), CreateInviteRequest{Email: "Alice@Example.com"}, testRC)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Invite.Email)
	assert.Equal(t, domain.RoleEmployee, created.Invite.Role)
	assert.NotEqual(t, created.Token, created.Invite.TokenHash)
	assert.Equal(t, hashToken(created.Token), created.Invite.TokenHash)

	mails := env.mailer.messages()
	require.Len(t, mails, 1)
	assert.Equal(t, "alice@example.com", mails[0].To)
	assert.Contains(t, mails[0].HTML, "https://app.example.com/register?token=")

	_, err = env.inviteSv.ValidateInvite(ctxBg, created.Token)
	require.NoError(t, err)

	user, err := env.inviteSv.Register(ctxBg, RegisterRequest{Token: created.Token, Name: "Alice", Password: "alice-password"}, testRC)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEmployee, user.Role)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = env.inviteSv.Register(ctxBg, RegisterRequest{Token: created.Token, Name: "Alice again", Password: "alice-password"}, testRC)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	_, err = env.inviteSv.ValidateInvite(ctxBg, created.Token)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	res, err := env.auth.Login(ctxBg, LoginRequest{Email: "alice@example.com", Password: "alice-password"}, testRC)
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)

	require.Len(t, env.activities.withAction("INVITE_CREATE"), 1)
	registered := env.activities.withAction("REGISTER")
	require.Len(t, registered, 1)
	assert.Equal(t, domain.StatusSuccess, registered[0].Status)
}

func TestConcurrentRedemptionCreatesOneUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin, "admin-password")

	created, err := env.inviteSv.CreateInvite(ctxBg, principal(admin), CreateInviteRequest{Email: "race@example.com", Role: "manager"}, testRC)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, created.Invite.Role)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.inviteSv.Register(ctxBg, RegisterRequest{Token: created.Token, Name: "Racer", Password: "race-password"}, testRC)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	_, total, err := env.users.List(ctxBg, 10, 0, "race@")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestInviteRejections(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin, "admin-password")

	_, err := env.inviteSv.CreateInvite(ctxBg, principal(admin), CreateInviteRequest{Email: "admin@example.com"}, testRC)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))

	_, err = env.inviteSv.Register(ctxBg, RegisterRequest{Token: "made-up", Name: "X", Password: "whatever-123"}, testRC)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
	assert.EqualError(t, err, "invalid or expired invite")

	created, err := env.inviteSv.CreateInvite(ctxBg, principal(admin), CreateInviteRequest{Email: "late@example.com"}, testRC)
	require.NoError(t, err)

	env.now = env.now.Add(8 * 24 * time.Hour)
	_, err = env.inviteSv.Register(ctxBg, RegisterRequest{Token: created.Token, Name: "Late", Password: "late-password"}, testRC)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestInviteSurvivesMailFailure(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", domain.RoleAdmin, "admin-password")
	env.mailer.err = errBoom

	created, err := env.inviteSv.CreateInvite(ctxBg, principal(admin), CreateInviteRequest{Email: "carol@example.com"}, testRC)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Link)
}
