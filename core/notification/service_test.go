package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
	emailsvc "github.com/campusmentor/campusmentor/services/email"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
	"github.com/campusmentor/campusmentor/testutil"
)

type fixture struct {
	svc    *notification.Service
	mailer *emailsvc.ConsoleServiceMock
	clock  *testutil.Clock
	logger *testutil.Logger
	asha   user.User
	ravi   user.User
}

func setup(t *testing.T) fixture {
	db := testutil.OpenDB(t)
	conf := core.NewTestConfig()
	clock := testutil.NewClock()
	logger := new(testutil.Logger)
	userRepo := sqlxrepos.NewUserRepository(db)
	users := user.NewService(userRepo, testutil.NewValidator(), clock)
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)

	svc := notification.NewService(sqlxrepos.NewNotificationRepository(db), clock, logger).
		WithMailer(mailer, users, conf.AppName)

	return fixture{
		svc:    svc,
		mailer: mailer,
		clock:  clock,
		logger: logger,
		asha:   testutil.CreateUser(t, userRepo, "Asha Rao", "asha@campus.edu", user.RoleSenior, "CSE", ""),
		ravi:   testutil.CreateUser(t, userRepo, "Ravi Kumar", "ravi@campus.edu", user.RoleJunior, "CSE", ""),
	}
}

func TestService_Notify_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.svc.Notify(ctx, f.asha.ID, "first", notification.TypeInfo)
	f.clock.Advance(time.Minute)
	f.svc.Notify(ctx, f.asha.ID, "second", notification.TypeSuccess)
	f.svc.Notify(ctx, f.ravi.ID, "not yours", notification.TypeInfo)
	f.svc.Notify(ctx, "", "nobody", notification.TypeInfo)

	ns, err := f.svc.List(ctx, f.asha.ID)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "second", ns[0].Message)
	assert.Equal(t, notification.TypeSuccess, ns[0].Type)
	assert.True(t, ns[0].CreatedAt.Equal(testutil.Epoch.Add(time.Minute)))
	assert.Equal(t, "first", ns[1].Message)
	assert.False(t, ns[1].IsRead)

	assert.Empty(t, f.mailer.Sent(), "only warnings are mailed")
}

func TestService_List_limit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		f.svc.Notify(ctx, f.asha.ID, "ping", notification.TypeInfo)
		f.clock.Advance(time.Second)
	}
	ns, err := f.svc.List(ctx, f.asha.ID)
	require.NoError(t, err)
	assert.Len(t, ns, 20)
}

func TestService_Notify_failureIsLogged(t *testing.T) {
	f := setup(t)

	assert.NotPanics(t, func() {
		f.svc.Notify(context.Background(), "no-such-user", "hello", notification.TypeInfo)
	})
	assert.Len(t, f.logger.Messages("ERROR"), 1)
}

func TestService_Notify_warningIsMailed(t *testing.T) {
	f := setup(t)

	f.svc.Notify(context.Background(), f.ravi.ID, "Your material was rejected.", notification.TypeWarning)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].To, 1)
	assert.Equal(t, "ravi@campus.edu", sent[0].To[0].Address)
	assert.Equal(t, "Ravi Kumar", sent[0].To[0].Name)
	assert.Equal(t, "Your material was rejected.", sent[0].TextContent)
	assert.Equal(t, "warning", sent[0].Category)
	assert.Equal(t, "[CampusMentor] Action needed: You have a new notification", sent[0].FullSubject("[CampusMentor] "))
	assert.Contains(t, sent[0].HTMLContent, "CampusMentor")
}

func TestService_MarkRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.svc.Notify(ctx, f.asha.ID, "one", notification.TypeInfo)
	f.svc.Notify(ctx, f.asha.ID, "two", notification.TypeInfo)
	f.svc.Notify(ctx, f.ravi.ID, "three", notification.TypeInfo)
	ns, err := f.svc.List(ctx, f.asha.ID)
	require.NoError(t, err)
	require.Len(t, ns, 2)

	err = f.svc.MarkRead(ctx, f.ravi.ID, ns[0].ID)
	assert.True(t, core.IsNotFound(err), "a user cannot read someone else's notification")
	assert.True(t, core.IsNotFound(f.svc.MarkRead(ctx, f.asha.ID, "missing")))

	require.NoError(t, f.svc.MarkRead(ctx, f.asha.ID, ns[0].ID))
	ns, err = f.svc.List(ctx, f.asha.ID)
	require.NoError(t, err)
	read := 0
	for _, n := range ns {
		if n.IsRead {
			read++
		}
	}
	assert.Equal(t, 1, read)

	require.NoError(t, f.svc.MarkAllRead(ctx, f.asha.ID))
	ns, err = f.svc.List(ctx, f.asha.ID)
	require.NoError(t, err)
	for _, n := range ns {
		assert.True(t, n.IsRead)
	}

	others, err := f.svc.List(ctx, f.ravi.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.False(t, others[0].IsRead)
}
