package friends_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"social_service/internal/friends"
	"social_service/internal/metrics"
	"social_service/internal/models"
	"social_service/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFriendRepo struct {
	users map[string]*models.User
}

func newFakeFriendRepo(ids ...string) *fakeFriendRepo {
	f := &fakeFriendRepo{users: make(map[string]*models.User)}
	for _, id := range ids {
		f.users[id] = &models.User{
			ID:       id,
			Username: "user-" + id,
			Email:    id + "@x.com",
			Image:    models.DefaultImage,
		}
	}
	return f
}

func (f *fakeFriendRepo) UserByID(_ context.Context, id string) (models.User, error) {
	if u, ok := f.users[id]; ok {
		return *u, nil
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeFriendRepo) Users(_ context.Context) ([]models.User, error) {
	var users []models.User
	for _, u := range f.users {
		users = append(users, *u)
	}
	return users, nil
}

func (f *fakeFriendRepo) UsersExcept(_ context.Context, id string) ([]models.User, error) {
	var users []models.User
	for _, u := range f.users {
		if u.ID != id {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (f *fakeFriendRepo) UsersWithRequestFrom(_ context.Context, id string) ([]models.User, error) {
	var users []models.User
	for _, u := range f.users {
		if slices.Contains(u.FriendRequests, id) {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (f *fakeFriendRepo) AddFriendRequest(_ context.Context, targetID, fromID string) error {
	t := f.users[targetID]
	if !slices.Contains(t.FriendRequests, fromID) {
		t.FriendRequests = append(t.FriendRequests, fromID)
	}
	return nil
}

func (f *fakeFriendRepo) RemoveFriendLinks(_ context.Context, targetID, callerID string) error {
	t := f.users[targetID]
	t.Friends = slices.DeleteFunc(t.Friends, func(id string) bool { return id == callerID })
	t.FriendRequests = slices.DeleteFunc(t.FriendRequests, func(id string) bool { return id == callerID })
	return nil
}

func (f *fakeFriendRepo) AcceptFriend(_ context.Context, callerID, senderID string) error {
	caller := f.users[callerID]
	sender := f.users[senderID]

	if !slices.Contains(caller.Friends, senderID) {
		caller.Friends = append(caller.Friends, senderID)
	}
	caller.FriendRequests = slices.DeleteFunc(caller.FriendRequests, func(id string) bool { return id == senderID })

	if !slices.Contains(sender.Friends, callerID) {
		sender.Friends = append(sender.Friends, callerID)
	}
	return nil
}

func (f *fakeFriendRepo) RemoveFriendRequest(_ context.Context, callerID, senderID string) error {
	caller := f.users[callerID]
	caller.FriendRequests = slices.DeleteFunc(caller.FriendRequests, func(id string) bool { return id == senderID })
	return nil
}

func newTestFriends(repo *fakeFriendRepo) *friends.Friends {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.NewCollector(prometheus.NewRegistry())

	return friends.New(log, repo, repo, collector)
}

func TestCandidatesExcludesCaller(t *testing.T) {
	repo := newFakeFriendRepo("a", "b", "c")
	f := newTestFriends(repo)

	users, err := f.Candidates(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, users, 2)

	for _, u := range users {
		assert.NotEqual(t, "a", u.ID)
	}
}

func TestListIncludesEveryone(t *testing.T) {
	repo := newFakeFriendRepo("a", "b", "c")
	f := newTestFriends(repo)

	users, err := f.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestSendRequest(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	f := newTestFriends(repo)

	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))
	assert.Equal(t, []string{"a"}, repo.users["b"].FriendRequests)
}

func TestSendRequestTwice(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	f := newTestFriends(repo)

	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))

	err := f.SendRequest(context.Background(), "a", "b")
	assert.ErrorIs(t, err, friends.ErrAlreadyLinked)
	assert.Equal(t, []string{"a"}, repo.users["b"].FriendRequests)
}

func TestSendRequestToFriend(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	repo.users["b"].Friends = []string{"a"}
	f := newTestFriends(repo)

	err := f.SendRequest(context.Background(), "a", "b")
	assert.ErrorIs(t, err, friends.ErrAlreadyLinked)
}

func TestSendRequestToSelf(t *testing.T) {
	repo := newFakeFriendRepo("a")
	f := newTestFriends(repo)

	err := f.SendRequest(context.Background(), "a", "a")
	assert.ErrorIs(t, err, friends.ErrSelfLink)
	assert.Empty(t, repo.users["a"].FriendRequests)
}

func TestAcceptSelfKeepsOwnIDOutOfFriends(t *testing.T) {
	repo := newFakeFriendRepo("a")
	f := newTestFriends(repo)

	err := f.Accept(context.Background(), "a", "a")
	assert.ErrorIs(t, err, friends.ErrSelfLink)
	assert.NotContains(t, repo.users["a"].Friends, "a")
}

func TestSendRequestUnknownTarget(t *testing.T) {
	f := newTestFriends(newFakeFriendRepo("a"))

	err := f.SendRequest(context.Background(), "a", "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestAcceptMakesFriendshipSymmetric(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	f := newTestFriends(repo)

	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))
	require.NoError(t, f.Accept(context.Background(), "b", "a"))

	assert.Contains(t, repo.users["b"].Friends, "a")
	assert.Contains(t, repo.users["a"].Friends, "b")
	assert.NotContains(t, repo.users["b"].FriendRequests, "a")
}

func TestAcceptUnknownSender(t *testing.T) {
	f := newTestFriends(newFakeFriendRepo("b"))

	err := f.Accept(context.Background(), "b", "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestReject(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	f := newTestFriends(repo)

	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))
	require.NoError(t, f.Reject(context.Background(), "b", "a"))

	assert.Empty(t, repo.users["b"].FriendRequests)
	assert.Empty(t, repo.users["b"].Friends)
	assert.Empty(t, repo.users["a"].Friends)
}

func TestRemoveOnlyCleansTarget(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	f := newTestFriends(repo)

	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))
	require.NoError(t, f.Accept(context.Background(), "b", "a"))

	require.NoError(t, f.Remove(context.Background(), "a", "b"))

	// The target is cleaned but the caller's own record keeps its entry,
	// matching the reference behavior.
	assert.NotContains(t, repo.users["b"].Friends, "a")
	assert.Contains(t, repo.users["a"].Friends, "b")
}

func TestRemoveWithdrawsPendingRequest(t *testing.T) {
	repo := newFakeFriendRepo("a", "b")
	f := newTestFriends(repo)

	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))
	require.NoError(t, f.Remove(context.Background(), "a", "b"))

	assert.Empty(t, repo.users["b"].FriendRequests)
}

func TestRemoveUnknownTarget(t *testing.T) {
	f := newTestFriends(newFakeFriendRepo("a"))

	err := f.Remove(context.Background(), "a", "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestReceived(t *testing.T) {
	repo := newFakeFriendRepo("a", "b", "c")
	f := newTestFriends(repo)

	// a requested friendship with b and c; b's list queries users holding a
	// request from b, which is nobody yet.
	require.NoError(t, f.SendRequest(context.Background(), "a", "b"))
	require.NoError(t, f.SendRequest(context.Background(), "a", "c"))

	got, err := f.Received(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, got, 2)

	none, err := f.Received(context.Background(), "b")
	require.NoError(t, err)
	assert.Empty(t, none)
}
