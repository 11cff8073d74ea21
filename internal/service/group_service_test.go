package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
)

func TestAddMembersRejectsDuplicates(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	bob, _ := e.seedUser(t, "bob@example.com", false)

	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)

	d, err := e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID})
	require.NoError(t, err)
	require.Len(t, d.Members, 1)
	assert.Equal(t, "bob@example.com", d.Members[0].Email)

	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "bob@example.com")
}

func TestAddMembersValidation(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	bob, _ := e.seedUser(t, "bob@example.com", false)
	carol, _ := e.seedUser(t, "carol@example.com", false)
	dave, _ := e.seedUser(t, "dave@example.com", false)
	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)

	ghost := primitive.NewObjectID()
	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID, ghost})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), ghost.Hex())

	_, err = e.groups.AddMembers(alice, g.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	// free plan allows two members per group
	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID, carol.ID, dave.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "cannot add more users")

	d, err := e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID, carol.ID, bob.ID})
	require.NoError(t, err)
	assert.Len(t, d.Members, 2)

	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{dave.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMemberCeilingAppliesToAdmins(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.seedUser(t, "alice@example.com", false)
	_, admin := e.seedUser(t, "root@example.com", true)
	var ids []primitive.ObjectID
	for _, email := range []string{"m1@example.com", "m2@example.com", "m3@example.com"} {
		u, _ := e.seedUser(t, email, false)
		ids = append(ids, u.ID)
	}

	g, err := e.groups.CreateGroup(admin, "Club", &alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, g.UserID)

	_, err = e.groups.AddMembers(admin, g.ID, ids)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGroupQuotaAndAccess(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	bob, bctx := e.seedUser(t, "bob@example.com", false)
	_, carol := e.seedUser(t, "carol@example.com", false)

	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)
	_, err = e.groups.CreateGroup(alice, "Second", nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID})
	require.NoError(t, err)

	_, err = e.groups.GetGroup(bctx, g.ID)
	assert.NoError(t, err, "members may read the group")
	_, err = e.groups.RenameGroup(bctx, g.ID, "Bob's club")
	assert.ErrorIs(t, err, ErrNotFound, "but not manage it")
	_, err = e.groups.GetGroup(carol, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	renamed, err := e.groups.RenameGroup(alice, g.ID, "  Run club ")
	require.NoError(t, err)
	assert.Equal(t, "Run club", renamed.Name)

	n, err := e.groups.RemoveMembers(alice, g.ID, []primitive.ObjectID{bob.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = e.groups.GetGroup(bctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachWorkoutOwnership(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	_, bob := e.seedUser(t, "bob@example.com", false)

	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)
	bobs, err := e.workouts.CreateWorkout(bob, WorkoutInput{Title: "Bob's"}, nil)
	require.NoError(t, err)
	_, err = e.groups.AttachWorkout(alice, g.ID, bobs.Workout.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	own, err := e.workouts.CreateWorkout(alice, WorkoutInput{Title: "Alice's"}, nil)
	require.NoError(t, err)
	attached, err := e.groups.AttachWorkout(alice, g.ID, own.Workout.ID)
	require.NoError(t, err)
	require.NotNil(t, attached.WorkoutID)
	assert.Equal(t, own.Workout.ID, *attached.WorkoutID)

	detached, err := e.groups.DetachWorkout(alice, g.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.WorkoutID)
}

func TestDeleteGroupRemovesMembers(t *testing.T) {
	e := newEnv(t)
	_, alice := e.seedUser(t, "alice@example.com", false)
	bob, bctx := e.seedUser(t, "bob@example.com", false)
	g, err := e.groups.CreateGroup(alice, "Club", nil)
	require.NoError(t, err)
	_, err = e.groups.AddMembers(alice, g.ID, []primitive.ObjectID{bob.ID})
	require.NoError(t, err)

	require.NoError(t, e.groups.DeleteGroup(alice, g.ID))

	n, err := e.store.GroupMembers.CountByGroup(bctx, g.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	// the freed slot can be used again
	_, err = e.groups.CreateGroup(alice, "Club again", nil)
	assert.NoError(t, err)

	page, err := e.groups.ListGroups(alice, nil, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Meta.Total)
}
