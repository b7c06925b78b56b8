package roles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/physum/physbot/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const member = "42"

func (f *fixture) dispatch(t *testing.T, customID string, values ...string) (Reply, error) {
	t.Helper()
	v, _, control, ok := f.svc.Registry().Lookup(customID)
	require.True(t, ok, "custom id %s not registered", customID)
	return v.Handle(context.Background(), f.gw, Event{
		Control:     control,
		GuildID:     guildID,
		UserID:      member,
		MemberRoles: f.gw.MemberRoles(guildID, member),
		Values:      values,
	})
}

func TestSelectOnlyStagesRoles(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindSelect, f.r1, f.r2)

	reply, err := f.dispatch(t, m.View.ids[SelectControl], "11", "12")
	require.NoError(t, err)
	assert.True(t, reply.Deferred)
	assert.Empty(t, f.gw.Grants)

	sel, ok := m.View.Selection(member)
	require.True(t, ok)
	assert.Len(t, sel, 2)

	// A new pick overwrites the old one.
	_, err = f.dispatch(t, m.View.ids[SelectControl], "12")
	require.NoError(t, err)
	sel, _ = m.View.Selection(member)
	require.Len(t, sel, 1)
	assert.Equal(t, "12", sel[0].ID)
}

func TestAddWithoutSelection(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindSelect, f.r1)
	before := testutil.ToFloat64(metrics.RoleMenuInteractions.WithLabelValues(AddControl, "no_selection"))

	reply, err := f.dispatch(t, m.View.ids[AddControl])
	require.NoError(t, err)
	assert.False(t, reply.Deferred)
	assert.Equal(t, NoSelectionMessage, reply.Content)
	assert.Empty(t, f.gw.Grants)

	reply, err = f.dispatch(t, m.View.ids[RemoveControl])
	require.NoError(t, err)
	assert.Equal(t, NoSelectionMessage, reply.Content)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RoleMenuInteractions.WithLabelValues(AddControl, "no_selection")))
}

func TestAddGrantsSelectionAndKeepsIt(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindSelect, f.r1, f.r2)

	_, err := f.dispatch(t, m.View.ids[SelectControl], "11")
	require.NoError(t, err)

	reply, err := f.dispatch(t, m.View.ids[AddControl])
	require.NoError(t, err)
	assert.Equal(t, "Changing roles <@&11> for member <@42>", reply.Content)
	assert.Equal(t, []string{"11"}, f.gw.MemberRoles(guildID, member))
	require.Len(t, f.gw.Grants, 1)

	sel, ok := m.View.Selection(member)
	require.True(t, ok)
	assert.Equal(t, "11", sel[0].ID)

	// Replay: the member already holds the role, nothing is sent to Discord.
	reply, err = f.dispatch(t, m.View.ids[AddControl])
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "<@&11>")
	assert.Len(t, f.gw.Grants, 1)
	assert.Equal(t, []string{"11"}, f.gw.MemberRoles(guildID, member))
}

func TestRemoveRevokesOnlyHeldRoles(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindSelect, f.r1, f.r2)
	f.gw.SetMemberRoles(guildID, member, "11", "99")

	_, err := f.dispatch(t, m.View.ids[SelectControl], "11", "12")
	require.NoError(t, err)
	reply, err := f.dispatch(t, m.View.ids[RemoveControl])
	require.NoError(t, err)

	assert.Equal(t, "Changing roles <@&11>, <@&12> for member <@42>", reply.Content)
	require.Len(t, f.gw.Revokes, 1)
	assert.Equal(t, []string{"11"}, f.gw.Revokes[0].RoleIDs)
	assert.Equal(t, []string{"99"}, f.gw.MemberRoles(guildID, member))

	// Revoking roles the member no longer has succeeds without a call.
	_, err = f.dispatch(t, m.View.ids[RemoveControl])
	require.NoError(t, err)
	assert.Len(t, f.gw.Revokes, 1)
}

// Two clicks racing on the same member grant each role once.
func TestConcurrentAddsGrantOnce(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindSelect, f.r1)
	_, err := f.dispatch(t, m.View.ids[SelectControl], "11")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.View.Handle(context.Background(), f.gw, Event{
				Control: AddControl,
				GuildID: guildID,
				UserID:  member,
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"11"}, f.gw.MemberRoles(guildID, member))
}

func TestToggleSetsExclusiveRole(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindToggle, f.r1, f.r2, f.r3)
	f.gw.SetMemberRoles(guildID, member, "12", "13", "99")

	reply, err := f.dispatch(t, m.View.ids[SelectControl], "11")
	require.NoError(t, err)
	assert.False(t, reply.Deferred)
	assert.Equal(t, "Changing roles <@&11> for member <@42>", reply.Content)
	assert.ElementsMatch(t, []string{"99", "11"}, f.gw.MemberRoles(guildID, member))

	// Picking the held role again changes nothing.
	grants, revokes := len(f.gw.Grants), len(f.gw.Revokes)
	_, err = f.dispatch(t, m.View.ids[SelectControl], "11")
	require.NoError(t, err)
	assert.Len(t, f.gw.Grants, grants)
	assert.Len(t, f.gw.Revokes, revokes)
}

func TestToggleHasNoButtons(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindToggle, f.r1)

	_, err := m.View.Handle(context.Background(), f.gw, Event{Control: AddControl, GuildID: guildID, UserID: member})
	assert.Error(t, err)
}

func TestGrantFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, KindSelect, f.r1)
	_, err := f.dispatch(t, m.View.ids[SelectControl], "11")
	require.NoError(t, err)

	f.gw.GrantErr = errors.New("missing permissions")
	_, err = f.dispatch(t, m.View.ids[AddControl])
	assert.Error(t, err)
}
