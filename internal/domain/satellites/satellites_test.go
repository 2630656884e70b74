package satellites_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphogm/internal/cypher"
	"graphogm/internal/domain/satellites"
	"graphogm/internal/driver/embedded"
	"graphogm/internal/fixture"
	"graphogm/internal/session"
)

func setup(t *testing.T) *session.Factory {
	t.Helper()
	ctx := context.Background()

	store, err := embedded.Open(ctx, embedded.MemoryPath, nil)
	require.NoError(t, err)

	f, err := fixture.ReadFile(satellites.Files, satellites.FixtureYAML)
	require.NoError(t, err)
	_, err = fixture.Import(ctx, store, f)
	require.NoError(t, err)

	factory, err := session.NewFactory(ctx, store, session.DefaultFactoryConfig(), satellites.Entities()...)
	require.NoError(t, err)
	t.Cleanup(func() { factory.Close(ctx) })
	return factory
}

func TestFixtures(t *testing.T) {
	f, err := fixture.ReadFile(satellites.Files, satellites.FixtureYAML)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Count("Program"))
	assert.Equal(t, 11, f.Count("Satellite"))

	statements, err := fixture.ReadCypher(satellites.Files, satellites.FixtureCypher)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], "(friendship7:Satellite")
}

func TestLoadPrograms(t *testing.T) {
	s := setup(t).OpenSession()

	var programs []*satellites.Program
	require.NoError(t, s.LoadAll(context.Background(), &programs))
	require.Len(t, programs, 4)

	for _, program := range programs {
		assert.NotEmpty(t, program.Satellites, program.Name)
		for _, satellite := range program.Satellites {
			// the many-to-one side sits at the depth limit
			assert.Nil(t, satellite.Program)
		}
	}
}

func TestLoadSatellites(t *testing.T) {
	s := setup(t).OpenSession()

	var all []*satellites.Satellite
	require.NoError(t, s.LoadAll(context.Background(), &all))
	require.Len(t, all, 11)

	for _, satellite := range all {
		require.NotNil(t, satellite.Location, satellite.Name)
		require.NotNil(t, satellite.Orbit, satellite.Name)
		require.NotNil(t, satellite.Program, satellite.Name)
		assert.Equal(t, "LEO", satellite.Orbit.Name)
		assert.Equal(t, satellite.Ref, satellite.Name)
		assert.False(t, satellite.Launched.IsZero())
		assert.False(t, satellite.Updated.IsZero())
	}
}

func TestUpdateSatellite(t *testing.T) {
	factory := setup(t)
	ctx := context.Background()
	s := factory.OpenSession()

	var all []*satellites.Satellite
	require.NoError(t, s.LoadAll(ctx, &all))
	satellite := all[0]
	id := *satellite.ID

	now := time.Now().Truncate(time.Millisecond)
	satellite.Name = "Updated satellite"
	satellite.Updated = now
	require.NoError(t, s.Save(ctx, satellite))

	var updated *satellites.Satellite
	require.NoError(t, factory.OpenSession().Load(ctx, &updated, id))
	assert.Equal(t, "Updated satellite", updated.Name)
	assert.True(t, now.Equal(updated.Updated), "got %s, want %s", updated.Updated, now)
}

// changeFirstSatellite renames the first satellite inside tx and checks the
// change is visible to the transaction; it returns the id and old name
func changeFirstSatellite(t *testing.T, s *session.Session) (int64, string) {
	t.Helper()
	ctx := context.Background()

	var all []*satellites.Satellite
	require.NoError(t, s.LoadAll(ctx, &all))
	require.Len(t, all, 11)

	satellite := all[0]
	id, name := *satellite.ID, satellite.Name
	satellite.Name = "Updated satellite"
	require.NoError(t, s.Save(ctx, satellite))

	s.Clear()
	var refetched *satellites.Satellite
	require.NoError(t, s.Load(ctx, &refetched, id))
	assert.Equal(t, "Updated satellite", refetched.Name)
	return id, name
}

func TestLongTransactionRolledBackOnClose(t *testing.T) {
	ctx := context.Background()
	s := setup(t).OpenSession()

	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	id, name := changeFirstSatellite(t, s)
	require.NoError(t, tx.Close(ctx))
	assert.Equal(t, session.StatusRolledBack, tx.Status())

	s.Clear()
	var reloaded *satellites.Satellite
	require.NoError(t, s.Load(ctx, &reloaded, id))
	assert.Equal(t, name, reloaded.Name)
}

func TestLongTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := setup(t).OpenSession()

	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	defer tx.Close(ctx)

	id, name := changeFirstSatellite(t, s)
	require.NoError(t, tx.Rollback(ctx))

	s.Clear()
	var reloaded *satellites.Satellite
	require.NoError(t, s.Load(ctx, &reloaded, id))
	assert.Equal(t, name, reloaded.Name)
}

func TestLongTransactionCommit(t *testing.T) {
	ctx := context.Background()
	s := setup(t).OpenSession()

	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	defer tx.Close(ctx)

	id, _ := changeFirstSatellite(t, s)
	require.NoError(t, tx.Commit(ctx))

	s.Clear()
	var reloaded *satellites.Satellite
	require.NoError(t, s.Load(ctx, &reloaded, id))
	assert.Equal(t, "Updated satellite", reloaded.Name)
}

func TestSatellitesSortedByRefAscending(t *testing.T) {
	s := setup(t).OpenSession()

	var all []*satellites.Satellite
	require.NoError(t, s.LoadAll(context.Background(), &all, session.WithSort(cypher.NewSortOrder().Add("ref"))))
	require.Len(t, all, 11)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Ref, all[i].Ref)
	}
}

func TestProgramsSortedByRefDescending(t *testing.T) {
	s := setup(t).OpenSession()

	var programs []*satellites.Program
	sort := cypher.NewSortOrder().AddWithDirection(cypher.Descending, "ref")
	require.NoError(t, s.LoadAll(context.Background(), &programs, session.WithSort(sort)))
	require.Len(t, programs, 4)
	for i := 1; i < len(programs); i++ {
		assert.Greater(t, programs[i-1].Ref, programs[i].Ref)
	}
}

func TestMannedSatellitesSortedByRef(t *testing.T) {
	s := setup(t).OpenSession()

	var manned []*satellites.Satellite
	require.NoError(t, s.LoadAll(context.Background(), &manned,
		session.WithFilters(cypher.NewFilter("manned", satellites.Manned)),
		session.WithSort(cypher.NewSortOrder().Add("ref"))))

	require.Len(t, manned, 5)
	for i, satellite := range manned {
		assert.True(t, satellite.IsManned(), satellite.Name)
		if i > 0 {
			assert.Less(t, manned[i-1].Ref, satellite.Ref)
		}
	}
}

func TestCountLaunchedBefore1958(t *testing.T) {
	s := setup(t).OpenSession()

	count, err := s.Count(context.Background(), &satellites.Satellite{},
		cypher.Compare("launched", cypher.LessThan, time.Date(1958, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
