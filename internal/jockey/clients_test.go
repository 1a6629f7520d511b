package jockey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/crossing"
	"github.com/banshee-data/lj-costmap/internal/place"
	"github.com/banshee-data/lj-costmap/internal/timeutil"
)

func TestSnapshotStore_AwaitFresh(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := NewSnapshotStore(clock)

	_, ok := s.Latest()
	assert.False(t, ok)

	old := openGrid()
	s.Submit(old)
	s.ClearFresh()

	got := make(chan *costmap.Grid, 1)
	go func() {
		g, err := s.AwaitFresh(context.Background(), time.Second)
		assert.NoError(t, err)
		got <- g
	}()
	require.Eventually(t, func() bool { return clock.PendingTimers() == 1 }, time.Second, time.Millisecond)

	fresh := openGrid()
	s.Submit(fresh)
	select {
	case g := <-got:
		assert.Same(t, fresh, g)
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitFresh did not return")
	}

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Same(t, fresh, latest)
	assert.Equal(t, uint64(2), s.Submitted())
}

func TestSnapshotStore_FreshWithoutWaiting(t *testing.T) {
	s := NewSnapshotStore(timeutil.NewMockClock(time.Unix(0, 0)))
	s.ClearFresh()
	g := openGrid()
	s.Submit(g)

	got, err := s.AwaitFresh(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, g, got)
}

func TestSnapshotStore_Timeout(t *testing.T) {
	s := NewSnapshotStore(timeutil.NewMockClock(time.Unix(0, 0)))
	s.Submit(openGrid())
	s.ClearFresh()

	_, err := s.AwaitFresh(context.Background(), 0)
	assert.ErrorIs(t, err, ErrDataTimeout)
	assert.Equal(t, DataTimeout, KindOf(err))
}

func TestSnapshotStore_Cancelled(t *testing.T) {
	s := NewSnapshotStore(timeutil.NewMockClock(time.Unix(0, 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AwaitFresh(ctx, time.Minute)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)

	s.Submit(nil)
	assert.Zero(t, s.Submitted(), "nil grids are ignored")
}

type failingDetector struct{ err error }

func (d failingDetector) Detect(*costmap.Grid, crossing.Options) (place.Profile, place.Crossing, error) {
	return place.Profile{}, place.Crossing{}, d.err
}

func TestDescriptorBuilder(t *testing.T) {
	t.Run("nil grid", func(t *testing.T) {
		_, _, err := NewDescriptorBuilder(nil).Build(nil, BuildParams{})
		assert.Equal(t, DescriptorBuildError, KindOf(err))
	})
	t.Run("detector error", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := NewDescriptorBuilder(failingDetector{err: boom}).Build(openGrid(), BuildParams{})
		assert.ErrorIs(t, err, ErrDescriptorBuild)
		assert.ErrorIs(t, err, boom)
	})
	t.Run("empty profile", func(t *testing.T) {
		_, _, err := NewDescriptorBuilder(failingDetector{}).Build(openGrid(), BuildParams{})
		assert.ErrorIs(t, err, ErrDescriptorBuild)
	})
	t.Run("default detector", func(t *testing.T) {
		p, c, err := NewDescriptorBuilder(nil).Build(openGrid(), BuildParams{FrontierWidth: 0.5, MaxFrontierAngle: 0.785})
		require.NoError(t, err)
		assert.Len(t, p.Samples, crossing.DefaultBeams)
		assert.NotEmpty(t, c.Frontiers)
	})
}

func TestMapInterfaceClient_Register(t *testing.T) {
	m := newFakeMap()
	c := NewMapInterfaceClient(m, "pp", "cx")
	require.NoError(t, c.RegisterInterfaces(context.Background()))

	want := []InterfaceSpec{
		{Name: "pp", MessageType: PlaceProfileType, Getter: true},
		{Name: "pp", MessageType: PlaceProfileType, Setter: true},
		{Name: "cx", MessageType: CrossingType, Setter: true},
	}
	assert.Equal(t, want, m.interfaces)
	assert.Equal(t, "pp", c.PlaceProfileInterface())
	assert.Equal(t, "cx", c.CrossingInterface())
}

func TestMapInterfaceClient_RegisterRejected(t *testing.T) {
	m := newFakeMap()
	m.rejectType = CrossingType
	c := NewMapInterfaceClient(m, "pp", "cx")

	err := c.RegisterInterfaces(context.Background())
	assert.ErrorIs(t, err, ErrRegistrationRejected)
	assert.Contains(t, err.Error(), "cx")

	_, err = c.SetPlaceProfile(context.Background(), 1, place.Profile{})
	assert.Equal(t, ServiceUnavailable, KindOf(err), "unregistered client refuses calls")
}

func TestMapInterfaceClient_GetErrors(t *testing.T) {
	m := newFakeMap()
	c := NewMapInterfaceClient(m, "pp", "cx")
	require.NoError(t, c.RegisterInterfaces(context.Background()))

	_, _, err := c.GetPlaceProfile(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUnknownVertex)

	m.getErr = errors.New("deadline exceeded")
	_, _, err = c.GetPlaceProfile(context.Background(), 9)
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	m.getErr = nil
	m.data["pp"] = map[place.VertexID][]byte{9: []byte("not json")}
	_, _, err = c.GetPlaceProfile(context.Background(), 9)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestDissimilarityClient_CompareOneRejectsMalformed(t *testing.T) {
	d := &fakeDissim{scores: map[place.VertexID]float64{}}
	c := NewDissimilarityClient(badScorer{d}, "localize_in_vertex", "compute_dissimilarity", nil)

	_, err := c.CompareOne(context.Background(), place.Profile{}, place.VertexProfile{Vertex: 4})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

// badScorer answers every request with a score for the wrong vertex.
type badScorer struct{ *fakeDissim }

func (b badScorer) Compare(ctx context.Context, endpoint string, req place.CompareRequest) (place.CompareResponse, error) {
	return place.CompareResponse{Scores: []place.Score{{Vertex: -1}}}, nil
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, ServiceUnavailable, KindOf(errors.New("plain")))
	assert.Equal(t, UnknownVertex, KindOf(ErrUnknownVertex))

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("datatimeout")))
	assert.Equal(t, DataTimeout, k)
	assert.Error(t, k.UnmarshalText([]byte("nope")))
}

func TestParseAction(t *testing.T) {
	tests := map[string]Action{
		"GET_VERTEX_DESCRIPTOR": GetVertexDescriptor,
		"localize_in_vertex":    LocalizeInVertex,
		"GET_SIMILARITY":        GetSimilarity,
		"GET_DISSIMILARITY":     GetSimilarity,
	}
	for in, want := range tests {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAction("DANCE")
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = ParseAction("PERSIST")
	assert.ErrorIs(t, err, ErrUnknownAction)

	var a Action
	require.NoError(t, a.UnmarshalText([]byte("PERSIST")))
	assert.Equal(t, PersistDescriptors, a)
}
