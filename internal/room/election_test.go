package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElect_LowestJoinOrderWins(t *testing.T) {
	members := []Member{
		{DeviceId: "dev-B", JoinOrder: 1},
		{DeviceId: "dev-C", JoinOrder: 2},
	}
	winner, ok := Elect(members, "dev-A")
	assert.True(t, ok)
	assert.Equal(t, DeviceId("dev-B"), winner)
}

func TestElect_PrunesLostHost(t *testing.T) {
	members := []Member{
		{DeviceId: "dev-A", JoinOrder: 0},
		{DeviceId: "dev-B", JoinOrder: 1},
	}
	winner, ok := Elect(members, "dev-A")
	assert.True(t, ok)
	assert.Equal(t, DeviceId("dev-B"), winner)
}

func TestElect_TieBrokenByHash(t *testing.T) {
	members := []Member{
		{DeviceId: "dev-B", JoinOrder: 1},
		{DeviceId: "dev-C", JoinOrder: 1},
	}
	winner, ok := Elect(members, "")
	assert.True(t, ok)

	want := DeviceId("dev-B")
	if deterministicHash("dev-C") < deterministicHash("dev-B") {
		want = "dev-C"
	}
	assert.Equal(t, want, winner)
}

func TestElect_NoSurvivors(t *testing.T) {
	members := []Member{
		{DeviceId: "dev-A", JoinOrder: 0},
	}
	_, ok := Elect(members, "dev-A")
	assert.False(t, ok)
}

func TestElect_DeterministicAcrossCalls(t *testing.T) {
	members := []Member{
		{DeviceId: "dev-A", JoinOrder: 0},
		{DeviceId: "dev-B", JoinOrder: 1},
		{DeviceId: "dev-C", JoinOrder: 2},
	}
	w1, _ := Elect(members, "")
	w2, _ := Elect(members, "")
	assert.Equal(t, w1, w2)
}

func TestDeterministicHash_Stable(t *testing.T) {
	assert.Equal(t, deterministicHash("dev-A"), deterministicHash("dev-A"))
}
