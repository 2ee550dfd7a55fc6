package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MultiDevice(t *testing.T) {
	r := New()

	assert.True(t, r.Register("u1", "conn-a"))
	assert.False(t, r.Register("u1", "conn-b"))
	assert.Equal(t, []string{"conn-a", "conn-b"}, r.Lookup("u1"))
	assert.True(t, r.IsOnline("u1"))

	assert.False(t, r.Deregister("u1", "conn-a"))
	assert.Equal(t, []string{"conn-b"}, r.Lookup("u1"))
	assert.True(t, r.IsOnline("u1"))

	assert.True(t, r.Deregister("u1", "conn-b"))
	assert.Empty(t, r.Lookup("u1"))
	assert.NotNil(t, r.Lookup("u1"))
	assert.False(t, r.IsOnline("u1"))
}

func TestRegistry_DeregisterIsIdempotent(t *testing.T) {
	r := New()
	r.Register("u1", "conn-a")

	assert.True(t, r.Deregister("u1", "conn-a"))
	assert.False(t, r.Deregister("u1", "conn-a"))
	assert.False(t, r.Deregister("ghost", "conn-x"))

	r.Register("u2", "conn-b")
	assert.False(t, r.Deregister("u1", "conn-b"), "wrong owner must not remove the mapping")
	assert.Equal(t, []string{"conn-b"}, r.Lookup("u2"))
}

func TestRegistry_Snapshots(t *testing.T) {
	r := New()
	r.Register("u2", "conn-c")
	r.Register("u1", "conn-a")
	r.Register("u1", "conn-b")

	assert.Equal(t, []string{"u1", "u2"}, r.AllOnlineUserIDs())
	assert.Equal(t, []string{"conn-a", "conn-b", "conn-c"}, r.AllConnectionIDs())

	owner, ok := r.Owner("conn-c")
	require.True(t, ok)
	assert.Equal(t, "u2", owner)

	users, conns := r.Stats()
	assert.Equal(t, 2, users)
	assert.Equal(t, 3, conns)
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := New()
	r.Register("u1", "conn-a")

	got := r.Lookup("u1")
	got[0] = "mutated"
	assert.Equal(t, []string{"conn-a"}, r.Lookup("u1"))
}

// Random register/deregister sequences must leave Lookup equal to a simple model.
func TestRegistry_MatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := New()
	model := map[string]map[string]bool{}

	users := []string{"u1", "u2", "u3"}
	for i := 0; i < 2000; i++ {
		user := users[rng.Intn(len(users))]
		conn := fmt.Sprintf("conn-%s-%d", user, rng.Intn(4))

		if rng.Intn(2) == 0 {
			r.Register(user, conn)
			if model[user] == nil {
				model[user] = map[string]bool{}
			}
			model[user][conn] = true
		} else {
			wentOffline := r.Deregister(user, conn)
			had := model[user][conn]
			delete(model[user], conn)
			assert.Equal(t, had && len(model[user]) == 0, wentOffline)
		}

		for _, u := range users {
			want := make([]string, 0)
			for c := range model[u] {
				want = append(want, c)
			}
			sort.Strings(want)
			require.Equal(t, want, r.Lookup(u), "step %d user %s", i, u)
			require.Equal(t, len(want) > 0, r.IsOnline(u))
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("conn-%d", i)
			r.Register("u1", conn)
			_ = r.Lookup("u1")
			_ = r.AllOnlineUserIDs()
			r.Deregister("u1", conn)
		}(i)
	}
	wg.Wait()

	assert.False(t, r.IsOnline("u1"))
	users, conns := r.Stats()
	assert.Zero(t, users)
	assert.Zero(t, conns)
}
