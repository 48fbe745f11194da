package lru

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustBuffers(t *testing.T, slotSize, capacity int) *Cache[[]byte] {
	t.Helper()

	c, err := NewBuffers(slotSize, capacity)
	if err != nil {
		t.Fatalf("NewBuffers(%d, %d): %v", slotSize, capacity, err)
	}

	return c
}

func Test_New_Returns_Error_When_Capacity_Is_Zero(t *testing.T) {
	t.Parallel()

	_, err := NewBuffers(8, 0)

	if got, want := err, ErrInvalidCapacity; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}
}

func Test_Set_Evicts_Least_Recently_Inserted_When_Cache_Full(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 8, 2)

	var evicted []uint32

	onEvict := func(key uint32, _ *[]byte) error {
		evicted = append(evicted, key)

		return nil
	}

	for _, key := range []uint32{1, 2, 3} {
		if _, err := c.Set(key, onEvict); err != nil {
			t.Fatalf("Set(%d): %v", key, err)
		}
	}

	if diff := cmp.Diff([]uint32{1}, evicted); diff != "" {
		t.Fatalf("evicted keys (-want +got):\n%s", diff)
	}

	if _, ok := c.Get(1); ok {
		t.Fatal("Get(1) found evicted key")
	}

	if _, ok := c.Get(2); !ok {
		t.Fatal("Get(2) missing")
	}
}

func Test_Get_Protects_Key_From_Eviction_When_Touched_Before_Insert(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 4, 3)

	for _, key := range []uint32{10, 20, 30} {
		if _, err := c.Set(key, nil); err != nil {
			t.Fatalf("Set(%d): %v", key, err)
		}
	}

	c.Get(10)

	var victim uint32 = Sentinel

	_, err := c.Set(40, func(key uint32, _ *[]byte) error {
		victim = key

		return nil
	})
	if err != nil {
		t.Fatalf("Set(40): %v", err)
	}

	if got, want := victim, uint32(20); got != want {
		t.Fatalf("victim=%d, want=%d", got, want)
	}

	if diff := cmp.Diff([]uint32{40, 10, 30}, c.Keys()); diff != "" {
		t.Fatalf("recency order (-want +got):\n%s", diff)
	}
}

func Test_Set_Returns_Same_Slot_When_Key_Already_Cached(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 4, 2)

	first, err := c.Set(7, nil)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	copy(*first, "abcd")

	second, err := c.Set(7, func(uint32, *[]byte) error {
		t.Fatal("evict called for cached key")

		return nil
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got, want := string(*second), "abcd"; got != want {
		t.Fatalf("slot=%q, want=%q", got, want)
	}

	if got, want := c.Len(), 1; got != want {
		t.Fatalf("Len()=%d, want=%d", got, want)
	}
}

func Test_Set_Keeps_Circular_List_Intact_When_Capacity_Is_One(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 1, 1)

	for key := range uint32(5) {
		slot, err := c.Set(key, func(old uint32, _ *[]byte) error {
			if old != key-1 {
				t.Fatalf("evicted %d, want %d", old, key-1)
			}

			return nil
		})
		if err != nil {
			t.Fatalf("Set(%d): %v", key, err)
		}

		(*slot)[0] = byte(key)

		if diff := cmp.Diff([]uint32{key}, c.Keys()); diff != "" {
			t.Fatalf("keys after Set(%d) (-want +got):\n%s", key, diff)
		}
	}
}

func Test_Set_Leaves_Victim_Cached_When_Evict_Fails(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 1, 1)
	boom := errors.New("boom")

	if _, err := c.Set(1, nil); err != nil {
		t.Fatalf("Set(1): %v", err)
	}

	_, err := c.Set(2, func(uint32, *[]byte) error { return boom })

	if got, want := err, boom; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if !c.Contains(1) || c.Contains(2) {
		t.Fatalf("keys=%v, want [1]", c.Keys())
	}
}

func Test_Set_Rejects_Sentinel_Key(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 1, 1)

	_, err := c.Set(Sentinel, nil)

	if got, want := err, ErrSentinelKey; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}
}

func Test_ForEach_Visits_Every_Live_Entry_Once_When_Callback_Returns_Nil(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 2, 8)
	keys := []uint32{5, 3, 9, 1, 7}

	for _, key := range keys {
		if _, err := c.Set(key, nil); err != nil {
			t.Fatalf("Set(%d): %v", key, err)
		}
	}

	var seen []uint32

	err := c.ForEach(func(key uint32, _ *[]byte) error {
		seen = append(seen, key)

		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	slices.Sort(seen)
	slices.Sort(keys)

	if diff := cmp.Diff(keys, seen); diff != "" {
		t.Fatalf("visited keys (-want +got):\n%s", diff)
	}
}

func Test_ForEach_Stops_And_Propagates_When_Callback_Returns_Error(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 2, 4)

	for _, key := range []uint32{1, 2, 3, 4} {
		if _, err := c.Set(key, nil); err != nil {
			t.Fatalf("Set(%d): %v", key, err)
		}
	}

	stop := errors.New("stop")
	calls := 0

	err := c.ForEach(func(uint32, *[]byte) error {
		calls++
		if calls == 2 {
			return stop
		}

		return nil
	})

	if got, want := err, stop; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := calls, 2; got != want {
		t.Fatalf("calls=%d, want=%d", got, want)
	}
}

func Test_ForEach_Does_Nothing_When_Cache_Empty(t *testing.T) {
	t.Parallel()

	c := mustBuffers(t, 2, 4)

	err := c.ForEach(func(uint32, *[]byte) error {
		t.Fatal("callback invoked on empty cache")

		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
}

// refLRU is a slice-based model: index 0 is most recently used.
type refLRU struct {
	capacity int
	keys     []uint32
}

func (r *refLRU) touch(key uint32) bool {
	i := slices.Index(r.keys, key)
	if i < 0 {
		return false
	}

	r.keys = slices.Delete(r.keys, i, i+1)
	r.keys = slices.Insert(r.keys, 0, key)

	return true
}

func (r *refLRU) set(key uint32) (uint32, bool) {
	if r.touch(key) {
		return 0, false
	}

	var victim uint32

	evicted := false
	if len(r.keys) == r.capacity {
		victim = r.keys[len(r.keys)-1]
		r.keys = r.keys[:len(r.keys)-1]
		evicted = true
	}

	r.keys = slices.Insert(r.keys, 0, key)

	return victim, evicted
}

func Test_Cache_Matches_Reference_Model_When_Seeded_Random_Ops_Applied(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed))
		capacity := 1 + rng.IntN(6)

		c := mustBuffers(t, 1, capacity)
		ref := &refLRU{capacity: capacity}

		for op := range 500 {
			key := uint32(rng.IntN(capacity * 2))

			if rng.IntN(3) == 0 {
				_, got := c.Get(key)
				want := ref.touch(key)

				if got != want {
					t.Fatalf("seed=%d op=%d Get(%d) found=%v, want=%v", seed, op, key, got, want)
				}

				continue
			}

			var gotVictim uint32

			gotEvicted := false

			_, err := c.Set(key, func(k uint32, _ *[]byte) error {
				gotVictim, gotEvicted = k, true

				return nil
			})
			if err != nil {
				t.Fatalf("seed=%d op=%d Set(%d): %v", seed, op, key, err)
			}

			wantVictim, wantEvicted := ref.set(key)
			if gotEvicted != wantEvicted || gotVictim != wantVictim {
				t.Fatalf("seed=%d op=%d Set(%d) evicted=(%d,%v), want=(%d,%v)",
					seed, op, key, gotVictim, gotEvicted, wantVictim, wantEvicted)
			}

			if diff := cmp.Diff(ref.keys, c.Keys()); diff != "" {
				t.Fatalf("seed=%d op=%d recency (-want +got):\n%s", seed, op, diff)
			}
		}
	}
}
