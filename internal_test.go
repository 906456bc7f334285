package tev

import (
	"fmt"
	"testing"
)

func TestIncrementalStateInterning(t *testing.T) {
	st := newIncrementalState()

	iid1, fresh := st.internEventName("connect")
	if !fresh {
		t.Fatal("first intern should be fresh")
	}

	iid2, fresh := st.internEventName("connect")
	if fresh {
		t.Fatal("second intern should not be fresh")
	}
	if iid1 != iid2 {
		t.Fatalf("iid changed: %d then %d", iid1, iid2)
	}

	// Event names and category names draw from one iid counter, so the ids
	// never collide across dictionaries.
	ciid, fresh := st.internCategory("connect")
	if !fresh {
		t.Fatal("category dictionary is independent of event names")
	}
	if ciid == iid1 {
		t.Fatalf("category iid %d collides with event name iid", ciid)
	}
}

func TestIncrementalStateClear(t *testing.T) {
	st := newIncrementalState()
	st.pendingReset = false

	st.internEventName("connect")
	st.internCategory("net")
	st.seenTracks[42] = struct{}{}
	st.cacheDynamicCategory("custom", true)

	st.clear(7)

	if st.generation != 7 {
		t.Fatalf("generation: want 7, have %d", st.generation)
	}
	if _, fresh := st.internEventName("connect"); !fresh {
		t.Fatal("event name survived clear")
	}
	if _, ok := st.seenTracks[42]; ok {
		t.Fatal("seen track survived clear")
	}
	if _, ok := st.dynamicCategories["custom"]; ok {
		t.Fatal("dynamic category decision survived clear")
	}
}

func TestDynamicCategoryCacheBound(t *testing.T) {
	st := newIncrementalState()

	for i := 0; i < 10*maxDynamicCategoryCache; i++ {
		st.cacheDynamicCategory(fmt.Sprintf("cat-%d", i), true)
		if n := len(st.dynamicCategories); n > maxDynamicCategoryCache {
			t.Fatalf("cache grew to %d, bound is %d", n, maxDynamicCategoryCache)
		}
	}
}
