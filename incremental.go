package tev

// maxDynamicCategoryCache bounds the per-sequence dynamic-category cache.
// Past the bound an arbitrary entry is dropped; the evicted name is simply
// re-evaluated on its next use.
const maxDynamicCategoryCache = 256

// incrementalState is the per-sequence mutable state that makes repeated
// serialization cheap: interning dictionaries, the set of tracks whose
// descriptor is already in the sequence's record stream, and the cache of
// dynamic-category decisions. It is exclusively owned by its sequence, so no
// synchronization guards it.
//
// Validity is generation-based: the owning source bumps a process-wide
// generation counter whenever buffer-side incremental caches become invalid
// (session start, explicit clear). A sequence observing a stale generation
// clears everything and re-emits definitions before the next event.
type incrementalState struct {
	generation   uint64
	pendingReset bool // reset record not yet written to the sequence

	dynamicCategories map[string]bool
	seenTracks        map[uint64]struct{}

	eventNameIIDs map[string]uint64
	categoryIIDs  map[string]uint64
	nextIID       uint64
}

func newIncrementalState() *incrementalState {
	st := &incrementalState{}
	st.clear(0)
	st.pendingReset = true
	return st
}

// clear drops every cache and definition set, and adopts the given
// generation. The caller decides whether a reset record is owed.
func (st *incrementalState) clear(generation uint64) {
	st.generation = generation
	st.dynamicCategories = map[string]bool{}
	st.seenTracks = map[uint64]struct{}{}
	st.eventNameIIDs = map[string]uint64{}
	st.categoryIIDs = map[string]uint64{}
	st.nextIID = 1
}

func (st *incrementalState) cacheDynamicCategory(name string, enabled bool) {
	if len(st.dynamicCategories) >= maxDynamicCategoryCache {
		for k := range st.dynamicCategories {
			delete(st.dynamicCategories, k)
			break
		}
	}
	st.dynamicCategories[name] = enabled
}

// internEventName returns the iid for the event name, allocating one on
// first use. fresh reports whether the dictionary entry still needs to be
// written to the sequence.
func (st *incrementalState) internEventName(name string) (iid uint64, fresh bool) {
	if iid, ok := st.eventNameIIDs[name]; ok {
		return iid, false
	}
	iid = st.nextIID
	st.nextIID++
	st.eventNameIIDs[name] = iid
	return iid, true
}

// internCategory is internEventName for the category name dictionary.
func (st *incrementalState) internCategory(name string) (iid uint64, fresh bool) {
	if iid, ok := st.categoryIIDs[name]; ok {
		return iid, false
	}
	iid = st.nextIID
	st.nextIID++
	st.categoryIIDs[name] = iid
	return iid, true
}
