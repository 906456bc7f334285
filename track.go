package tev

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Track is a logical timeline that events attach to: a process, a thread or
// worker, or any custom timeline. Tracks are identified by a stable non-zero
// 64-bit uuid. The zero value is the default track, which is only valid
// implicitly: passing it to [WithTrack] is a caller bug.
type Track struct {
	UUID uint64 `json:"uuid"`
}

// IsValid reports whether the track refers to a concrete timeline.
func (t Track) IsValid() bool {
	return t.UUID != 0
}

// NewTrack derives a track with a uuid stable for the given name: the same
// name yields the same track in every process and run.
func NewTrack(name string) Track {
	return Track{UUID: deriveUUID(0, name)}
}

// ChildTrack derives a track nested under the given parent. Distinct parents
// yield distinct uuids for the same name.
func ChildTrack(parent Track, name string) Track {
	return Track{UUID: deriveUUID(parent.UUID, name)}
}

// ProcessTrack returns the track representing the current process.
func ProcessTrack() Track {
	return Track{UUID: deriveUUID(0, fmt.Sprintf("process/%d", os.Getpid()))}
}

func deriveUUID(parent uint64, name string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], parent)

	h := blake3.New()
	h.Write(buf[:])
	h.Write([]byte(name))

	sum := h.Sum(nil)
	uuid := binary.LittleEndian.Uint64(sum[:8])
	if uuid == 0 {
		uuid = 1 // reserve zero for the default track
	}
	return uuid
}

//
//
//

// TrackDescriptor is the serializable metadata payload of a track. The
// registry stores the encoded bytes, so two descriptors with the same logical
// content always compare byte-equal (the encoding is deterministic CBOR).
type TrackDescriptor struct {
	UUID       uint64 `cbor:"uuid" json:"uuid"`
	ParentUUID uint64 `cbor:"parent_uuid,omitempty" json:"parent_uuid,omitempty"`
	Name       string `cbor:"name,omitempty" json:"name,omitempty"`
	ProcessID  int    `cbor:"pid,omitempty" json:"pid,omitempty"`
}

// Encode serializes the descriptor with deterministic CBOR.
func (d TrackDescriptor) Encode() ([]byte, error) {
	return descriptorEncMode.Marshal(d)
}

// DecodeTrackDescriptor deserializes a descriptor payload.
func DecodeTrackDescriptor(data []byte) (TrackDescriptor, error) {
	var d TrackDescriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return TrackDescriptor{}, fmt.Errorf("decode track descriptor: %w", err)
	}
	return d, nil
}

// descriptorEncMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding. Same logical descriptor, same bytes.
var descriptorEncMode cbor.EncMode

func init() {
	var err error
	descriptorEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("tev: CBOR encoder initialization failed: " + err.Error())
	}
}

//
//
//

// trackRegistry maps track uuids to their current descriptor payloads. It is
// shared across sequences and threads, and is synchronized independently of
// the per-sequence emitted-track sets, which need no synchronization at all.
type trackRegistry struct {
	mtx         sync.Mutex
	descriptors map[uint64][]byte
}

func newTrackRegistry() *trackRegistry {
	return &trackRegistry{
		descriptors: map[uint64][]byte{},
	}
}

// update replaces the stored descriptor for a track uuid. Sequences that
// already emitted the previous version are not invalidated: the new version
// reaches only sequences that emit on the track afterwards, or sequences
// reset after the update.
func (tr *trackRegistry) update(uuid uint64, payload []byte) {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	tr.descriptors[uuid] = payload
}

// erase removes a track from the registry. Subsequent first-uses of the uuid
// on any sequence no longer auto-emit a descriptor.
func (tr *trackRegistry) erase(uuid uint64) {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	delete(tr.descriptors, uuid)
}

// payload returns a copy of the stored descriptor bytes for the uuid.
func (tr *trackRegistry) payload(uuid uint64) ([]byte, bool) {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	data, ok := tr.descriptors[uuid]
	if !ok {
		return nil, false
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}
