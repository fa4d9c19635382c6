package scene

import (
	"fmt"
	"sync"
)

// Component masks. An entity's mask records which components it carries.
const (
	CompTransform uint32 = 1 << iota
	CompName
	CompCamera
	CompMesh
)

// EntityID is an index into the world's storage plus a generation counter,
// so references to despawned entities can be detected as stale.
type EntityID struct {
	ID         uint32 `json:"id"`
	Generation uint32 `json:"generation"`
}

func (e EntityID) String() string {
	return fmt.Sprintf("Id: %d - Generation: %d", e.ID, e.Generation)
}

// Transform positions an entity in the scene.
type Transform struct {
	Translation Vector3 `json:"translation"`
	Rotation    Quat    `json:"rotation"`
	Scale       Vector3 `json:"scale"`
}

// DefaultTransform returns an identity transform at the origin.
func DefaultTransform() Transform {
	return Transform{
		Rotation: QuatIdentity(),
		Scale:    Vector3{X: 1, Y: 1, Z: 1},
	}
}

// Mesh holds wireframe geometry as pairs of line segment endpoints,
// relative to the entity's transform.
type Mesh struct {
	Lines []Vector3 `json:"lines"`
}

type slot struct {
	generation uint32
	alive      bool
	mask       uint32
	transform  Transform
	name       string
	mesh       Mesh
}

// World is the scene's entity store. All methods are safe for concurrent use.
type World struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	order []EntityID

	activeCamera    EntityID
	hasActiveCamera bool
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{}
}

// Spawn allocates a live entity carrying the components in mask.
// Slots of despawned entities are reused with a bumped generation.
func (w *World) Spawn(mask uint32) EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spawn(mask)
}

func (w *World) spawn(mask uint32) EntityID {
	var id EntityID
	if n := len(w.free); n > 0 {
		index := w.free[n-1]
		w.free = w.free[:n-1]
		s := &w.slots[index]
		s.alive = true
		s.mask = mask
		s.transform = DefaultTransform()
		s.name = ""
		s.mesh = Mesh{}
		id = EntityID{ID: index, Generation: s.generation}
	} else {
		w.slots = append(w.slots, slot{
			alive:     true,
			mask:      mask,
			transform: DefaultTransform(),
		})
		id = EntityID{ID: uint32(len(w.slots) - 1)}
	}
	w.order = append(w.order, id)
	return id
}

// Despawn removes an entity, freeing its slot for reuse.
// It reports whether the id referred to a live entity.
func (w *World) Despawn(id EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.lookup(id)
	if s == nil {
		return false
	}
	s.alive = false
	s.generation++
	w.free = append(w.free, id.ID)
	for i, e := range w.order {
		if e == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	if w.hasActiveCamera && w.activeCamera == id {
		w.promoteNextCamera()
	}
	return true
}

// promoteNextCamera makes the oldest live camera the active one.
func (w *World) promoteNextCamera() {
	w.hasActiveCamera = false
	for _, e := range w.order {
		if w.slots[e.ID].mask&CompCamera != 0 {
			w.activeCamera = e
			w.hasActiveCamera = true
			return
		}
	}
}

// Contains reports whether id refers to a live entity.
func (w *World) Contains(id EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookup(id) != nil
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

// Query returns the ids of all live entities carrying every component in
// mask, in spawn order.
func (w *World) Query(mask uint32) []EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	var entities []EntityID
	for _, e := range w.order {
		if w.slots[e.ID].mask&mask == mask {
			entities = append(entities, e)
		}
	}
	return entities
}

// lookup returns the slot for a live entity, or nil if id is stale or unknown.
func (w *World) lookup(id EntityID) *slot {
	if int(id.ID) >= len(w.slots) {
		return nil
	}
	s := &w.slots[id.ID]
	if !s.alive || s.generation != id.Generation {
		return nil
	}
	return s
}

// SetName assigns the name component of a live entity.
func (w *World) SetName(id EntityID, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.lookup(id)
	if s == nil || s.mask&CompName == 0 {
		return false
	}
	s.name = name
	return true
}

// Name returns the name component of a live entity.
func (w *World) Name(id EntityID) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.lookup(id)
	if s == nil || s.mask&CompName == 0 {
		return "", false
	}
	return s.name, true
}

// SetTransform assigns the transform component of a live entity.
func (w *World) SetTransform(id EntityID, transform Transform) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.lookup(id)
	if s == nil || s.mask&CompTransform == 0 {
		return false
	}
	s.transform = transform
	return true
}

// Transform returns the transform component of a live entity.
func (w *World) Transform(id EntityID) (Transform, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.lookup(id)
	if s == nil || s.mask&CompTransform == 0 {
		return Transform{}, false
	}
	return s.transform, true
}

// Mesh returns the mesh component of a live entity.
func (w *World) Mesh(id EntityID) (Mesh, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.lookup(id)
	if s == nil || s.mask&CompMesh == 0 {
		return Mesh{}, false
	}
	return s.mesh, true
}

// ActiveCamera returns the camera entity rendering the scene, if any.
// The first camera spawned becomes active; despawning it promotes the
// next oldest camera.
func (w *World) ActiveCamera() (EntityID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeCamera, w.hasActiveCamera
}

// SpawnCamera creates a named camera entity at position.
func (w *World) SpawnCamera(position Vector3, name string) EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.spawn(CompTransform | CompName | CompCamera)
	s := &w.slots[id.ID]
	s.name = name
	s.transform.Translation = position
	if !w.hasActiveCamera {
		w.activeCamera = id
		w.hasActiveCamera = true
	}
	return id
}

// SpawnCube creates a named wireframe cube entity at position with the
// given edge length.
func (w *World) SpawnCube(position Vector3, size float32, name string) EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.spawn(CompTransform | CompName | CompMesh)
	s := &w.slots[id.ID]
	s.name = name
	s.transform.Translation = position
	half := size / 2
	s.mesh = Mesh{Lines: BoxLines(Vector3{}, Vector3{X: half, Y: half, Z: half})}
	return id
}
