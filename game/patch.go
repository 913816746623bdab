// game/patch.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrStale is returned when a patch guard no longer matches the stored room,
// i.e. the transition was already applied or superseded.
var ErrStale = errors.New("stale transition")

// Guard is the precondition of a patch.
type Guard struct {
	Equal  map[string]any // path -> expected current value
	Absent []string       // paths that must not exist yet
}

// Patch is a set of field writes applied atomically to one room document.
// Paths are slash separated, e.g. "players/u1/alive".
type Patch struct {
	Guard  Guard
	Set    map[string]any
	Delete []string
}

func NewPatch() Patch {
	return Patch{Set: map[string]any{}}
}

// Path joins path segments.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

func (p *Patch) set(path string, value any) {
	if p.Set == nil {
		p.Set = map[string]any{}
	}
	p.Set[path] = value
	p.Delete = removePath(p.Delete, path)
}

func (p *Patch) del(path string) {
	delete(p.Set, path)
	if !containsPath(p.Delete, path) {
		p.Delete = append(p.Delete, path)
	}
}

func (p *Patch) expect(path string, value any) {
	if p.Guard.Equal == nil {
		p.Guard.Equal = map[string]any{}
	}
	p.Guard.Equal[path] = value
}

func (p *Patch) expectAbsent(path string) {
	p.Guard.Absent = append(p.Guard.Absent, path)
}

// IsEmpty reports whether the patch writes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Delete) == 0
}

// Merge appends the writes of other to p. The guard of p is kept: other is
// expected to have been computed against the room with p already applied.
func (p Patch) Merge(other Patch) Patch {
	out := Patch{Guard: p.Guard, Set: map[string]any{}}
	for k, v := range p.Set {
		out.Set[k] = v
	}
	out.Delete = append(out.Delete, p.Delete...)
	for _, path := range other.Delete {
		out.del(path)
	}
	for k, v := range other.Set {
		out.set(k, v)
	}
	return out
}

// Check verifies the guard against a JSON room document.
func (g Guard) Check(doc []byte) error {
	for path, want := range g.Equal {
		res := gjson.GetBytes(doc, jsonPath(path, false))
		if !res.Exists() {
			return fmt.Errorf("%w: %s missing", ErrStale, path)
		}
		norm, err := normalize(want)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(res.Value(), norm) {
			return fmt.Errorf("%w: %s is %s", ErrStale, path, res.Raw)
		}
	}
	for _, path := range g.Absent {
		res := gjson.GetBytes(doc, jsonPath(path, false))
		if res.Exists() && res.Type != gjson.Null {
			return fmt.Errorf("%w: %s already set", ErrStale, path)
		}
	}
	return nil
}

// ApplyJSON checks the guard and applies the writes to a JSON room document.
func (p Patch) ApplyJSON(doc []byte) ([]byte, error) {
	if err := p.Guard.Check(doc); err != nil {
		return nil, err
	}

	var err error
	for _, path := range p.Delete {
		doc, err = sjson.DeleteBytes(doc, jsonPath(path, false))
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", path, err)
		}
	}

	// parents sort before their children
	paths := make([]string, 0, len(p.Set))
	for path := range p.Set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		doc, err = sjson.SetBytes(doc, jsonPath(path, true), p.Set[path])
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
	}
	return doc, nil
}

// Apply returns a patched copy of r.
func (p Patch) Apply(r *Room) (*Room, error) {
	doc, err := Encode(r)
	if err != nil {
		return nil, err
	}
	doc, err = p.ApplyJSON(doc)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// Encode serialises a room to its store document.
func Encode(r *Room) ([]byte, error) {
	r.ensureMaps()
	return json.Marshal(r)
}

// Decode parses a store document.
func Decode(doc []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	r.ensureMaps()
	return &r, nil
}

// Clone returns a deep copy of r.
func (r *Room) Clone() *Room {
	doc, err := Encode(r)
	if err != nil {
		return nil
	}
	c, err := Decode(doc)
	if err != nil {
		return nil
	}
	return c
}

func (r *Room) ensureMaps() {
	if r.Players == nil {
		r.Players = map[string]*Player{}
	}
	if r.NkvdPlan == nil {
		r.NkvdPlan = []string{}
	}
	if r.NightActions == nil {
		r.NightActions = map[string]string{}
	}
	if r.Nominations == nil {
		r.Nominations = map[string]string{}
	}
	if r.Votes == nil {
		r.Votes = map[string]string{}
	}
}

// jsonPath converts a slash path to gjson/sjson syntax, escaping ids.
// forSet marks numeric segments as object keys, which only sjson understands.
func jsonPath(path string, forSet bool) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		var b strings.Builder
		numeric := seg != ""
		for _, c := range seg {
			if c < '0' || c > '9' {
				numeric = false
			}
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
				b.WriteRune(c)
				continue
			}
			b.WriteByte('\\')
			b.WriteRune(c)
		}
		if forSet && numeric && i > 0 {
			// force an object key
			segments[i] = ":" + b.String()
			continue
		}
		segments[i] = b.String()
	}
	return strings.Join(segments, ".")
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}

func removePath(paths []string, path string) []string {
	var out []string
	for _, p := range paths {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}
