// Package collision resolves which registered drop zones qualify as targets
// for an in-progress drag, respecting acceptance rules, nesting constraints,
// and tie-break priority.
package collision

import (
	"sort"

	"formbuilder/internal/domain"
	"formbuilder/internal/geometry"
)

// ZoneKind classifies a drop zone registration.
type ZoneKind string

const (
	ZoneCanvas    ZoneKind = "canvas"
	ZoneContainer ZoneKind = "container"
	ZoneElement   ZoneKind = "element"
)

// Strategy selects the base geometric pass used to gather raw candidates.
type Strategy string

const (
	StrategyClosestCenter    Strategy = "closest-center"
	StrategyClosestCorners   Strategy = "closest-corners"
	StrategyPointerWithin    Strategy = "pointer-within"
	StrategyRectIntersection Strategy = "rect-intersection"
)

// DropZone is a registered region that can accept a dragged element.
// A nil Accepts list means the zone accepts every element type. That default
// holds for nested containers too, not just the canvas root — deliberately
// permissive; tighten per-container by registering an explicit list.
type DropZone struct {
	ID       string
	Kind     ZoneKind
	ParentID string
	Rect     geometry.Rect
	Priority int
	Accepts  []domain.ElementType
}

// AcceptsType reports whether the zone's acceptance predicate allows t.
func (z DropZone) AcceptsType(t domain.ElementType) bool {
	if z.Accepts == nil {
		return true
	}
	for _, a := range z.Accepts {
		if a == t {
			return true
		}
	}
	return false
}

// DragInfo describes the item currently being dragged. Rect is the item's
// translated rectangle; Pointer is the cursor position (used by the
// pointer-within strategy). Either may be absent mid-gesture.
type DragInfo struct {
	ID      string
	Type    domain.ElementType
	Rect    *geometry.Rect
	Pointer *geometry.Point
}

// Candidate is one valid drop target, ordered best-first in Detect results.
type Candidate struct {
	Zone         DropZone
	Distance     float64
	Depth        int
	DropPosition geometry.Point
}

// Options configures a Detector.
type Options struct {
	Strategy  Strategy
	Tolerance float64 // max center distance in px; 0 disables the check
	GridSize  float64 // snap effective drop positions; 0 disables
	Nested    bool    // deeper-wins ordering instead of flat element-first
}

// Detector holds the registered drop zones for one drag context.
type Detector struct {
	opts  Options
	zones []DropZone
	byID  map[string]DropZone
}

// NewDetector creates a detector; an empty strategy defaults to closest-center.
func NewDetector(opts Options) *Detector {
	if opts.Strategy == "" {
		opts.Strategy = StrategyClosestCenter
	}
	return &Detector{opts: opts, byID: map[string]DropZone{}}
}

// Register adds or replaces a drop zone.
func (d *Detector) Register(z DropZone) {
	if _, exists := d.byID[z.ID]; exists {
		for i := range d.zones {
			if d.zones[i].ID == z.ID {
				d.zones[i] = z
				break
			}
		}
	} else {
		d.zones = append(d.zones, z)
	}
	d.byID[z.ID] = z
}

// Unregister removes a drop zone.
func (d *Detector) Unregister(id string) {
	if _, ok := d.byID[id]; !ok {
		return
	}
	delete(d.byID, id)
	for i := range d.zones {
		if d.zones[i].ID == id {
			d.zones = append(d.zones[:i], d.zones[i+1:]...)
			break
		}
	}
}

// depth walks the parent chain and returns the zone's nesting depth.
// The walk is bounded so a miswired parent cycle cannot spin forever.
func (d *Detector) depth(id string) int {
	depth := 0
	cur := id
	for i := 0; i < len(d.byID)+1; i++ {
		z, ok := d.byID[cur]
		if !ok || z.ParentID == "" {
			return depth
		}
		depth++
		cur = z.ParentID
	}
	return depth
}

// isDescendantOf reports whether zone id sits anywhere under ancestorID.
func (d *Detector) isDescendantOf(id, ancestorID string) bool {
	cur := id
	for i := 0; i < len(d.byID)+1; i++ {
		z, ok := d.byID[cur]
		if !ok || z.ParentID == "" {
			return false
		}
		if z.ParentID == ancestorID {
			return true
		}
		cur = z.ParentID
	}
	return false
}

// cornersDistance is the mean distance between corresponding corners of two
// rects — lower means better aligned.
func cornersDistance(a, b geometry.Rect) float64 {
	ac, bc := a.Corners(), b.Corners()
	sum := 0.0
	for i := range ac {
		sum += geometry.Distance(ac[i], bc[i])
	}
	return sum / 4
}

// Detect returns the valid drop targets for the drag, best first. A drag with
// no collision rectangle (or no pointer, for the pointer-within strategy)
// yields an empty result — mid-gesture invalid states never error.
func (d *Detector) Detect(drag DragInfo) []Candidate {
	if drag.Rect == nil {
		return nil
	}
	if d.opts.Strategy == StrategyPointerWithin && drag.Pointer == nil {
		return nil
	}

	dragCenter := drag.Rect.Center()
	var out []Candidate

	for _, z := range d.zones {
		if z.ID == drag.ID {
			continue
		}
		if d.isDescendantOf(z.ID, drag.ID) {
			continue
		}
		if !z.AcceptsType(drag.Type) {
			continue
		}

		centerDist := geometry.Distance(z.Rect.Center(), dragCenter)
		switch d.opts.Strategy {
		case StrategyClosestCorners:
			// keep all zones; ranking distance uses corner alignment
		case StrategyPointerWithin:
			if !z.Rect.Contains(*drag.Pointer) {
				continue
			}
		case StrategyRectIntersection:
			if !z.Rect.Intersects(*drag.Rect) {
				continue
			}
		}

		if d.opts.Tolerance > 0 && centerDist > d.opts.Tolerance {
			continue
		}

		dist := centerDist
		if d.opts.Strategy == StrategyClosestCorners {
			dist = cornersDistance(z.Rect, *drag.Rect)
		}

		pos := geometry.Point{X: drag.Rect.X, Y: drag.Rect.Y}
		if d.opts.GridSize > 0 {
			pos = geometry.SnapToGrid(pos, d.opts.GridSize)
		}

		out = append(out, Candidate{
			Zone:         z,
			Distance:     dist,
			Depth:        d.depth(z.ID),
			DropPosition: pos,
		})
	}

	d.sortCandidates(out)
	return out
}

func (d *Detector) sortCandidates(cands []Candidate) {
	if d.opts.Nested {
		// Deeper targets win; ties go to the smallest (most specific) zone.
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Depth != cands[j].Depth {
				return cands[i].Depth > cands[j].Depth
			}
			return cands[i].Zone.Rect.Area() < cands[j].Zone.Rect.Area()
		})
		return
	}
	// Flat: element targets outrank containers, ties by distance.
	sort.SliceStable(cands, func(i, j int) bool {
		ri, rj := kindRank(cands[i].Zone.Kind), kindRank(cands[j].Zone.Kind)
		if ri != rj {
			return ri < rj
		}
		return cands[i].Distance < cands[j].Distance
	})
}

func kindRank(k ZoneKind) int {
	switch k {
	case ZoneElement:
		return 0
	case ZoneContainer:
		return 1
	default:
		return 2
	}
}
