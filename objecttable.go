package tdms

import "fmt"

// trackedObject is the persistent, cross-segment state the objectTable
// keeps for one object path: its most recently seen raw-data layout (if
// any) and the union of every property ever declared for it, later
// segments overriding earlier ones.
type trackedObject struct {
	path       string
	hasLayout  bool
	layout     objectLayout
	properties map[string]Property
	propOrder  []string // insertion order, for deterministic Properties() iteration
}

func (o *trackedObject) setProperty(p Property) {
	if o.properties == nil {
		o.properties = make(map[string]Property)
	}
	if _, exists := o.properties[p.Name]; !exists {
		o.propOrder = append(o.propOrder, p.Name)
	}
	o.properties[p.Name] = p
}

// objectTable resolves the TDMS format's cross-segment object inheritance
// rules: the NewObjList restart, carry-over of the previous raw-data
// object order, and the "same layout as previous" raw-data-index header.
type objectTable struct {
	objects     map[string]*trackedObject
	order       []string // current raw-data object order, in segment-declared order
	insertOrder []string // every path ever seen, in first-seen order
}

func newObjectTable() *objectTable {
	return &objectTable{objects: make(map[string]*trackedObject)}
}

func (t *objectTable) ensure(path string) *trackedObject {
	o, ok := t.objects[path]
	if !ok {
		o = &trackedObject{path: path}
		t.objects[path] = o
		t.insertOrder = append(t.insertOrder, path)
	}
	return o
}

// resolvedObject is one object that carries raw data in the segment just
// applied, in the raw-data object order for that segment, with its
// effective layout resolved (following "same as previous" if needed).
type resolvedObject struct {
	path   string
	layout objectLayout
}

// applySegment merges a parsed segment's properties and layouts into the
// table and returns the resolved, ordered list of objects carrying raw
// data in this segment. Objects are merged into the table regardless of
// whether they carry raw data, per spec: properties always accumulate.
func (t *objectTable) applySegment(seg *parsedSegment) ([]resolvedObject, error) {
	if !seg.hasMetadata {
		// Pure raw-data segment: order and layout are exactly the
		// previous segment's, unchanged.
		return t.currentResolved()
	}

	// Merge properties and layouts for every object named in this
	// segment's metadata, regardless of raw-data presence.
	declaresRawData := make(map[string]bool, len(seg.objects))
	for _, obj := range seg.objects {
		state := t.ensure(obj.path)
		for _, p := range obj.properties {
			state.setProperty(p)
		}
		declaresRawData[obj.path] = obj.hasRawData

		if obj.hasRawData && !obj.sameAsPrev {
			state.layout = obj.layout
			state.hasLayout = true
		}
	}

	var newOrder []string
	if seg.newObjectList {
		for _, obj := range seg.objects {
			if obj.hasRawData {
				newOrder = append(newOrder, obj.path)
			}
		}
	} else {
		for _, path := range t.order {
			declared, mentioned := declaresRawData[path]
			if mentioned && !declared {
				continue // this segment explicitly dropped the object's raw data
			}
			newOrder = append(newOrder, path)
		}
		for _, obj := range seg.objects {
			if !obj.hasRawData {
				continue
			}
			if !containsString(newOrder, obj.path) {
				newOrder = append(newOrder, obj.path)
			}
		}
	}
	t.order = newOrder

	return t.currentResolved()
}

// currentResolved builds the resolved object list from the table's
// current order, using each object's current stored layout (which may
// have been set by an earlier segment, for "same as previous" headers or
// metadata-less raw segments).
func (t *objectTable) currentResolved() ([]resolvedObject, error) {
	resolved := make([]resolvedObject, 0, len(t.order))
	for _, path := range t.order {
		state := t.objects[path]
		if !state.hasLayout {
			return nil, fmt.Errorf("%w: object %q has raw data but no known layout", ErrMalformedFile, path)
		}
		resolved = append(resolved, resolvedObject{path: path, layout: state.layout})
	}
	return resolved, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// properties returns the accumulated properties for path in first-seen
// order, or nil if the path has never been mentioned.
func (t *objectTable) properties(path string) []Property {
	state, ok := t.objects[path]
	if !ok {
		return nil
	}
	props := make([]Property, 0, len(state.propOrder))
	for _, name := range state.propOrder {
		props = append(props, state.properties[name])
	}
	return props
}
