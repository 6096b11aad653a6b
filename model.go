package tdms

import (
	"fmt"
	"iter"
)

// File is an open TDMS file: either in lazy mode, where channel data is
// decoded on demand from the underlying byte source, or in eager mode
// (via [Read]), where every channel's data was decoded once at open time.
type File struct {
	src     byteSource
	ix      *index
	objects *objectTable
	log     Logger

	groupOrder []string
	groups     map[string]*Group

	eager     map[string]*channelData // nil in lazy mode
	memmapDir string
	closed    bool
}

// Group is a named collection of channels within a File.
type Group struct {
	file *File
	name string
	path string

	channelOrder []string
	channels     map[string]*Channel
}

// Channel is one named, typed sample stream within a Group.
type Channel struct {
	file  *File
	group *Group
	name  string
	path  string

	dtype  DataType // display dtype: scaled type if a scaler is present
	scaler scaler
	cat    *channelCatalog
}

// Properties returns the file's root-level properties, keyed by name.
func (f *File) Properties() map[string]Property {
	return propertyMap(f.objects.properties(rootPath))
}

// Groups returns every group in the file, in first-seen order.
func (f *File) Groups() []*Group {
	out := make([]*Group, 0, len(f.groupOrder))
	for _, name := range f.groupOrder {
		out = append(out, f.groups[name])
	}
	return out
}

// Len returns the number of groups in the file.
func (f *File) Len() int { return len(f.groups) }

// Group looks up a group by name.
func (f *File) Group(name string) (*Group, error) {
	g, ok := f.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, name)
	}
	return g, nil
}

// MustGroup looks up a group by name, panicking if it does not exist.
func (f *File) MustGroup(name string) *Group {
	g, err := f.Group(name)
	if err != nil {
		panic(err)
	}
	return g
}

// Close releases the file's underlying byte source. After Close, lazy
// reads on any of the file's channels fail with ErrStateError; the
// File's names, properties, and lengths remain introspectable.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.log.Debugw("closing file")
	var firstErr error
	for _, cd := range f.eager {
		if err := cd.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := f.src.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Path returns the group's TDMS object path.
func (g *Group) Path() string { return g.path }

// Properties returns the group's properties, keyed by name.
func (g *Group) Properties() map[string]Property {
	return propertyMap(g.file.objects.properties(g.path))
}

// Channels returns every channel in the group, in first-seen order.
func (g *Group) Channels() []*Channel {
	out := make([]*Channel, 0, len(g.channelOrder))
	for _, name := range g.channelOrder {
		out = append(out, g.channels[name])
	}
	return out
}

// Len returns the number of channels in the group.
func (g *Group) Len() int { return len(g.channels) }

// Channel looks up a channel by name.
func (g *Group) Channel(name string) (*Channel, error) {
	c, ok := g.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q in group %q", ErrNotFound, name, g.name)
	}
	return c, nil
}

// MustChannel looks up a channel by name, panicking if it does not exist.
func (g *Group) MustChannel(name string) *Channel {
	c, err := g.Channel(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the channel's name.
func (c *Channel) Name() string { return c.name }

// Path returns the channel's TDMS object path.
func (c *Channel) Path() string { return c.path }

// Group returns the channel's owning group.
func (c *Channel) Group() *Group { return c.group }

// DataType returns the channel's display data type: the scaled type
// (always Float64) if a scaler is present, otherwise the raw stored type.
func (c *Channel) DataType() DataType { return c.dtype }

// Len returns the channel's total sample count across every segment.
func (c *Channel) Len() int { return int(c.totalSamples()) }

func (c *Channel) totalSamples() uint64 {
	if c.cat == nil {
		return 0
	}
	return c.cat.totalSamples
}

// Properties returns the channel's properties, keyed by name.
func (c *Channel) Properties() map[string]Property {
	return propertyMap(c.file.objects.properties(c.path))
}

// readOptions configures a single ReadData call.
type readOptions struct {
	scaled bool
}

// ReadOption configures a ReadData call.
type ReadOption func(*readOptions)

// WithScaled controls whether ReadData applies the channel's scaler
// (default true).
func WithScaled(scaled bool) ReadOption {
	return func(o *readOptions) { o.scaled = scaled }
}

func (c *Channel) resolveReadOptions(opts []ReadOption) readOptions {
	o := readOptions{scaled: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ReadData returns up to length samples of the channel starting at
// offset. offset and length must be non-negative; results are truncated
// to the channel's length. By default scaling is applied if the channel
// has a compiled scaler; pass WithScaled(false) for raw values.
func (c *Channel) ReadData(offset, length int, opts ...ReadOption) ([]any, error) {
	if c.file.closed {
		return nil, fmt.Errorf("%w: Cannot read data after the underlying TDMS reader is closed", ErrStateError)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be non-negative", ErrInvalidArgument)
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: length must be non-negative", ErrInvalidArgument)
	}

	o := c.resolveReadOptions(opts)

	if c.file.eager != nil {
		return c.readEagerWindow(offset, length, o.scaled)
	}

	if c.cat == nil {
		return nil, nil
	}
	raw, err := readWindow(c.file.src, c.file.ix, c.cat, uint64(offset), uint64(length))
	if err != nil {
		return nil, err
	}
	if o.scaled && c.scaler != nil {
		scaledVals, err := c.scaler.apply(raw)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(scaledVals))
		for i, v := range scaledVals {
			out[i] = v
		}
		return out, nil
	}
	return raw, nil
}

func (c *Channel) readEagerWindow(offset, length int, scaled bool) ([]any, error) {
	cd, ok := c.file.eager[c.path]
	if !ok {
		return nil, nil
	}
	total := cd.length()
	if offset >= total {
		return []any{}, nil
	}
	end := offset + length
	if end > total {
		end = total
	}
	if !scaled || !cd.hasScaled {
		return append([]any(nil), cd.raw[offset:end]...), nil
	}
	out := make([]any, end-offset)
	if cd.scaledMM != nil {
		for i := range out {
			out[i] = cd.scaledMM.get(offset + i)
		}
	} else {
		for i := range out {
			out[i] = cd.scaled[offset+i]
		}
	}
	return out, nil
}

// At returns the single sample at index i. Negative indices count from
// the end of the channel.
func (c *Channel) At(i int) (any, error) {
	total := c.Len()
	idx := i
	if idx < 0 {
		idx += total
	}
	if idx < 0 || idx >= total {
		return nil, fmt.Errorf("%w: index %d out of range for channel of length %d", ErrIndexOutOfRange, i, total)
	}
	vals, err := c.ReadData(idx, 1)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: index %d out of range for channel of length %d", ErrIndexOutOfRange, i, total)
	}
	return vals[0], nil
}

// Slice returns the samples selected by Python-style slice semantics
// start:stop:step. step must be non-zero; negative step reverses
// direction. Out-of-range start/stop values are clipped, not rejected.
func (c *Channel) Slice(start, stop, step int) ([]any, error) {
	if step == 0 {
		return nil, fmt.Errorf("%w: Step size cannot be zero", ErrInvalidArgument)
	}
	total := c.Len()
	first, st, count := sliceIndices(total, &start, &stop, step)
	if count == 0 {
		return []any{}, nil
	}

	if st == 1 {
		return c.ReadData(first, count)
	}
	if st == -1 {
		last := first - (count - 1)
		vals, err := c.ReadData(last, count)
		if err != nil {
			return nil, err
		}
		reversed := make([]any, count)
		for i, v := range vals {
			reversed[count-1-i] = v
		}
		return reversed, nil
	}

	out := make([]any, count)
	for i := 0; i < count; i++ {
		v, err := c.At(first + i*st)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// All returns every sample of the channel in order, equivalent to
// Slice(0, Len(), 1).
func (c *Channel) All() ([]any, error) {
	return c.ReadData(0, c.Len())
}

// Data returns the channel's fully materialized data, available only in
// eager mode (a File opened with Read). In lazy mode it returns
// ErrStateError.
func (c *Channel) Data() ([]any, error) {
	if c.file.eager == nil {
		return nil, fmt.Errorf("%w: Channel data has not been read", ErrStateError)
	}
	cd, ok := c.file.eager[c.path]
	if !ok {
		return []any{}, nil
	}
	return cd.values(), nil
}

// RawData returns the channel's unscaled data, available only in eager
// mode.
func (c *Channel) RawData() ([]any, error) {
	if c.file.eager == nil {
		return nil, fmt.Errorf("%w: Channel data has not been read", ErrStateError)
	}
	cd, ok := c.file.eager[c.path]
	if !ok {
		return []any{}, nil
	}
	return cd.raw, nil
}

// RawScalerData returns the channel's pre-scaling raw scaler array, as
// produced by a format-changing DAQmx scaler. DAQmx scaler decoding is
// unsupported.
func (c *Channel) RawScalerData() ([]any, error) {
	return nil, fmt.Errorf("%w: DAQmx raw scaler data", ErrUnsupportedFeature)
}

// TimeTrack synthesizes a time axis for the channel from its
// wf_start_offset and wf_increment properties: t[i] = start + i*increment.
// wf_start_offset defaults to 0 if absent.
func (c *Channel) TimeTrack() ([]float64, error) {
	props := c.Properties()
	incProp, ok := props["wf_increment"]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q has no wf_increment property", ErrNotFound, c.path)
	}
	increment, err := incProp.AsFloat64()
	if err != nil {
		return nil, err
	}
	var start float64
	if startProp, ok := props["wf_start_offset"]; ok {
		start, err = startProp.AsFloat64()
		if err != nil {
			return nil, err
		}
	}

	n := c.Len()
	track := make([]float64, n)
	for i := range track {
		track[i] = start + float64(i)*increment
	}
	return track, nil
}

// Chunks streams every channel's data one (segment, chunk) at a time, in
// file order.
func (f *File) Chunks() iter.Seq2[DataChunk, error] {
	return streamChunks(f.src, f.ix, "")
}

// Chunks streams this channel's data one (segment, chunk) at a time, in
// file order.
func (c *Channel) Chunks() iter.Seq2[ChunkChannel, error] {
	return func(yield func(ChunkChannel, error) bool) {
		for chunk, err := range streamChunks(c.file.src, c.file.ix, c.path) {
			if err != nil {
				yield(ChunkChannel{}, err)
				return
			}
			cc, ok := chunk.Channels[c.path]
			if !ok {
				continue
			}
			if !yield(cc, nil) {
				return
			}
		}
	}
}

// propertyMap converts an ordered property list into a name-keyed map.
func propertyMap(props []Property) map[string]Property {
	m := make(map[string]Property, len(props))
	for _, p := range props {
		m[p.Name] = p
	}
	return m
}

