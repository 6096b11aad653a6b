package tdms

import (
	"fmt"
	"io"
	"os"
)

// openConfig collects the options a caller supplies to [Open] or [Read].
type openConfig struct {
	logger    Logger
	memmapDir string
}

// OpenOption configures [Open] or [Read].
type OpenOption func(*openConfig)

// WithLogger wires a [Logger] to receive structured debug events while
// parsing and reading. The default is a no-op logger.
func WithLogger(log Logger) OpenOption {
	return func(c *openConfig) { c.logger = log }
}

// WithMemmapDir backs the scaled float64 values of each scaled channel in
// eager mode with a temporary memory-mapped file created under dir instead
// of the Go heap; decoded raw values stay on the heap. Only meaningful for
// [Read]; ignored by [Open].
func WithMemmapDir(dir string) OpenOption {
	return func(c *openConfig) { c.memmapDir = dir }
}

// Open parses source and returns a File in lazy mode: the index is built
// up front, but channel data is decoded on demand. The caller must Close
// the returned File.
//
// source must be a file path (string), an in-memory buffer ([]byte), or
// an already-open handle (io.ReaderAt with a Size() int64 method, or
// io.ReadSeeker).
func Open(source any, opts ...OpenOption) (*File, error) {
	return openFile(source, resolveOpenConfig(opts), false)
}

// Read parses source and eagerly decodes every channel's data, returning
// a fully materialized File. The caller must Close the returned File.
func Read(source any, opts ...OpenOption) (*File, error) {
	return openFile(source, resolveOpenConfig(opts), true)
}

func resolveOpenConfig(opts []OpenOption) openConfig {
	cfg := openConfig{logger: noopLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func openFile(source any, cfg openConfig, eager bool) (*File, error) {
	src, path, err := resolveSource(source)
	if err != nil {
		return nil, err
	}

	var parsed []*parsedSegment
	if path != "" {
		if indexSrc, ok := openIndexSibling(path); ok {
			defer indexSrc.Close()
			parsed, err = readSegmentsUsingIndexFile(src, indexSrc, cfg.logger)
		} else {
			parsed, err = readAllSegments(src, cfg.logger)
		}
	} else {
		parsed, err = readAllSegments(src, cfg.logger)
	}
	if err != nil {
		src.Close()
		return nil, err
	}

	objects := newObjectTable()
	ix := newIndex()
	for _, seg := range parsed {
		resolved, err := objects.applySegment(seg)
		if err != nil {
			src.Close()
			return nil, err
		}
		idxSeg, err := buildIndexSegment(seg, resolved)
		if err != nil {
			src.Close()
			return nil, err
		}
		ix.addSegment(idxSeg)
	}

	f := &File{
		src:       src,
		ix:        ix,
		objects:   objects,
		log:       cfg.logger,
		memmapDir: cfg.memmapDir,
		groups:    make(map[string]*Group),
	}

	if err := buildHierarchy(f, objects, ix); err != nil {
		src.Close()
		return nil, err
	}

	if eager {
		eagerData, err := readEager(src, ix, objects, cfg.memmapDir, cfg.logger)
		if err != nil {
			src.Close()
			return nil, err
		}
		f.eager = eagerData
	}

	return f, nil
}

// readAllSegments walks src from offset 0, parsing every segment in full
// (lead-in plus metadata) until end of file.
func readAllSegments(src byteSource, log Logger) ([]*parsedSegment, error) {
	var segments []*parsedSegment
	offset := int64(0)
	size := src.Size()
	for offset < size {
		seg, err := readSegment(src, offset)
		if err != nil {
			return nil, err
		}
		log.Debugw("parsed segment", "offset", offset, "hasMetadata", seg.hasMetadata, "rawByteLength", seg.rawByteLength)
		segments = append(segments, seg)
		if seg.unfinished {
			break
		}
		offset = seg.nextSegOffset
	}
	return segments, nil
}

// readSegmentsUsingIndexFile builds the segment list by parsing full
// segments (lead-in + metadata) from the index file, but substituting
// each segment's raw-data byte extents with the corresponding segment's
// actual position in the main file (the index file's own lead-in offsets
// describe its own, raw-data-free layout, not the main file's).
func readSegmentsUsingIndexFile(mainSrc, indexSrc byteSource, log Logger) ([]*parsedSegment, error) {
	idxSegments, err := readAllSegments(indexSrc, log)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}

	offset := int64(0)
	size := mainSrc.Size()
	for i, seg := range idxSegments {
		if offset >= size {
			return nil, fmt.Errorf("%w: index file describes more segments than the main file contains", ErrMalformedFile)
		}
		pos, err := readSegmentPositions(mainSrc, offset)
		if err != nil {
			return nil, err
		}
		seg.fileOffset = pos.fileOffset
		seg.rawDataOffset = pos.rawDataOffset
		seg.rawByteLength = pos.rawByteLength
		seg.nextSegOffset = pos.nextSegOffset
		seg.unfinished = pos.unfinished

		log.Debugw("parsed segment via index file", "segment", i, "offset", pos.fileOffset)

		if pos.unfinished {
			break
		}
		offset = pos.nextSegOffset
	}

	return idxSegments, nil
}

// openIndexSibling opens the sibling ".tdms_index" file for path, if one
// exists.
func openIndexSibling(path string) (byteSource, bool) {
	indexPath := path + "_index"
	if _, err := os.Stat(indexPath); err != nil {
		return nil, false
	}
	src, err := newPathSource(indexPath, true)
	if err != nil {
		return nil, false
	}
	return src, true
}

// resolveSource adapts a caller-supplied source value to a byteSource. The
// returned path is non-empty only when source was a file path, enabling
// sibling-index-file lookup.
func resolveSource(source any) (byteSource, string, error) {
	switch v := source.(type) {
	case string:
		src, err := newPathSource(v, true)
		if err != nil {
			return nil, "", err
		}
		return src, v, nil
	case []byte:
		return newBufferSource(v), "", nil
	case io.ReadSeeker:
		src, err := newReadSeekerAtSource(v)
		if err != nil {
			return nil, "", err
		}
		return src, "", nil
	case interface {
		io.ReaderAt
		Size() int64
	}:
		return newReaderAtSource(v, v.Size()), "", nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported source type %T", ErrInvalidArgument, source)
	}
}

// buildHierarchy discovers the File/Group/Channel tree from every path
// the ObjectTable has ever seen, in first-seen order, and compiles each
// channel's scaler.
func buildHierarchy(f *File, objects *objectTable, ix *index) error {
	for _, path := range objects.insertOrder {
		segments, err := parsePath(path)
		if err != nil {
			return err
		}

		switch len(segments) {
		case 0:
			// root object; properties are read directly from objects.
		case 1:
			f.ensureGroup(segments[0])
		case 2:
			group := f.ensureGroup(segments[0])
			ch := &Channel{
				file:  f,
				group: group,
				name:  segments[1],
				path:  path,
			}
			if cat, ok := ix.catalog(path); ok {
				ch.cat = cat
				ch.dtype = cat.dataType
			}
			scaleProps, err := channelScalingProperties(objects, path)
			if err != nil {
				return err
			}
			compiled, hasScale, err := compileScaling(scaleProps)
			if err != nil {
				return fmt.Errorf("channel %q: %w", path, err)
			}
			if hasScale {
				ch.scaler = compiled
				ch.dtype = DataTypeFloat64
			}
			if _, exists := group.channels[segments[1]]; !exists {
				group.channelOrder = append(group.channelOrder, segments[1])
			}
			group.channels[segments[1]] = ch
		default:
			return fmt.Errorf("%w: path %q has too many segments", ErrMalformedFile, path)
		}
	}
	return nil
}

func (f *File) ensureGroup(name string) *Group {
	g, ok := f.groups[name]
	if !ok {
		g = &Group{
			file:     f,
			name:     name,
			path:     buildPath(name, ""),
			channels: make(map[string]*Channel),
		}
		f.groups[name] = g
		f.groupOrder = append(f.groupOrder, name)
	}
	return g
}
