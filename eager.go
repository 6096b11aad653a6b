package tdms

import "fmt"

// channelData is one channel's fully materialized sample set, produced by
// an eager read. The scaled float64 values of a scaled channel may be
// backed by a memory-mapped temporary file instead of the Go heap; the
// decoded raw values are always heap-resident.
type channelData struct {
	raw       []any             // decoded, unscaled values; always heap
	scaled    []float64         // present only if a scaler was compiled
	scaledMM  *mmapFloat64Array // alternative backing for scaled, if requested
	dtype     DataType          // display dtype: scaled type if scaled, else raw type
	hasScaled bool
}

func (c *channelData) length() int {
	if c.scaledMM != nil {
		return c.scaledMM.len()
	}
	return len(c.raw)
}

// values returns the channel's display values: the stored raw slice
// itself when the channel is unscaled, otherwise a freshly built []any
// slice of the scaled values.
func (c *channelData) values() []any {
	if !c.hasScaled {
		return c.raw
	}
	out := make([]any, c.length())
	if c.scaledMM != nil {
		for i := range out {
			out[i] = c.scaledMM.get(i)
		}
		return out
	}
	for i, v := range c.scaled {
		out[i] = v
	}
	return out
}

func (c *channelData) close() error {
	if c.scaledMM != nil {
		return c.scaledMM.close()
	}
	return nil
}

// readEager decodes every sample of every channel in ix from src,
// compiling and applying each channel's scaler. When memmapDir is
// non-empty, scaled numeric channel output is backed by a temporary
// memory-mapped file under that directory instead of the heap.
func readEager(src byteSource, ix *index, objects *objectTable, memmapDir string, log Logger) (map[string]*channelData, error) {
	result := make(map[string]*channelData, len(ix.channelOrd))

	for _, path := range ix.channelOrd {
		cat := ix.channels[path]
		log.Debugw("reading channel eagerly", "path", path, "dataType", cat.dataType.String(), "samples", cat.totalSamples)

		raw := make([]any, 0, cat.totalSamples)
		for _, ref := range cat.refs {
			seg := ix.segments[ref.segmentIndex]
			vals, err := decodeAllChunkRanges(src, seg, ref.channel)
			if err != nil {
				return nil, fmt.Errorf("channel %q: %w", path, err)
			}
			raw = append(raw, vals...)
		}

		cd := &channelData{raw: raw, dtype: cat.dataType}

		scaleProps, err := channelScalingProperties(objects, path)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", path, err)
		}
		compiled, hasScale, err := compileScaling(scaleProps)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", path, err)
		}
		if hasScale {
			scaled, err := compiled.apply(raw)
			if err != nil {
				return nil, fmt.Errorf("channel %q: %w", path, err)
			}
			cd.hasScaled = true
			cd.dtype = DataTypeFloat64
			if memmapDir != "" {
				arr, err := newMmapFloat64Array(memmapDir, len(scaled))
				if err != nil {
					return nil, fmt.Errorf("channel %q: %w", path, err)
				}
				for i, v := range scaled {
					arr.set(i, v)
				}
				cd.scaledMM = arr
			} else {
				cd.scaled = scaled
			}
		}

		result[path] = cd
	}

	return result, nil
}
