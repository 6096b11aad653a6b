package tdms

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestBasicSegment covers scenario S1: one segment, two Int32 channels in a
// single group, with properties on both the file root and the group.
func TestBasicSegment(t *testing.T) {
	data := buildFile(buildSegment(segmentSpec{
		newObjList: true,
		objects: []objSpec{
			{
				path: rootPath, noData: true,
				properties: []Property{{Name: "num", Type: DataTypeInt32, Value: int32(15)}},
			},
			{
				path: "/'Group'", noData: true,
				properties: []Property{{Name: "num", Type: DataTypeInt32, Value: int32(10)}},
			},
			{path: "/'Group'/'Channel1'", dataType: DataTypeInt32, numValues: 2},
			{path: "/'Group'/'Channel2'", dataType: DataTypeInt32, numValues: 2},
		},
		rawData: buildFile(int32RawData([]int32{1, 2}), int32RawData([]int32{3, 4})),
	}))

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.Len() != 1 {
		t.Errorf("file.Len() = %d, want 1", f.Len())
	}
	fileNum, err := f.Properties()["num"].AsInt64()
	if err != nil || fileNum != 15 {
		t.Errorf("file property num = %v, %v; want 15, nil", fileNum, err)
	}

	group, err := f.Group("Group")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	groupNum, err := group.Properties()["num"].AsInt64()
	if err != nil || groupNum != 10 {
		t.Errorf("group property num = %v, %v; want 10, nil", groupNum, err)
	}
	if group.Len() != 2 {
		t.Errorf("group.Len() = %d, want 2", group.Len())
	}

	ch1 := group.MustChannel("Channel1")
	vals, err := ch1.All()
	if err != nil {
		t.Fatalf("Channel1.All(): %v", err)
	}
	if diff := cmp.Diff([]any{int32(1), int32(2)}, vals); diff != "" {
		t.Errorf("Channel1 values mismatch (-want +got):\n%s", diff)
	}

	ch2 := group.MustChannel("Channel2")
	vals, err = ch2.All()
	if err != nil {
		t.Fatalf("Channel2.All(): %v", err)
	}
	if diff := cmp.Diff([]any{int32(3), int32(4)}, vals); diff != "" {
		t.Errorf("Channel2 values mismatch (-want +got):\n%s", diff)
	}
}

// TestSubsetReads covers scenario S2: one channel written across six
// segments of varying chunk counts, read back at every offset/length pair.
func TestSubsetReads(t *testing.T) {
	const samplesPerChunk = 10
	chunkCounts := []int{1, 1, 4, 2, 1, 1} // sizes [10,10,40,20,10,10]

	var segments [][]byte
	next := int32(0)
	for i, chunks := range chunkCounts {
		n := chunks * samplesPerChunk
		vals := make([]int32, n)
		for j := range vals {
			vals[j] = next
			next++
		}
		if i == 0 {
			segments = append(segments, buildSegment(segmentSpec{
				newObjList: true,
				objects: []objSpec{
					{path: "/'group'/'channel1'", dataType: DataTypeInt32, numValues: samplesPerChunk},
				},
				rawData: int32RawData(vals),
			}))
		} else {
			segments = append(segments, buildSegment(segmentSpec{
				noMetadata: true,
				rawData:    int32RawData(vals),
			}))
		}
	}

	data := buildFile(segments...)

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	ch, err := f.MustGroup("group").Channel("channel1")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if ch.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", ch.Len())
	}

	for offset := 0; offset <= 100; offset++ {
		for length := 0; length <= 100; length++ {
			got, err := ch.ReadData(offset, length)
			if err != nil {
				t.Fatalf("ReadData(%d,%d): %v", offset, length, err)
			}
			end := offset + length
			if end > 100 {
				end = 100
			}
			want := end - offset
			if want < 0 {
				want = 0
			}
			if len(got) != want {
				t.Fatalf("ReadData(%d,%d): got %d values, want %d", offset, length, len(got), want)
			}
			for i, v := range got {
				if v.(int32) != int32(offset+i) {
					t.Fatalf("ReadData(%d,%d)[%d] = %v, want %d", offset, length, i, v, offset+i)
				}
			}
		}
	}
}

// TestEagerMatchesLazy verifies that Read (eager) produces the same values
// as Open (lazy) for the same multi-segment, multi-chunk file.
func TestEagerMatchesLazy(t *testing.T) {
	seg1 := buildSegment(segmentSpec{
		newObjList: true,
		objects: []objSpec{
			{path: "/'g'/'c'", dataType: DataTypeInt32, numValues: 5},
		},
		rawData: int32RawData([]int32{0, 1, 2, 3, 4}),
	})
	seg2 := buildSegment(segmentSpec{
		noMetadata: true,
		rawData:    int32RawData([]int32{5, 6, 7, 8, 9}),
	})
	data := buildFile(seg1, seg2)

	lazy, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lazy.Close()
	eager, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer eager.Close()

	lazyVals, err := lazy.MustGroup("g").MustChannel("c").All()
	if err != nil {
		t.Fatalf("lazy All(): %v", err)
	}
	eagerVals, err := eager.MustGroup("g").MustChannel("c").Data()
	if err != nil {
		t.Fatalf("eager Data(): %v", err)
	}
	if diff := cmp.Diff(lazyVals, eagerVals); diff != "" {
		t.Errorf("eager/lazy mismatch (-lazy +eager):\n%s", diff)
	}
}

// TestStringChannel covers scenario S3.
func TestStringChannel(t *testing.T) {
	vals := []string{"abcdefg", "qwertyuiop"}
	data := buildFile(buildSegment(segmentSpec{
		newObjList: true,
		objects: []objSpec{
			{path: "/'g'/'strings'", dataType: DataTypeString, numValues: 2, stringVals: vals},
		},
		rawData: stringRawData(vals),
	}))

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	ch := f.MustGroup("g").MustChannel("strings")
	if ch.DataType() != DataTypeString {
		t.Errorf("DataType() = %v, want String", ch.DataType())
	}
	got, err := ch.All()
	if err != nil {
		t.Fatalf("All(): %v", err)
	}
	if diff := cmp.Diff([]any{"abcdefg", "qwertyuiop"}, got); diff != "" {
		t.Errorf("string values mismatch (-want +got):\n%s", diff)
	}
}

// TestEscapedNames covers scenario S4.
func TestEscapedNames(t *testing.T) {
	groupName, channelName := "group's name", "channel's name"
	path := buildPath(groupName, channelName)

	data := buildFile(buildSegment(segmentSpec{
		newObjList: true,
		objects:    []objSpec{{path: path, dataType: DataTypeInt32, numValues: 1}},
		rawData:    int32RawData([]int32{42}),
	}))

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	group, err := f.Group(groupName)
	if err != nil {
		t.Fatalf("Group(%q): %v", groupName, err)
	}
	ch, err := group.Channel(channelName)
	if err != nil {
		t.Fatalf("Channel(%q): %v", channelName, err)
	}
	if ch.Name() != channelName {
		t.Errorf("Name() = %q, want %q", ch.Name(), channelName)
	}
}

// TestSlashInName covers scenario S5.
func TestSlashInName(t *testing.T) {
	groupName, channelName := "01/02/03 something", "04/05/06 another thing"
	path := buildPath(groupName, channelName)

	data := buildFile(buildSegment(segmentSpec{
		newObjList: true,
		objects:    []objSpec{{path: path, dataType: DataTypeInt32, numValues: 1}},
		rawData:    int32RawData([]int32{7}),
	}))

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	group, err := f.Group(groupName)
	if err != nil {
		t.Fatalf("Group(%q): %v", groupName, err)
	}
	if _, err := group.Channel(channelName); err != nil {
		t.Fatalf("Channel(%q): %v", channelName, err)
	}
}

// TestErrorSurfaces covers scenario S6.
func TestErrorSurfaces(t *testing.T) {
	vals := make([]int32, 8)
	for i := range vals {
		vals[i] = int32(i)
	}
	data := buildFile(buildSegment(segmentSpec{
		newObjList: true,
		objects:    []objSpec{{path: "/'g'/'c'", dataType: DataTypeInt32, numValues: 8}},
		rawData:    int32RawData(vals),
	}))

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ch := f.MustGroup("g").MustChannel("c")

	if _, err := ch.ReadData(-1, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ReadData(-1,5) = %v, want ErrInvalidArgument", err)
	}
	if _, err := ch.ReadData(0, -5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ReadData(0,-5) = %v, want ErrInvalidArgument", err)
	}
	if _, err := ch.At(-9); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("At(-9) = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := ch.At(8); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("At(8) = %v, want ErrIndexOutOfRange", err)
	}
	if v, err := ch.At(-1); err != nil || v.(int32) != 7 {
		t.Errorf("At(-1) = %v, %v; want 7, nil", v, err)
	}
	if _, err := ch.Slice(0, 5, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Slice(0,5,0) = %v, want ErrInvalidArgument", err)
	}

	eagerFile, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := f.MustGroup("g").MustChannel("c").RawScalerData(); !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("RawScalerData() = %v, want ErrUnsupportedFeature", err)
	}
	if _, err := ch.Data(); !errors.Is(err, ErrStateError) {
		t.Errorf("lazy Channel.Data() = %v, want ErrStateError", err)
	}
	eagerFile.Close()

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := ch.ReadData(0, 1); !errors.Is(err, ErrStateError) {
		t.Errorf("ReadData after Close = %v, want ErrStateError", err)
	}
}

// TestDAQmxRawDataUnsupported verifies that a DAQmx raw-data-index header
// fails the whole parse rather than silently desyncing the rest of the
// segment's metadata.
func TestDAQmxRawDataUnsupported(t *testing.T) {
	var meta []byte
	meta = appendU32(meta, 1)
	meta = appendLenString(meta, "/'g'/'daqmx'")
	meta = appendU32(meta, 0x00001269)

	lead := make([]byte, 0, leadInSize)
	lead = append(lead, 'T', 'D', 'S', 'm')
	lead = appendU32(lead, uint32(tocMetaData))
	lead = appendU32(lead, 4713)
	lead = appendU64(lead, uint64(len(meta)))
	lead = appendU64(lead, uint64(len(meta)))
	data := append(lead, meta...)

	_, err := Open(data)
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Open() = %v, want ErrUnsupportedFeature", err)
	}
}

// TestInterleavedStringRejected covers Open Question (a): interleaved raw
// data combined with a string channel is malformed.
func TestInterleavedStringRejected(t *testing.T) {
	vals := []string{"a", "b"}
	data := buildFile(buildSegment(segmentSpec{
		newObjList:  true,
		interleaved: true,
		objects: []objSpec{
			{path: "/'g'/'s'", dataType: DataTypeString, numValues: 2, stringVals: vals},
		},
		rawData: stringRawData(vals),
	}))

	_, err := Open(data)
	if !errors.Is(err, ErrMalformedFile) {
		t.Errorf("Open() = %v, want ErrMalformedFile", err)
	}
}

// TestInterleavedNumericChannels covers interleaved raw data with more than
// one sample per chunk: each channel's values must be gathered from their
// own byte lane within the row, not the contiguous-layout offset.
func TestInterleavedNumericChannels(t *testing.T) {
	a := []int32{1, 2, 3}
	b := []int32{10, 20, 30}
	data := buildFile(buildSegment(segmentSpec{
		newObjList:  true,
		interleaved: true,
		objects: []objSpec{
			{path: "/'g'/'a'", dataType: DataTypeInt32, numValues: 3},
			{path: "/'g'/'b'", dataType: DataTypeInt32, numValues: 3},
		},
		rawData: interleaveInt32RawData([][]int32{a, b}),
	}))

	lazy, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lazy.Close()

	eager, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer eager.Close()

	for _, f := range []*File{lazy, eager} {
		group := f.MustGroup("g")

		gotA, err := group.MustChannel("a").All()
		if err != nil {
			t.Fatalf("channel a All(): %v", err)
		}
		if diff := cmp.Diff([]any{int32(1), int32(2), int32(3)}, gotA); diff != "" {
			t.Errorf("channel a mismatch (-want +got):\n%s", diff)
		}

		gotB, err := group.MustChannel("b").All()
		if err != nil {
			t.Fatalf("channel b All(): %v", err)
		}
		if diff := cmp.Diff([]any{int32(10), int32(20), int32(30)}, gotB); diff != "" {
			t.Errorf("channel b mismatch (-want +got):\n%s", diff)
		}

		gotSlice, err := group.MustChannel("b").ReadData(1, 2)
		if err != nil {
			t.Fatalf("channel b ReadData(1,2): %v", err)
		}
		if diff := cmp.Diff([]any{int32(20), int32(30)}, gotSlice); diff != "" {
			t.Errorf("channel b windowed read mismatch (-want +got):\n%s", diff)
		}
	}
}

// TestGroupLevelScalingInheritance verifies that NI_Scale properties
// declared on a group apply to every channel in the group, except a
// channel that declares its own scaling, which wins instead.
func TestGroupLevelScalingInheritance(t *testing.T) {
	data := buildFile(buildSegment(segmentSpec{
		newObjList: true,
		objects: []objSpec{
			{
				path: "/'g'", noData: true,
				properties: []Property{
					strProp("NI_Scale[0]_Scale_Type", "Linear"),
					f64Prop("NI_Scale[0]_Linear_Slope", 2),
					f64Prop("NI_Scale[0]_Linear_Y_Intercept", 1),
				},
			},
			{path: "/'g'/'inherits'", dataType: DataTypeInt32, numValues: 2},
			{
				path: "/'g'/'overrides'", dataType: DataTypeInt32, numValues: 2,
				properties: []Property{
					strProp("NI_Scale[0]_Scale_Type", "Linear"),
					f64Prop("NI_Scale[0]_Linear_Slope", 10),
					f64Prop("NI_Scale[0]_Linear_Y_Intercept", 0),
				},
			},
		},
		rawData: buildFile(int32RawData([]int32{0, 1}), int32RawData([]int32{0, 1})),
	}))

	for _, readFn := range []func(any, ...OpenOption) (*File, error){Open, Read} {
		f, err := readFn(data)
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		group := f.MustGroup("g")

		inherits := group.MustChannel("inherits")
		if inherits.DataType() != DataTypeFloat64 {
			t.Errorf("inherits.DataType() = %v, want Float64 (scaled via group)", inherits.DataType())
		}
		got, err := inherits.All()
		if err != nil {
			t.Fatalf("inherits.All(): %v", err)
		}
		if diff := cmp.Diff([]any{1.0, 3.0}, got); diff != "" {
			t.Errorf("inherits values mismatch (-want +got):\n%s", diff)
		}

		overrides := group.MustChannel("overrides")
		got, err = overrides.All()
		if err != nil {
			t.Fatalf("overrides.All(): %v", err)
		}
		if diff := cmp.Diff([]any{0.0, 10.0}, got); diff != "" {
			t.Errorf("overrides values mismatch (-want +got):\n%s", diff)
		}

		f.Close()
	}
}

// TestChunkStreaming verifies File.Chunks() visits every segment/chunk in
// file order and reassembles the same values as a full read.
func TestChunkStreaming(t *testing.T) {
	seg1 := buildSegment(segmentSpec{
		newObjList: true,
		objects: []objSpec{
			{path: "/'g'/'c'", dataType: DataTypeInt32, numValues: 2},
		},
		rawData: int32RawData([]int32{0, 1, 2, 3}), // two chunks of 2
	})
	data := buildFile(seg1)

	f, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var collected []any
	for chunk, err := range f.Chunks() {
		if err != nil {
			t.Fatalf("Chunks(): %v", err)
		}
		cc, ok := chunk.Channels["/'g'/'c'"]
		if !ok {
			continue
		}
		collected = append(collected, cc.Values...)
	}
	if diff := cmp.Diff([]any{int32(0), int32(1), int32(2), int32(3)}, collected); diff != "" {
		t.Errorf("chunk values mismatch (-want +got):\n%s", diff)
	}
}
