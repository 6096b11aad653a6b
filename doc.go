// Package tdms is a pure Go reader for the Technical Data Management
// Streaming (TDMS) file format used by National Instruments (NI) software
// such as LabVIEW and DIAdem.
//
// A TDMS file is a concatenation of self-describing segments. Each segment
// carries metadata describing a hierarchy of named objects (root, groups,
// channels) along with a block of raw sample data. [Open] parses every
// segment up front, building an index that maps each channel's samples to
// their byte extents on disk, then returns a [File] that serves data either
// eagerly (via [Read]) or lazily on demand.
//
//	file, err := tdms.Open("data.tdms")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer file.Close()
//
//	for _, group := range file.Groups() {
//		for _, channel := range group.Channels() {
//			data, err := channel.ReadData(0, channel.Len())
//			if err != nil {
//				log.Fatal(err)
//			}
//			fmt.Println(data)
//		}
//	}
//
// Use [Read] instead of [Open] to materialize every channel's data into
// memory immediately:
//
//	file, err := tdms.Read("data.tdms")
//	if err != nil {
//		log.Fatal(err)
//	}
//	ch := file.MustGroup("group").MustChannel("channel")
//	fmt.Println(ch.Data())
//
// Channel data windows can be read lazily without loading the whole
// channel, by offset and length, by integer or slice index, or by
// streaming chunks in file order:
//
//	window, _ := channel.ReadData(1000, 500)
//	single, _ := channel.At(-1)
//	tail, _ := channel.Slice(-10, channel.Len(), 1)
//
//	for chunk, err := range file.Chunks() {
//		if err != nil {
//			log.Fatal(err)
//		}
//		for path, cc := range chunk.Channels {
//			fmt.Println(path, cc.Offset, cc.Values)
//		}
//	}
//
// Properties attached to the file, a group, or a channel are exposed as
// [Property] values carrying a [DataType] tag and an untyped Go value; use
// a type switch or the channel/group/file Properties() map directly.
//
// The reader emits structured debug events through an injected [Logger]
// interface it does not own; pass [WithLogger] to [Open] or [Read] to wire
// one up (e.g. a [go.uber.org/zap.SugaredLogger] via [NewZapLogger]). By
// default, logging is a no-op.
//
// The scaled values of an eager read can be backed by a temporary
// memory-mapped file instead of the Go heap (raw values stay on the heap);
// pass [WithMemmapDir] to [Read] (it has no effect on
// [Open], which never materializes channel data).
package tdms
