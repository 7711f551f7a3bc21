// Package lpvc adapts the LPVC lossless RGB24 codec to a frame-at-a-time
// media pipeline.
//
// OpenDecoder and OpenEncoder wrap a codec instance behind a boundary that
// turns every codec failure, panics included, into a logged ErrDecode or
// ErrEncode. Buffers come from an Allocator, so frames may carry row padding;
// the adapter never reads or writes it. The encoder forces key frames on the
// GOP cadence set in Config and takes every packet's key flag from the codec.
package lpvc
