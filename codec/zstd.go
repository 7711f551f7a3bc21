package codec

import (
	"github.com/klauspost/compress/zstd"
)

// minSegmentSize keeps segments large enough for zstd to find long matches.
const minSegmentSize = 64 << 10

// maxSegments is the largest count the segment field can hold.
const maxSegments = 1<<16 - 1

// frameOverhead covers the per-segment zstd frame header, block headers,
// checksum and the small-input margin of compressBound.
const frameOverhead = 96

func newZstdEncoder(level, workers int) (*zstd.Encoder, error) {
	return zstd.NewWriter(
		nil,
		zstd.WithEncoderConcurrency(workers),
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithLowerEncoderMem(true),
	)
}

func newZstdDecoder(maxBody int) (*zstd.Decoder, error) {
	limit := uint64(maxBody)
	if limit < 1<<20 {
		limit = 1 << 20
	}
	return zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(limit),
	)
}

// compressBound is the reference zstd worst case for n input bytes.
func compressBound(n int) int {
	bound := n + n>>8
	if n < 128<<10 {
		bound += (128<<10 - n) >> 11
	}
	return bound
}

// worstCaseSize bounds the size of a packet whose body is at most maxBody
// bytes long and is split into at most segments segments.
func worstCaseSize(maxBody, segments int) int {
	return headerSize + segments*(segmentEntrySize+frameOverhead) + compressBound(maxBody)
}

// segmentCount returns how many segments a body of n bytes is split into.
func segmentCount(n, workers int) int {
	count := n / minSegmentSize
	if count < 1 {
		count = 1
	}
	if count > workers {
		count = workers
	}
	if count > maxSegments {
		count = maxSegments
	}
	return count
}

type segment struct {
	start, end int
}

// splitSegments cuts n bytes into count contiguous segments whose sizes
// differ by at most one byte.
func splitSegments(n, count int) []segment {
	if count <= 1 {
		return []segment{{start: 0, end: n}}
	}

	base := n / count
	rem := n % count
	segs := make([]segment, 0, count)

	cur := 0
	for i := 0; i < count; i++ {
		size := base
		if i < rem {
			size++
		}
		segs = append(segs, segment{start: cur, end: cur + size})
		cur += size
	}
	return segs
}
