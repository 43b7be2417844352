// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm used for a file
// blob. Tags are stored in manifest entries — changing the values
// breaks archive compatibility.
type CompressionTag uint8

const (
	// CompressionNone stores the blob uncompressed. Chosen for
	// content that does not compress (the sqlite database after
	// VACUUM, for example, is mostly incompressible pages).
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression: modest ratio, very
	// cheap to decode. Chosen when the probe shows some redundancy
	// but not enough to justify zstd.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. Session records
	// are JSON and compress 3-5x, which is why this is the common
	// case for a keepsake data root.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

// errIncompressible is returned when compressed output would not be
// smaller than the input. The caller falls back to CompressionNone.
var errIncompressible = fmt.Errorf("data is incompressible")

// compressBlob compresses a file blob with the chosen algorithm. For
// CompressionNone the input is returned unchanged (no copy).
func compressBlob(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 when it determines the data is
		// incompressible; a result no smaller than the input is
		// equally not worth storing compressed.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// decompressBlob reverses compressBlob. The uncompressedSize must
// match the original length exactly; a mismatch is reported as an
// error rather than silently truncating.
func decompressBlob(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("raw blob: size %d does not match expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		destination := make([]byte, 0, uncompressedSize)
		result, err := zstdDecoder.DecodeAll(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// compress applies the configured algorithm, or probes when none is
// forced. Incompressible data is stored raw either way.
func (a *Archiver) compress(data []byte) ([]byte, CompressionTag, error) {
	if a.forced == nil {
		return compressAuto(data)
	}
	compressed, err := compressBlob(data, *a.forced)
	if err == errIncompressible {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, *a.forced, nil
}

// compressAuto probes the blob and compresses it with whichever
// algorithm the probe selects. Incompressible data is stored raw.
func compressAuto(data []byte) ([]byte, CompressionTag, error) {
	tag := selectCompression(data)
	compressed, err := compressBlob(data, tag)
	if err != nil {
		if err == errIncompressible {
			return data, CompressionNone, nil
		}
		return nil, 0, err
	}
	return compressed, tag, nil
}

// selectCompression probes a blob with zstd and picks an algorithm by
// the achieved ratio: 1.5x or better earns zstd, between 1.1x and
// 1.5x the cheaper LZ4, below that the blob is stored raw. Blobs too
// small to amortize a frame header are always stored raw.
func selectCompression(data []byte) CompressionTag {
	if len(data) < 64 {
		return CompressionNone
	}

	compressed := zstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(compressed))

	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
