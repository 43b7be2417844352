// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/codec"
	"github.com/keepsake-ci/keepsake/lib/secret"
)

// Archive format constants.
const (
	// archiveVersion is baked into the magic. Version 1 is the
	// initial format.
	archiveVersion = 1

	// headerSize is the fixed header: 8-byte magic + 1-byte flags +
	// 3 reserved bytes (4-byte alignment for the length field) +
	// 4-byte manifest length + 32-byte manifest hash.
	headerSize = 48

	// flagSealed marks an archive whose manifest and blobs are one
	// age ciphertext. The header itself is always plaintext so a
	// restore knows to unseal before decoding.
	flagSealed = 1 << 0

	// maxManifestSize bounds the manifest allocation when decoding a
	// header, so a corrupted length field cannot ask for gigabytes.
	maxManifestSize = 64 << 20
)

// archiveMagic is the 8-byte archive file signature.
var archiveMagic = [8]byte{'K', 'E', 'E', 'P', 'S', 'K', archiveVersion, 0}

// CacheStatus classifies the outcome of a restore. It feeds the run
// summary, so the next session's transcript records whether this run
// started from history or from scratch.
type CacheStatus string

const (
	CacheHit     CacheStatus = "hit"
	CacheMiss    CacheStatus = "miss"
	CacheCorrupt CacheStatus = "corrupt"
)

// Manifest describes an archive's contents. Encoded with
// deterministic CBOR so the same data root always produces identical
// manifest bytes.
type Manifest struct {
	// CreatedAt is the save time in epoch milliseconds.
	CreatedAt int64

	// Files lists every archived file in walk order (lexical by
	// path). Blobs follow the manifest in the same order.
	Files []FileEntry
}

// FileEntry is one archived file.
type FileEntry struct {
	// Path is the slash-separated path relative to the data root.
	Path string

	// Mode holds the permission bits to restore.
	Mode uint32

	// Size is the uncompressed length; CompressedSize is the stored
	// blob length.
	Size           int64
	CompressedSize int64

	// Compression is the algorithm the blob is stored with.
	Compression CompressionTag

	// Hash is the file-domain keyed hash of the uncompressed
	// content.
	Hash Hash
}

// Config configures an Archiver.
type Config struct {
	// Logger receives debug/info records. Defaults to a discard
	// logger.
	Logger *slog.Logger

	// Clock supplies the manifest timestamp. Defaults to the real
	// clock.
	Clock clock.Clock

	// Recipients are age public keys the archive is sealed to on
	// save. Empty means the archive is written in the clear.
	Recipients []string

	// Identity unseals sealed archives on restore. Borrowed, never
	// closed by the archiver.
	Identity *secret.Buffer

	// Compression forces a blob algorithm: "zstd", "lz4", or "none".
	// Empty, "auto", or an unrecognized value probes each blob and
	// keeps whichever algorithm wins.
	Compression string
}

// Archiver saves a data root to a single archive file and restores it
// with verification. The whole store is buffered in memory during both
// operations; a keepsake data root is session transcripts, which stay
// far below the size where streaming would matter.
type Archiver struct {
	logger     *slog.Logger
	clk        clock.Clock
	recipients []string
	identity   *secret.Buffer
	forced     *CompressionTag
}

// New creates an Archiver.
func New(cfg Config) *Archiver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	archiver := &Archiver{
		logger:     logger,
		clk:        clk,
		recipients: cfg.Recipients,
		identity:   cfg.Identity,
	}
	switch cfg.Compression {
	case "zstd":
		tag := CompressionZstd
		archiver.forced = &tag
	case "lz4":
		tag := CompressionLZ4
		archiver.forced = &tag
	case "none":
		tag := CompressionNone
		archiver.forced = &tag
	}
	return archiver
}

// SaveResult reports what a save wrote.
type SaveResult struct {
	Files        int
	Bytes        int64
	ArchiveBytes int64
}

// RestoreResult reports what a restore did. Status is always set,
// including on failure.
type RestoreResult struct {
	Status CacheStatus
	Files  int
	Bytes  int64
}

// Save archives the data root to archivePath. Dotfiles (the lock
// file, editor droppings) are skipped. The archive is written
// atomically; a save interrupted mid-write leaves any previous
// archive intact.
func (a *Archiver) Save(ctx context.Context, dataRoot, archivePath string) (SaveResult, error) {
	var result SaveResult

	manifest := Manifest{CreatedAt: a.clk.Now().UnixMilli()}
	var blobs bytes.Buffer

	err := filepath.WalkDir(dataRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relative, err := filepath.Rel(dataRoot, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("inspecting %s: %w", path, err)
		}

		compressed, tag, err := a.compress(data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", path, err)
		}

		manifest.Files = append(manifest.Files, FileEntry{
			Path:           filepath.ToSlash(relative),
			Mode:           uint32(info.Mode().Perm()),
			Size:           int64(len(data)),
			CompressedSize: int64(len(compressed)),
			Compression:    tag,
			Hash:           hashFile(data),
		})
		blobs.Write(compressed)
		result.Files++
		result.Bytes += int64(len(data))
		return nil
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("walking data root %s: %w", dataRoot, err)
	}

	manifestBytes, err := codec.Marshal(manifest)
	if err != nil {
		return SaveResult{}, fmt.Errorf("encoding manifest: %w", err)
	}

	archiveBytes, err := a.assemble(manifestBytes, blobs.Bytes())
	if err != nil {
		return SaveResult{}, err
	}
	result.ArchiveBytes = int64(len(archiveBytes))

	if err := writeFileAtomic(archivePath, archiveBytes); err != nil {
		return SaveResult{}, err
	}

	a.logger.Info("state archive saved",
		"path", archivePath,
		"files", result.Files,
		"bytes", result.Bytes,
		"archive_bytes", result.ArchiveBytes,
		"sealed", len(a.recipients) > 0,
	)
	return result, nil
}

// assemble produces the full archive image: header, then manifest and
// blobs, sealed as one ciphertext when recipients are configured.
func (a *Archiver) assemble(manifestBytes, blobBytes []byte) ([]byte, error) {
	var flags byte
	if len(a.recipients) > 0 {
		flags |= flagSealed
	}

	manifestHash := hashManifest(manifestBytes)

	var out bytes.Buffer
	out.Write(archiveMagic[:])
	out.WriteByte(flags)
	out.Write([]byte{0, 0, 0})
	var lengthBytes [4]byte
	binary.LittleEndian.PutUint32(lengthBytes[:], uint32(len(manifestBytes)))
	out.Write(lengthBytes[:])
	out.Write(manifestHash[:])

	if flags&flagSealed == 0 {
		out.Write(manifestBytes)
		out.Write(blobBytes)
		return out.Bytes(), nil
	}

	sealed, err := sealWriter(&out, a.recipients)
	if err != nil {
		return nil, err
	}
	if _, err := sealed.Write(manifestBytes); err != nil {
		return nil, fmt.Errorf("sealing manifest: %w", err)
	}
	if _, err := sealed.Write(blobBytes); err != nil {
		return nil, fmt.Errorf("sealing blobs: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return nil, fmt.Errorf("finalizing seal: %w", err)
	}
	return out.Bytes(), nil
}

// restoredFile is one verified entry waiting to be written.
type restoredFile struct {
	path string
	mode fs.FileMode
	data []byte
}

// Restore unpacks archivePath into dataRoot. A missing archive is a
// cache miss, not an error. Every blob is decompressed and verified
// against its manifest hash before anything touches the data root, so
// a corrupt archive leaves the directory exactly as it was.
func (a *Archiver) Restore(ctx context.Context, archivePath, dataRoot string) (RestoreResult, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			a.logger.Debug("state archive missing", "path", archivePath)
			return RestoreResult{Status: CacheMiss}, nil
		}
		return RestoreResult{Status: CacheCorrupt}, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	files, err := a.decode(ctx, file)
	if err != nil {
		return RestoreResult{Status: CacheCorrupt}, err
	}

	result := RestoreResult{Status: CacheHit}
	for _, entry := range files {
		if err := writeFileAtomic(filepath.Join(dataRoot, entry.path), entry.data); err != nil {
			return RestoreResult{Status: CacheCorrupt}, err
		}
		if err := os.Chmod(filepath.Join(dataRoot, entry.path), entry.mode); err != nil {
			return RestoreResult{Status: CacheCorrupt}, fmt.Errorf("restoring mode of %s: %w", entry.path, err)
		}
		result.Files++
		result.Bytes += int64(len(entry.data))
	}

	a.logger.Info("state archive restored",
		"path", archivePath,
		"files", result.Files,
		"bytes", result.Bytes,
	)
	return result, nil
}

// decode reads, unseals, and verifies a whole archive, returning the
// files ready to write.
func (a *Archiver) decode(ctx context.Context, r io.Reader) ([]restoredFile, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading archive header: %w", err)
	}
	if !bytes.Equal(header[:8], archiveMagic[:]) {
		return nil, fmt.Errorf("not a keepsake archive (bad magic)")
	}
	flags := header[8]
	manifestLength := binary.LittleEndian.Uint32(header[12:16])
	if manifestLength > maxManifestSize {
		return nil, fmt.Errorf("manifest length %d exceeds limit", manifestLength)
	}
	var wantManifestHash Hash
	copy(wantManifestHash[:], header[16:48])

	body := r
	if flags&flagSealed != 0 {
		unsealed, err := unsealReader(r, a.identity)
		if err != nil {
			return nil, err
		}
		body = unsealed
	}

	manifestBytes := make([]byte, manifestLength)
	if _, err := io.ReadFull(body, manifestBytes); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if hashManifest(manifestBytes) != wantManifestHash {
		return nil, fmt.Errorf("manifest hash mismatch")
	}

	var manifest Manifest
	if err := codec.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	files := make([]restoredFile, 0, len(manifest.Files))
	for _, entry := range manifest.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		native := filepath.FromSlash(entry.Path)
		if !filepath.IsLocal(native) {
			return nil, fmt.Errorf("manifest entry %q escapes the data root", entry.Path)
		}

		compressed := make([]byte, entry.CompressedSize)
		if _, err := io.ReadFull(body, compressed); err != nil {
			return nil, fmt.Errorf("reading blob for %s: %w", entry.Path, err)
		}
		data, err := decompressBlob(compressed, entry.Compression, int(entry.Size))
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", entry.Path, err)
		}
		if hashFile(data) != entry.Hash {
			return nil, fmt.Errorf("content hash mismatch for %s", entry.Path)
		}

		files = append(files, restoredFile{
			path: native,
			mode: fs.FileMode(entry.Mode),
			data: data,
		})
	}
	return files, nil
}

// writeFileAtomic writes data via temp file + rename, creating parent
// directories as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".archive-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true
	return nil
}
