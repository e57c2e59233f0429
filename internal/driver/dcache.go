package driver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"tarn/internal/diag"
	"tarn/internal/project"
	"tarn/internal/source"
)

// Current schema version - increment when Payload format changes
const cacheSchemaVersion uint16 = 1

// DiskCache хранит оптимизированные артефакты по ключу содержимого на диске.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// CachedNote mirrors diag.Note with the file binding stripped. Offsets stay
// valid because the cache key includes the content hash.
type CachedNote struct {
	HasSpan bool
	Start   uint32
	End     uint32
	Msg     string
}

// CachedDiagnostic is one serialized diagnostic. Fixes are not cached; the
// pipeline's diagnostics carry notes only.
type CachedDiagnostic struct {
	Severity uint8
	Code     uint16
	Start    uint32
	End      uint32
	Message  string
	Notes    []CachedNote
}

// Payload stores one optimized file: the result text plus the diagnostics
// the pipeline produced, for replay on a cache hit. Text is nil when the
// run ended in errors.
type Payload struct {
	Schema      uint16
	Path        string
	ContentHash project.Digest
	PassHash    project.Digest
	Text        []byte
	Diags       []CachedDiagnostic
}

// OpenDiskCache initializes and returns a disk cache. An empty dir selects
// the standard per-user location.
func OpenDiskCache(dir string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "tarn")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// cacheKey binds an entry to the exact input bytes and pass list.
func cacheKey(sf *source.File, passes []string) project.Digest {
	return project.Combine(project.Digest(sf.Hash), project.HashStrings(passes))
}

func (c *DiskCache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	// Подкаталог "opt" — чтобы кэш было удобно чистить по видам артефактов.
	return filepath.Join(c.dir, "opt", hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key project.Digest, payload *Payload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// После успешного rename временного файла уже нет.
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to remove temp file: %v\n", err)
		}
	}()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads and deserializes a payload from the disk cache. A missing entry
// or a schema mismatch is a miss, not an error.
func (c *DiskCache) Get(key project.Digest, out *Payload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(out); err != nil {
		return false, err
	}
	if out.Schema != cacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// Dir returns the cache root directory.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим в фоне
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// cacheDiagnostics strips diagnostics down to their serializable core.
func cacheDiagnostics(bag *diag.Bag) []CachedDiagnostic {
	items := bag.Items()
	if len(items) == 0 {
		return nil
	}
	out := make([]CachedDiagnostic, 0, len(items))
	for i := range items {
		d := &items[i]
		cd := CachedDiagnostic{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Start:    d.Primary.Start,
			End:      d.Primary.End,
			Message:  d.Message,
		}
		for _, n := range d.Notes {
			cd.Notes = append(cd.Notes, CachedNote{
				HasSpan: n.Span != (source.Span{}),
				Start:   n.Span.Start,
				End:     n.Span.End,
				Msg:     n.Msg,
			})
		}
		out = append(out, cd)
	}
	return out
}

// replayDiagnostics rebinds cached diagnostics to the freshly loaded file.
func replayDiagnostics(bag *diag.Bag, file source.FileID, diags []CachedDiagnostic) {
	for _, cd := range diags {
		d := diag.Diagnostic{
			Severity: diag.Severity(cd.Severity),
			Code:     diag.Code(cd.Code),
			Message:  cd.Message,
		}
		if cd.Start != cd.End {
			d.Primary = source.Span{File: file, Start: cd.Start, End: cd.End}
		}
		for _, n := range cd.Notes {
			note := diag.Note{Msg: n.Msg}
			if n.HasSpan {
				note.Span = source.Span{File: file, Start: n.Start, End: n.End}
			}
			d.Notes = append(d.Notes, note)
		}
		bag.Add(d)
	}
}
