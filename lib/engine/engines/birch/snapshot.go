package birch

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/docbench/docbench/lib/engine"
	"github.com/docbench/docbench/lib/engine/engines/birch/internal"
)

// Snapshot file format identifier and version.
const (
	magicNum     = "BIRCHDB\x00"
	birchVersion = uint32(1)
)

// --------------------------------------------------------------------------
// Snapshot Types
// --------------------------------------------------------------------------

type snapshotDoc struct {
	Class  string            `msgpack:"c"`
	Fields map[string]string `msgpack:"f"`
}

type snapshot struct {
	Classes []string               `msgpack:"classes"`
	Docs    map[string]snapshotDoc `msgpack:"docs"`
	Dict    []internal.DictEntry   `msgpack:"dict"`
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// flushSnapshot writes the full store state to disk. The write goes to a
// temp file first and is moved into place, so a crash mid-write leaves the
// previous snapshot intact.
func (s *store) flushSnapshot() error {
	snap := snapshot{
		Docs: make(map[string]snapshotDoc),
		Dict: s.dict.Entries(),
	}

	s.classes.Range(func(name string, state *internal.ClassState) bool {
		if state.Committed() {
			snap.Classes = append(snap.Classes, name)
		}
		return true
	})

	s.docs.Range(func(rid string, doc *engine.Document) bool {
		snap.Docs[rid] = snapshotDoc{
			Class:  doc.Class(),
			Fields: doc.Fields(),
		}
		return true
	})

	path := filepath.Join(s.path, snapshotFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := writeSnapshot(f, &snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	logger.Debugf("flushed snapshot for %s (%d records, %d keys)", s.path, len(snap.Docs), len(snap.Dict))
	return nil
}

// loadSnapshot restores the store from disk. A missing snapshot file is
// not an error, the store simply starts empty.
func (s *store) loadSnapshot() error {
	path := filepath.Join(s.path, snapshotFile)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var snap snapshot
	if err := readSnapshot(f, &snap); err != nil {
		return fmt.Errorf("birch: reading snapshot %s: %w", path, err)
	}

	for _, name := range snap.Classes {
		state := internal.NewClassState()
		state.Commit()
		s.classes.Store(name, state)
	}

	for rid, sd := range snap.Docs {
		doc := engine.NewDocument(sd.Class)
		doc.SetRID(rid)
		for name, value := range sd.Fields {
			doc.SetField(name, value)
		}
		s.docs.Store(rid, doc)
	}

	for _, entry := range snap.Dict {
		s.dict.Put(entry.Key, entry.RID)
	}

	logger.Debugf("loaded snapshot for %s (%d records, %d keys)", s.path, len(snap.Docs), len(snap.Dict))
	return nil
}

// --------------------------------------------------------------------------
// Encoding Helpers
// --------------------------------------------------------------------------

// writeSnapshot encodes magic header, version, and the lz4-compressed
// msgpack payload.
func writeSnapshot(w io.Writer, snap *snapshot) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, birchVersion); err != nil {
		return err
	}

	zw := lz4.NewWriter(bw)
	if err := msgpack.NewEncoder(zw).Encode(snap); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	return bw.Flush()
}

// readSnapshot verifies magic header and version and decodes the payload.
func readSnapshot(r io.Reader, snap *snapshot) error {
	br := bufio.NewReader(r)

	magic := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if !bytes.Equal(magic, []byte(magicNum)) {
		return fmt.Errorf("invalid file format")
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != birchVersion {
		return fmt.Errorf("unsupported snapshot version %d", version)
	}

	return msgpack.NewDecoder(lz4.NewReader(br)).Decode(snap)
}
