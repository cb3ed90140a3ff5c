package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"tinylsm/pkg/codec"
	"tinylsm/pkg/compression"
	"tinylsm/pkg/sstable"
	"tinylsm/pkg/store"
)

func main() {
	var (
		file      = flag.String("file", "", "sorted-run file to inspect")
		root      = flag.String("root", "", "store directory; dumps every sorted run and reads widths from OPTIONS")
		keySize   = flag.Int("key-size", 0, "key width (defaults to OPTIONS of -root)")
		valueSize = flag.Int("value-size", 0, "value width (defaults to OPTIONS of -root)")
		records   = flag.Bool("records", false, "print every record")
		raw       = flag.Bool("raw", false, "write the decompressed bytes of -file to stdout")
	)
	flag.Parse()

	if *file == "" && *root == "" {
		log.Fatal("either -file or -root is required")
	}

	if *raw {
		if *file == "" {
			log.Fatal("-raw needs -file")
		}
		if err := dumpRaw(*file); err != nil {
			log.Fatalf("raw dump failed: %v", err)
		}
		return
	}

	layout := codec.Layout{KeySize: *keySize, ValueSize: *valueSize}
	if layout.KeySize == 0 {
		dir := *root
		if dir == "" {
			// file lives in <root>/sstables/<id>
			dir = filepath.Dir(filepath.Dir(*file))
		}
		md, err := store.ReadMD(dir)
		if err != nil {
			log.Fatalf("key-size not given and OPTIONS unreadable: %v", err)
		}
		layout = codec.Layout{KeySize: md.KeySize, ValueSize: md.ValueSize}
	}

	if *file != "" {
		if err := dump(*file, layout, *records); err != nil {
			log.Fatalf("dump failed: %v", err)
		}
		return
	}

	dir, err := sstable.List(*root, false, nil)
	if err != nil {
		log.Fatalf("list failed: %v", err)
	}
	for _, e := range dir.Entries() {
		path := filepath.Join(sstable.Path(*root), sstable.FileName(e.ID))
		if err := dump(path, layout, *records); err != nil {
			log.Fatalf("dump %s failed: %v", path, err)
		}
	}
}

// dumpRaw writes the plain stream, header included, without decoding records.
func dumpRaw(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = compression.Decompress(os.Stdout, f)
	return err
}

func dump(path string, layout codec.Layout, printRecords bool) error {
	c, err := sstable.ReadFile(path, layout, nil)
	if err != nil {
		return err
	}

	tombstones := 0
	for _, r := range c.Records {
		if r.Tombstone {
			tombstones++
		}
	}

	ratio := 0.0
	if c.Compressed > 0 {
		ratio = float64(c.Plain) / float64(c.Compressed)
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  codec:      %s\n", c.Algorithm)
	fmt.Printf("  size:       %d bytes compressed, %d bytes plain (%.2fx)\n", c.Compressed, c.Plain, ratio)
	fmt.Printf("  declared:   %d records\n", c.Declared)
	fmt.Printf("  valid:      %d records (%d tombstones)\n", len(c.Records), tombstones)
	if c.Torn {
		fmt.Printf("  TORN:       %d declared records missing or corrupt\n", c.Declared-uint64(len(c.Records)))
	}

	if printRecords {
		for _, r := range c.Records {
			if r.Tombstone {
				fmt.Printf("    %s  <tombstone>\n", hex.EncodeToString(r.Key))
				continue
			}
			fmt.Printf("    %s  %s\n", hex.EncodeToString(r.Key), hex.EncodeToString(r.Value))
		}
	}
	return nil
}
