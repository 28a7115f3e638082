package main

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// elfMagic is the four-byte ELF identification prefix (EI_MAG0..EI_MAG3).
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// checkELFMagic memory-maps path read-only and checks its leading bytes
// against the ELF magic, failing fast before a disassembler subprocess is
// ever spawned. This is a pre-flight Input error check per §7 — it never
// attempts to interpret the rest of the file.
func checkELFMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Size() < int64(len(elfMagic)) {
		return fmt.Errorf("%s is too small to be an ELF binary", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("mapping %s: %w", path, err)
	}
	defer m.Unmap()

	for i, b := range elfMagic {
		if m[i] != b {
			return fmt.Errorf("%s is not an ELF binary (bad magic)", path)
		}
	}
	return nil
}
