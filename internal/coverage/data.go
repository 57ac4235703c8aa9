package coverage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// The coverage data file is little-endian binary: one signed 64-bit count,
// then that many signed 64-bit counters in point-id order. The instrumented
// program writes it at exit; tooling reads it back against the map.

// WriteData writes counters to w.
func WriteData(w io.Writer, counters []int64) error {
	if err := binary.Write(w, binary.LittleEndian, int64(len(counters))); err != nil {
		return fmt.Errorf("write coverage header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, counters); err != nil {
		return fmt.Errorf("write coverage counters: %w", err)
	}
	return nil
}

// ReadData reads counters from r, validating the header against the stream
// length.
func ReadData(r io.Reader) ([]int64, error) {
	var count int64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read coverage header: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("negative coverage point count %d", count)
	}
	counters := make([]int64, count)
	if err := binary.Read(r, binary.LittleEndian, counters); err != nil {
		return nil, fmt.Errorf("read coverage counters: %w", err)
	}
	return counters, nil
}

// WriteDataFile writes counters to path.
func WriteDataFile(path string, counters []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteData(f, counters)
}

// ReadDataFile reads counters from path.
func ReadDataFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadData(f)
}
