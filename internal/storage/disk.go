package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of each storage area.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	BlobBytes     int64 `json:"blob_bytes"`
	SpillBytes    int64 `json:"spill_bytes"`
}

// Total returns the sum of all areas.
func (u Usage) Total() int64 {
	return u.DatabaseBytes + u.BlobBytes + u.SpillBytes
}

// MeasureUsage sums the database file with its WAL and shm siblings, the blob
// directory and the spill directory.
func MeasureUsage(dbPath, blobDir, spillDir string) (Usage, error) {
	var u Usage
	var err error
	if dbPath != "" {
		if u.DatabaseBytes, err = DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm"); err != nil {
			return u, err
		}
	}
	if u.BlobBytes, err = DiskUsageBytes(blobDir); err != nil {
		return u, err
	}
	u.SpillBytes, err = DiskUsageBytes(spillDir)
	return u, err
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Directories are summed recursively; missing and empty paths count as 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				fi, err := d.Info()
				if err != nil {
					return err
				}
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
