package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// BlobStore writes binary objects such as generated illustrations under a directory.
// References returned by Put are relative to URLPrefix.
type BlobStore struct {
	dir       string
	urlPrefix string
}

// NewBlobStore creates dir if needed. urlPrefix defaults to "/images".
func NewBlobStore(dir, urlPrefix string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/images"
	}
	return &BlobStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir returns the directory blobs are written to.
func (b *BlobStore) Dir() string { return b.dir }

// Put stores data under a fresh uuid name with an extension detected from its
// content and returns the reference to it.
func (b *BlobStore) Put(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty blob")
	}
	name := uuid.NewString() + mimetype.Detect(data).Extension()
	tmp := filepath.Join(b.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filepath.Join(b.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return b.urlPrefix + "/" + name, nil
}

// Open returns the path of the blob behind ref, or an error if ref is not one of ours.
func (b *BlobStore) Open(ref string) (string, error) {
	name := strings.TrimPrefix(ref, b.urlPrefix+"/")
	if name == ref || name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	p := filepath.Join(b.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}
