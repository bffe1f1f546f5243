package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// DiskCache stores synthesized MP3s by content key. Files placed in the
// override directory under the same key win over synthesized audio.
type DiskCache struct {
	cacheDir    string
	overrideDir string
}

func NewDiskCache(cacheDir, overrideDir string) (*DiskCache, error) {
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, err
		}
	}
	return &DiskCache{cacheDir: cacheDir, overrideDir: overrideDir}, nil
}

// Key names the audio for a sentence in a locale.
func Key(text, locale string) string {
	h := sha256.Sum256([]byte(strings.ToLower(locale) + ":" + text))
	return hex.EncodeToString(h[:16])
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	for _, dir := range []string{c.overrideDir, c.cacheDir} {
		if dir == "" {
			continue
		}
		if data, err := os.ReadFile(filepath.Join(dir, key+".mp3")); err == nil {
			return data, true
		}
	}
	return nil, false
}

// Put writes through a temp file so readers never see a partial MP3.
func (c *DiskCache) Put(key string, data []byte) error {
	if c.cacheDir == "" {
		return nil
	}
	tmp, err := os.CreateTemp(c.cacheDir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(c.cacheDir, key+".mp3"))
}
