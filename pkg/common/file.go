package common

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFileAtomic writes data to <filename>.tmp and renames it over filename, readers never
// see a partially written file.
func WriteFileAtomic(fs afero.Fs, filename string, data []byte, perm os.FileMode) (err error) {
	if err = fs.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	tmp := filename + ".tmp"
	var f afero.File
	f, err = fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fs.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return fs.Rename(tmp, filename)
}
