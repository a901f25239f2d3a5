package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type FileReader struct {
	path   string
	file   *os.File
	opened bool

	exists bool
}

func NewFileReader(path string) *FileReader {

	_, err := os.Stat(path)

	freader := &FileReader{
		path:   path,
		exists: err == nil,
	}

	return freader
}

func (f *FileReader) Exists() bool {
	return f.exists
}

// Open in write mode truncates, chunk files are only ever rewritten whole
func (f *FileReader) Open(readOnly bool) (topErr error) {

	var perm os.FileMode = 0644

	if readOnly == true {
		f.file, topErr = os.OpenFile(f.path, os.O_RDONLY, perm)
	} else {
		f.file, topErr = os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	}

	if topErr == nil {
		f.opened = true
	}

	return topErr

}

func (f *FileReader) Close() error {
	if f.opened == false {
		return nil
	}

	f.opened = false
	return f.file.Close()
}

func (f *FileReader) ReadAll() (out []byte, err error) {
	if f.opened == false {
		err = errors.New("file not opened")
		return
	}

	info, statErr := f.file.Stat()
	if statErr != nil {
		return nil, statErr
	}

	length := int(info.Size())
	out = make([]byte, length)

	if length == 0 {
		return out, nil
	}

	var readBytes int
	readBytes, err = f.file.ReadAt(out, 0)

	if readBytes != length {
		err = fmt.Errorf("read bytes mismatch: %d of %d", readBytes, length)
		return nil, err
	}

	return out, nil
}

func (f *FileReader) WriteAll(in []byte) (err error) {
	if f.opened == false {
		err = errors.New("file not opened")
		return err
	}

	var writtenBytes int
	writtenBytes, err = f.file.WriteAt(in, 0)
	if writtenBytes != len(in) {
		if err == nil {
			err = errors.New("written bytes mismatch")
		}
		return err
	}

	return f.file.Sync()
}

func ReadFile(path string) ([]byte, error) {
	fr := NewFileReader(path)

	if !fr.Exists() {
		return nil, os.ErrNotExist
	}

	if openErr := fr.Open(true); openErr != nil {
		return nil, openErr
	}
	defer fr.Close()

	return fr.ReadAll()
}

// WriteFileAtomic writes into a sibling temp file and renames it over path,
// readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {

	tmpPath := filepath.Join(filepath.Dir(path), TempFilePrefix+uuid.NewString())

	fr := NewFileReader(tmpPath)
	if openErr := fr.Open(false); openErr != nil {
		return fmt.Errorf("unable to create temp file: %s", openErr.Error())
	}

	writeErr := fr.WriteAll(data)
	closeErr := fr.Close()

	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("unable to write %s: %s", path, writeErr.Error())
	}

	if renameErr := os.Rename(tmpPath, path); renameErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("unable to replace %s: %s", path, renameErr.Error())
	}

	return nil
}

// temp files live next to chunk files and are skipped by chunk scans
const TempFilePrefix = ".tmp-"

// CreateFileExclusive fails with os.ErrExist when the file is already present.
func CreateFileExclusive(path string, data []byte) error {

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if _, writeErr := f.Write(data); writeErr != nil {
		f.Close()
		os.Remove(path)
		return writeErr
	}

	if syncErr := f.Sync(); syncErr != nil {
		f.Close()
		return syncErr
	}

	return f.Close()
}
