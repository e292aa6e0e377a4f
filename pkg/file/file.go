package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

var (
	ErrPathIsDir  = errors.New("supplied path is a directory")
	ErrPathIsFile = errors.New("supplied path is a file")
)

// CreateFileP Creates a file and all its directories
// Make sure you close the file when using this function!
func CreateFileP(filePath string, perm fs.FileMode) (*os.File, error) {
	absDirPath, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(absDirPath, perm)
	if err != nil {
		return nil, err
	}

	return os.Create(filePath)
}

// WriteTo replaces the file content with data, missing directories are created
func WriteTo(filePath string, data []byte) error {
	f, err := CreateFileP(filePath, 0750)
	if err != nil {
		log.Error("could not create file", zap.String("file", filePath), zap.Error(err))
		return err
	}

	// Close the file when done
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	_, err = f.Write(data)
	return err
}

// Exists returns nil if path is an existing regular file
func Exists(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}

	if s.IsDir() {
		return ErrPathIsDir
	}

	return nil
}

// IsDir returns nil if path is an existing directory
func IsDir(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !s.IsDir() {
		return ErrPathIsFile
	}

	return nil
}
