package helpertest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// TmpFolder is a temporary directory removed after the current test
type TmpFolder struct {
	Path string
}

// NewTmpFolder creates a temporary directory and registers its cleanup
func NewTmpFolder(prefix string) *TmpFolder {
	if len(prefix) == 0 {
		prefix = "oracle"
	}

	path, err := os.MkdirTemp("", prefix)
	gomega.Expect(err).Should(gomega.Succeed())

	ginkgo.DeferCleanup(os.RemoveAll, path)

	return &TmpFolder{Path: path}
}

// JoinPath returns the path of name inside the folder
func (tf *TmpFolder) JoinPath(name string) string {
	return filepath.Join(tf.Path, name)
}

// CreateStringFile writes the lines joined by newlines to name and returns the file path
func (tf *TmpFolder) CreateStringFile(name string, lines ...string) string {
	path := tf.JoinPath(name)

	err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600)
	gomega.Expect(err).Should(gomega.Succeed())

	return path
}

// CountFiles returns the number of entries in the folder
func (tf *TmpFolder) CountFiles() int {
	files, err := os.ReadDir(tf.Path)
	gomega.Expect(err).Should(gomega.Succeed())

	return len(files)
}
