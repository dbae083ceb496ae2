package workspace

import (
	"path/filepath"
	"strings"
	"time"
)

// FileKind distinguishes files from directories in listings.
type FileKind string

const (
	KindFile      FileKind = "file"
	KindDirectory FileKind = "directory"
)

// FileInfo describes a single workspace entry. Values are produced on
// demand and never persisted.
type FileInfo struct {
	Name         string
	RelativePath string
	AbsolutePath string
	Kind         FileKind
	Size         int64 // zero for directories
	CreatedAt    time.Time
	ModifiedAt   time.Time
	IsHidden     bool
	Extension    string // empty for directories
	IsBinary     bool   // always false for directories
}

// Known binary extensions where scanning content is pointless.
var binaryExtensions = map[string]struct{}{
	".exe":   {},
	".dll":   {},
	".so":    {},
	".dylib": {},
	".a":     {},
	".lib":   {},
	".o":     {},
	".obj":   {},
	".wasm":  {},
	".bin":   {},
	".png":   {},
	".jpg":   {},
	".jpeg":  {},
	".gif":   {},
	".pdf":   {},
	".zip":   {},
	".gz":    {},
	".tar":   {},
}

func isBinaryExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := binaryExtensions[ext]
	return ok
}

// hasBinaryContent uses a simple heuristic (presence of NUL bytes in the
// first 512 bytes) to decide if data is likely binary.
func hasBinaryContent(data []byte) bool {
	checkLen := len(data)
	if checkLen > 512 {
		checkLen = 512
	}
	for i := 0; i < checkLen; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

func isLikelyBinaryFile(path string, data []byte) bool {
	return isBinaryExtension(path) || hasBinaryContent(data)
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
