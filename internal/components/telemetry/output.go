package telemetry

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes request/response dumps into a directory, one file per request.
type FilesystemOutput struct {
	directory string
	prefix    string
}

// NewFilesystemOutput creates `dir` if it does not exist, `prefix` is prepended to every
// file name so that dumps from different sessions do not clobber each other.
func NewFilesystemOutput(dir, prefix string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, prefix: prefix}, nil
}

func (o FilesystemOutput) path(name string) string {
	if o.prefix != "" {
		name = o.prefix + "-" + name
	}
	return filepath.Join(o.directory, name)
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(o.path(id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// WritePage writes a raw html body next to the request dumps.
func (o FilesystemOutput) WritePage(name string, body []byte) {
	err := os.WriteFile(o.path(name+".html"), body, 0600)
	if err != nil {
		slog.Warn("failed to write page file", "name", name, "err", err)
	}
}
