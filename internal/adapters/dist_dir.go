package adapters

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"registry-core/internal/ports"
)

// DistDir stores dist files below Root. Paths handed to it are relative to
// Root and may not escape it.
type DistDir struct {
	Root string
}

func NewDistDir(root string) DistDir {
	return DistDir{Root: root}
}

// RemoveFile deletes a stored file. A file that is already gone is not an
// error.
func (d DistDir) RemoveFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to remove dist file").
			WithCause(err)
	}
	return nil
}

func (d DistDir) resolve(path string) (string, error) {
	if strings.TrimSpace(d.Root) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dist directory is empty")
	}
	clean := filepath.Clean("/" + filepath.ToSlash(path))
	if clean == "/" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dist file path is empty")
	}
	return filepath.Join(d.Root, filepath.FromSlash(clean)), nil
}

var _ ports.DistFilePort = DistDir{}
