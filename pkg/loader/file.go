package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/task"
)

// File returns a loader that reads objects below dir.
func File(dir string, opts ...Option) task.Loader {
	return FS(os.DirFS(dir), opts...)
}

// FS returns a loader that reads objects from fsys. Keys cannot escape
// the root of fsys.
func FS(fsys fs.FS, opts ...Option) task.Loader {
	o := newOptions(opts)
	return func(ctx context.Context, params ...any) (any, error) {
		key, err := o.key(params)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := fsys.Open(key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotFound.(*lmerrors.Error).WithDetail(key)
			}
			return nil, err
		}
		defer f.Close()

		if info, err := f.Stat(); err == nil {
			if info.IsDir() {
				return nil, ErrInvalidKey.(*lmerrors.Error).WithDetailf("%s is a directory", key)
			}
			if o.maxSize > 0 && info.Size() > o.maxSize {
				return nil, tooLarge(key, o.maxSize)
			}
		}
		return o.decode(key, f)
	}
}
