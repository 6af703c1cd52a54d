// Package loader provides task loaders that fetch and decode objects from
// S3 buckets and filesystems.
//
// A loader takes the object key as its first param:
//
//	client := s3.NewFromConfig(cfg)
//	settings := task.New[map[string]any](
//	    loader.S3(client, "my-bucket", loader.WithPrefix("settings/")),
//	    task.WithParams("app.yaml"),
//	)
//
// The decoder is picked from the key extension unless WithDecoder is given.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
)

// Loader errors. errors.Is matches by code.
var (
	ErrNotFound   error = lmerrors.New("E220")
	ErrTooLarge   error = lmerrors.New("E221")
	ErrDecode     error = lmerrors.New("E222")
	ErrInvalidKey error = lmerrors.New("E223")
)

// Decoder turns the raw object into task data.
type Decoder func(r io.Reader) (any, error)

// JSON decodes a JSON document into maps, slices and float64 numbers.
func JSON() Decoder {
	return func(r io.Reader) (any, error) {
		var v any
		if err := json.NewDecoder(r).Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// YAML decodes a YAML document. An empty document decodes to nil.
func YAML() Decoder {
	return func(r io.Reader) (any, error) {
		var v any
		if err := yaml.NewDecoder(r).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return v, nil
	}
}

// Text returns the object as a string.
func Text() Decoder {
	return func(r io.Reader) (any, error) {
		b, err := io.ReadAll(r)
		return string(b), err
	}
}

// Bytes returns the object unchanged.
func Bytes() Decoder {
	return func(r io.Reader) (any, error) {
		return io.ReadAll(r)
	}
}

// ForName picks a decoder from the extension of name.
func ForName(name string) Decoder {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return JSON()
	case ".yaml", ".yml":
		return YAML()
	case ".txt", ".md":
		return Text()
	default:
		return Bytes()
	}
}

type options struct {
	prefix  string
	maxSize int64
	decoder Decoder
}

// Option configures a loader.
type Option func(*options)

// WithPrefix prepends prefix to every key, e.g. "settings/".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithMaxSize rejects objects larger than n bytes (0 = no limit).
func WithMaxSize(n int64) Option {
	return func(o *options) { o.maxSize = n }
}

// WithDecoder sets the decoder used for every object.
func WithDecoder(d Decoder) Option {
	return func(o *options) { o.decoder = d }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// key resolves the object key from the loader params.
func (o options) key(params []any) (string, error) {
	if len(params) == 0 {
		return "", ErrInvalidKey.(*lmerrors.Error).WithDetail("no key param")
	}
	name, ok := params[0].(string)
	if !ok {
		return "", ErrInvalidKey.(*lmerrors.Error).WithDetailf("key param is %T, not a string", params[0])
	}
	key := o.prefix + name
	if !fs.ValidPath(key) || key == "." {
		return "", ErrInvalidKey.(*lmerrors.Error).WithDetail(key)
	}
	return key, nil
}

// decode reads r up to the size limit and decodes it.
func (o options) decode(key string, r io.Reader) (any, error) {
	var buf bytes.Buffer
	if o.maxSize > 0 {
		n, err := io.Copy(&buf, io.LimitReader(r, o.maxSize+1))
		if err != nil {
			return nil, err
		}
		if n > o.maxSize {
			return nil, tooLarge(key, o.maxSize)
		}
	} else if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}

	dec := o.decoder
	if dec == nil {
		dec = ForName(key)
	}
	v, err := dec(&buf)
	if err != nil {
		return nil, ErrDecode.(*lmerrors.Error).WithDetail(key).Wrap(err)
	}
	return v, nil
}

func tooLarge(key string, max int64) error {
	return ErrTooLarge.(*lmerrors.Error).WithDetail(fmt.Sprintf("%s exceeds %d bytes", key, max))
}
