package loader

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/livemodel/pkg/task"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"settings/app.yaml":    {Data: []byte("name: demo\nreplicas: 3\ntags: [a, b]\n")},
		"settings/app.json":    {Data: []byte(`{"name":"demo","replicas":3}`)},
		"settings/empty.yml":   {Data: []byte("")},
		"settings/broken.json": {Data: []byte(`{"name":`)},
		"notes/readme.txt":     {Data: []byte("hello")},
		"blob.bin":             {Data: []byte{1, 2, 3}},
	}
}

func TestDecodersByExtension(t *testing.T) {
	load := FS(testFS())
	ctx := context.Background()

	v, err := load(ctx, "settings/app.yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "demo", "replicas": 3, "tags": []any{"a", "b"}}, v)

	v, err = load(ctx, "settings/app.json")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "demo", "replicas": 3.0}, v)

	v, err = load(ctx, "settings/empty.yml")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = load(ctx, "notes/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = load(ctx, "blob.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)
}

func TestFSErrors(t *testing.T) {
	ctx := context.Background()
	load := FS(testFS())

	_, err := load(ctx, "missing.yaml")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = load(ctx, "settings/broken.json")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = load(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = load(ctx, "settings")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = load(ctx)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = load(ctx, 42)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = FS(testFS(), WithMaxSize(4))(ctx, "settings/app.json")
	assert.ErrorIs(t, err, ErrTooLarge)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = load(cancelled, "blob.bin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions(t *testing.T) {
	load := FS(testFS(), WithPrefix("settings/"), WithDecoder(Text()))

	v, err := load(context.Background(), "app.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.(string), "name: demo"))
}

func TestDecodeStopsAtLimitForUnsizedReaders(t *testing.T) {
	o := newOptions([]Option{WithMaxSize(3)})
	_, err := o.decode("x.txt", strings.NewReader("abcd"))
	assert.ErrorIs(t, err, ErrTooLarge)

	v, err := o.decode("x.txt", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestTaskLoadsFromFS(t *testing.T) {
	tk := task.New[map[string]any](FS(testFS(), WithPrefix("settings/")), task.WithParams("app.yaml"))

	r := task.Sync(tk)
	if r.Status == task.Pending {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := r.Pending.Wait(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, "demo", tk.Data()["name"])
	assert.NoError(t, tk.Err())

	tk.SetParams("missing.yaml")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := tk.Future().Wait(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, tk.Err(), ErrNotFound)
}
