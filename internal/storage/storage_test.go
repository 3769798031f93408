package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestDisk_PutGetSize(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	s := New("local", map[string]Backend{"local": d})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "", "intakes/a/mail.eml")
	require.NoError(t, err)
	assert.False(t, ok)

	path, err := s.Put(ctx, "local", "intakes/a/mail.eml", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "intakes/a/mail.eml", path)

	ok, err = s.Exists(ctx, "local", path)
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := s.Get(ctx, "", path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	n, err := s.Size(ctx, "local", path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestDisk_Delete(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	s := New("local", map[string]Backend{"local": d})
	ctx := context.Background()

	_, err = s.Put(ctx, "", "intakes/a/x.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "", "intakes/a/x.pdf"))

	ok, err := s.Exists(ctx, "", "intakes/a/x.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Delete(ctx, "", "intakes/a/x.pdf"))
}

func TestDisk_Missing(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = d.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = d.Size(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestDisk_StaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	d, err := NewDisk(root)
	require.NoError(t, err)

	full, err := d.Abs("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, root+"/etc/passwd", full)
}

func TestStorage_UnknownDisk(t *testing.T) {
	s := New("local", map[string]Backend{})
	_, err := s.Get(context.Background(), "s3", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown disk "s3"`)
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(fmt.Errorf("wrap: %w", &googleapi.Error{Code: 412})))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: 500}))
	assert.False(t, isPreconditionFailed(errors.New("x")))
}
