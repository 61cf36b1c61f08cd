package filestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	fs := New(t.TempDir())

	meta, err := fs.Save(FileMeta{
		Name:        "invoice.pdf",
		ContentType: "application/pdf",
		InstanceId:  "inst-1",
		ActivityId:  "upload",
		FieldName:   "invoice",
	}, []byte("pdf-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, meta.Id)
	require.Equal(t, int64(9), meta.Size)
	require.False(t, meta.UploadedAt.IsZero())

	got, content, err := fs.Get(meta.Id)
	require.NoError(t, err)
	require.Equal(t, "invoice.pdf", got.Name)
	require.Equal(t, "inst-1", got.InstanceId)
	require.Equal(t, []byte("pdf-bytes"), content)

	require.NoError(t, fs.Delete(meta.Id))
	_, _, err = fs.Get(meta.Id)
	require.Error(t, err)
}
