package project

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipRoundTrip(t *testing.T) {
	original := Project{
		"firstLayout": "Level 1",
		"properties": map[string]any{
			"name":    "My game",
			"version": "1.0.0",
		},
		"layouts": []any{
			map[string]any{"name": "Level 1", "instances": []any{}},
		},
		"score": float64(42),
	}

	archive, err := Zip(original)
	require.NoError(t, err)

	decoded, err := Unzip(archive)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestZipHoldsSingleGameJSONEntry(t *testing.T) {
	archive, err := Zip(Project{"a": float64(1)})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, EntryName, zr.File[0].Name)
}

func TestUnzipReadsFirstEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("whatever.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"first":true}`))
	require.NoError(t, err)
	w, err = zw.Create("second.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"second":true}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	p, err := Unzip(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Project{"first": true}, p)
}

func TestUnzipErrors(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		_, err := Unzip([]byte("definitely not a zip"))
		assert.Error(t, err)
	})

	t.Run("empty archive", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, zip.NewWriter(&buf).Close())
		_, err := Unzip(buf.Bytes())
		assert.ErrorIs(t, err, ErrEmptyArchive)
	})

	t.Run("invalid json", func(t *testing.T) {
		archive, err := ZipBytes([]byte("{not json"))
		require.NoError(t, err)
		_, err = Unzip(archive)
		assert.Error(t, err)
	})

	t.Run("json array", func(t *testing.T) {
		archive, err := ZipBytes([]byte("[1,2]"))
		require.NoError(t, err)
		_, err = Unzip(archive)
		assert.ErrorIs(t, err, ErrNotAnObject)
	})
}

func TestNameAndDescription(t *testing.T) {
	p := Project{}
	assert.Equal(t, "", p.Name())

	p.SetName("Platformer")
	p.SetDescription("Jump around")
	assert.Equal(t, "Platformer", p.Name())
	assert.Equal(t, "Jump around", p.Description())
}
