// Package uuid includes tests for the run ID generator.
package uuid

import (
	"bytes"
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestGeneratorNewID ensures generated IDs are unique, time ordered v7 UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
	require.Equal(t, goUUID.Version(7), id1.Version())
	require.Negative(t, bytes.Compare(id1[:], id2[:]))
}

// TestFixedNewID returns the pinned value every time.
func TestFixedNewID(t *testing.T) {
	t.Parallel()

	want := goUUID.MustParse("0190f5a4-7e1c-7c3d-9a4e-5b6c7d8e9f00")
	gen := Fixed(want)
	for range 3 {
		got, err := gen.NewID()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
