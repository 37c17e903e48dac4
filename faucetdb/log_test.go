package faucetdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	al, err := Open(dir)
	require.NoError(t, err)

	v1 := uint64(0)
	v2 := uint64(3)
	require.NoError(t, al.Append(Entry{Key: []byte("a"), Value: &v1}))
	require.NoError(t, al.Append(Entry{Key: []byte("b"), Value: &v2}))
	require.NoError(t, al.Append(Entry{Key: []byte("a"), Value: nil}))
	require.NoError(t, al.Close())

	al, err = Open(dir)
	require.NoError(t, err)
	defer al.Close()

	entries, err := al.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, []byte("a"), entries[0].Key)
	require.NotNil(t, entries[0].Value)
	require.Equal(t, uint64(0), *entries[0].Value)

	require.Equal(t, []byte("b"), entries[1].Key)
	require.NotNil(t, entries[1].Value)
	require.Equal(t, uint64(3), *entries[1].Value)

	require.Equal(t, []byte("a"), entries[2].Key)
	require.Nil(t, entries[2].Value)
}

func TestAppendLogResumesSequenceAfterReopen(t *testing.T) {
	dir := t.TempDir()
	al, err := Open(dir)
	require.NoError(t, err)
	v := uint64(1)
	require.NoError(t, al.Append(Entry{Key: []byte("x"), Value: &v}))
	require.NoError(t, al.Close())

	al, err = Open(dir)
	require.NoError(t, err)
	require.NoError(t, al.Append(Entry{Key: []byte("y"), Value: &v}))
	require.NoError(t, al.Close())

	al, err = Open(dir)
	require.NoError(t, err)
	defer al.Close()
	entries, err := al.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, []byte("x"), entries[0].Key)
	require.Equal(t, []byte("y"), entries[1].Key)
}
