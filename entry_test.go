package uc2

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/uc2/internal/testutil"
)

func TestEntry_PartialDecryptRoundsToBlock(t *testing.T) {
	t.Parallel()

	files := testPkgFiles()
	built := buildTestPkg(t, false, files)
	p := openTestPkg(t, false, built.Data)
	e := p.Entries()[0]
	require.Equal(t, uint64(100), e.DecryptedSize())

	got, err := e.DecryptFile(23)
	require.NoError(t, err)
	assert.Len(t, got, 32)
	assert.Equal(t, files[0].Data[:32], got)

	// Requesting the exact size returns the exact size, not the block multiple.
	got, err = e.DecryptFile(100)
	require.NoError(t, err)
	assert.Len(t, got, 100)
	assert.Equal(t, files[0].Data, got)

	_, err = e.DecryptFile(101)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEntry_ResumesWithoutDecryptingTwice(t *testing.T) {
	t.Parallel()

	files := testPkgFiles()
	want := files[2].Data
	steps := []uint64{
		100,                      // inside the first chunk
		5000,                     // resume mid-chunk
		testutil.ChunkSize - 7,   // up to the chunk boundary
		testutil.ChunkSize + 40,  // into the second chunk
		2*testutil.ChunkSize + 1, // across into the third chunk
		0,                        // everything
	}

	for _, tfo := range []bool{false, true} {
		t.Run(layoutName(tfo), func(t *testing.T) {
			t.Parallel()

			built := buildTestPkg(t, tfo, testPkgFiles())
			p := openTestPkg(t, tfo, built.Data)
			e := p.Entries()[2]

			for _, n := range steps {
				got, err := e.DecryptFile(n)
				require.NoError(t, err, "step %d", n)
				wantLen := uint64(len(want))
				if n != 0 {
					wantLen = min((n+15)/16*16, wantLen)
				}
				require.Len(t, got, int(wantLen), "step %d", n)
				require.True(t, bytes.Equal(want[:wantLen], got), "step %d", n)
			}

			// A smaller request after the full one is served from the buffer.
			got, err := e.DecryptFile(16)
			require.NoError(t, err)
			assert.Equal(t, want[:16], got)
		})
	}
}

func TestEntry_ChunksRestartChain(t *testing.T) {
	t.Parallel()

	files := testPkgFiles()
	built := buildTestPkg(t, false, files)
	stored := bytes.Clone(built.Data[built.Offsets[2] : built.Offsets[2]+built.EncryptedSizes[2]])

	key, err := DeriveFileKey("wall.vtf", testDataKey)
	require.NoError(t, err)
	block, err := aes.NewCipher([]byte(key[:16]))
	require.NoError(t, err)

	// One CBC chain over the whole entry is only right for the first chunk.
	single := make([]byte, len(stored))
	gocipher.NewCBCDecrypter(block, make([]byte, 16)).CryptBlocks(single, stored)
	assert.Equal(t, files[2].Data[:testutil.ChunkSize], single[:testutil.ChunkSize])
	assert.NotEqual(t, files[2].Data[testutil.ChunkSize:2*testutil.ChunkSize], single[testutil.ChunkSize:2*testutil.ChunkSize])

	p := openTestPkg(t, false, built.Data)
	got, err := p.Entries()[2].DecryptFile(0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(files[2].Data, got))
}

func TestEntry_PlainPartial(t *testing.T) {
	t.Parallel()

	files := testPkgFiles()
	built := buildTestPkg(t, true, files)
	p := openTestPkg(t, true, built.Data)
	e := p.Entries()[1]
	require.False(t, e.IsEncrypted())

	got, err := e.DecryptFile(10)
	require.NoError(t, err)
	assert.Equal(t, files[1].Data[:16], got)
}

func TestEntry_ExceedsContainer(t *testing.T) {
	t.Parallel()

	files := testPkgFiles()
	built := buildTestPkg(t, false, files)
	// Cut the pkg inside the third entry.
	cut := built.Offsets[2] + 1000
	p := openTestPkg(t, false, built.Data[:cut])

	entries := p.Entries()
	require.Len(t, entries, len(files))

	// Entries that fit still decrypt.
	got, err := entries[0].DecryptFile(0)
	require.NoError(t, err)
	assert.Equal(t, files[0].Data, got)

	_, err = entries[2].DecryptFile(0)
	require.ErrorIs(t, err, ErrEntryExceedsContainer)

	// A prefix inside the buffer is still available.
	got, err = entries[2].DecryptFile(512)
	require.NoError(t, err)
	assert.Equal(t, files[2].Data[:512], got)

	_, err = entries[2].DecryptFile(1001)
	require.ErrorIs(t, err, ErrEntryExceedsContainer)
}

func TestEntry_WrongDataKey(t *testing.T) {
	t.Parallel()

	files := testPkgFiles()
	built := buildTestPkg(t, false, files)
	p, err := NewPkg(testPkgName, built.Data, WithEntryKey(testEntryKey), WithDataKey("other"))
	require.NoError(t, err)
	require.NoError(t, p.DecryptHeader())
	require.NoError(t, p.Parse())

	got, err := p.Entries()[0].DecryptFile(0)
	require.NoError(t, err)
	assert.NotEqual(t, files[0].Data, got)
}

func TestChunkCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to uint64
		want     uint64
	}{
		{0, 0, 0},
		{0, 16, 1},
		{0, DataChunkSize, 1},
		{0, DataChunkSize + 16, 2},
		{DataChunkSize - 16, DataChunkSize + 16, 2},
		{DataChunkSize, 2 * DataChunkSize, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chunkCount(tt.from, tt.to), "%d..%d", tt.from, tt.to)
	}
}
