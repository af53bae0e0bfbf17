package testutil

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/keyhash"
	"github.com/meigma/uc2/internal/layout"
)

func TestKeys_DistinctSlots(t *testing.T) {
	t.Parallel()

	keys := Keys()
	for i := 1; i < keyhash.KeyCount; i++ {
		assert.NotEqual(t, keys[0], keys[i])
	}
}

func TestEncryptCBC_Padding(t *testing.T) {
	t.Parallel()

	key := make([]byte, 16)
	out, err := EncryptCBC(blockcipher.AES, key, []byte("abc"), true)
	require.NoError(t, err)
	assert.Len(t, out, 16)

	_, err = EncryptCBC(blockcipher.AES, key, []byte("abc"), false)
	require.Error(t, err)
}

func TestBuildPkg_Layout(t *testing.T) {
	t.Parallel()

	built, err := BuildPkg(PkgFixture{
		Name:     "pak.pkg",
		EntryKey: "entry",
		DataKey:  "data",
		Files: []PkgFile{
			{Path: "a\\one.txt", Data: Pattern(20, 1)},
			{Path: "b\\two.txt", Data: Pattern(5, 2), Plain: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, layout.FullHeaderSize(layout.Standard)+2*layout.EntryHeaderSize, built.DataStart)
	assert.Equal(t, []int{32, 5}, built.EncryptedSizes)
	assert.Equal(t, []int{built.DataStart, built.DataStart + 32}, built.Offsets)
	assert.Len(t, built.Data, built.DataStart+37)

	// Plain entries are stored verbatim.
	assert.Equal(t, Pattern(5, 2), built.Data[built.Offsets[1]:])
}

func TestBuildPkg_ChunkedEncryption(t *testing.T) {
	t.Parallel()

	plain := Pattern(ChunkSize+32, 3)
	built, err := BuildPkg(PkgFixture{
		Name: "big.pkg", EntryKey: "e", DataKey: "d", TFO: true,
		Files: []PkgFile{{Path: "big.bin", Data: plain}},
	})
	require.NoError(t, err)

	key, err := keyhash.TruncatedFileKey("big.bin", "d")
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	// The second chunk decrypts on its own with a zero IV.
	second := built.Data[built.Offsets[0]+ChunkSize:]
	out := make([]byte, len(second))
	gocipher.NewCBCDecrypter(block, make([]byte, 16)).CryptBlocks(out, second)
	assert.Equal(t, plain[ChunkSize:], out)
}

func TestBuildTexture_Header(t *testing.T) {
	t.Parallel()

	tex, err := BuildTexture([]TextureChunk{
		{Data: Pattern(100, 1), Compressed: true},
		{Data: Pattern(10, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{'C', 'O', '2', 2}, tex[:4])
	assert.Equal(t, []byte{110, 0, 0, 0}, tex[4:8])
}
