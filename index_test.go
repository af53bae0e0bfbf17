package uc2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/layout"
	"github.com/meigma/uc2/internal/testutil"
)

const testIndexName = "1b87c6b551e518d11114ee21b7645a47.pkg"

var testIndexLines = []string{
	testIndexName,
	"pak000.pkg",
	"pak001.pkg",
	"pak002.pkg",
}

func buildTestIndex(t *testing.T, id blockcipher.ID, flag uint8) []byte {
	t.Helper()
	data, err := testutil.BuildIndex(testutil.IndexFixture{
		Name:    testIndexName,
		Lines:   testIndexLines,
		Cipher:  id,
		KeyFlag: flag,
		Keys:    testutil.Keys(),
	})
	require.NoError(t, err)
	return data
}

func TestIndex_ParseRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cipher blockcipher.ID
		flag   uint8
	}{
		{"aes even flag", blockcipher.AES, 2},
		{"aes odd flag", blockcipher.AES, 3},
		{"des", blockcipher.DES, 0},
		{"blowfish", blockcipher.Blowfish, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := buildTestIndex(t, tt.cipher, tt.flag)
			idx := NewIndex(testIndexName, data, WithKeyCollection(testutil.Keys()))
			assert.Equal(t, IndexUnvalidated, idx.State())

			require.NoError(t, idx.ValidateHeader())
			assert.Equal(t, IndexHeaderValid, idx.State())

			size, err := idx.Parse()
			require.NoError(t, err)
			assert.Equal(t, IndexParsed, idx.State())

			body := len(bytes.Join(bytesLines(testIndexLines), nil)) + 2*len(testIndexLines)
			assert.Equal(t, uint64(8+body), size)
			assert.Equal(t, testIndexLines, idx.Filenames())
			assert.Equal(t, len(testIndexLines), idx.Len())
			assert.Equal(t, []byte(testIndexName), idx.FilenameViews()[0])

			// Views alias the decrypted buffer.
			assert.Equal(t, []byte(testIndexName), data[8:8+len(testIndexName)])
		})
	}
}

func bytesLines(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}

func TestIndex_ParseIsIdempotent(t *testing.T) {
	t.Parallel()

	data := buildTestIndex(t, blockcipher.AES, 1)
	idx := NewIndex(testIndexName, data, WithKeyCollection(testutil.Keys()))
	require.NoError(t, idx.ValidateHeader())

	first, err := idx.Parse()
	require.NoError(t, err)
	snapshot := bytes.Clone(data)

	second, err := idx.Parse()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, data)
}

func TestIndex_ValidateHeaderErrors(t *testing.T) {
	t.Parallel()

	valid := buildTestIndex(t, blockcipher.AES, 0)

	badVersion := bytes.Clone(valid)
	binary.LittleEndian.PutUint16(badVersion, 3)

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrRange},
		{"short", valid[:7], ErrRange},
		{"version", badVersion, ErrUnsupportedVersion},
		{"truncated body", valid[:len(valid)-1], ErrSizeMismatch},
		{"trailing bytes", append(bytes.Clone(valid), 0), ErrSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx := NewIndex(testIndexName, tt.buf, WithKeyCollection(testutil.Keys()))
			require.ErrorIs(t, idx.ValidateHeader(), tt.want)
			assert.Equal(t, IndexUnvalidated, idx.State())
		})
	}
}

func TestIndex_ParseBeforeValidate(t *testing.T) {
	t.Parallel()

	idx := NewIndex(testIndexName, buildTestIndex(t, blockcipher.AES, 0), WithKeyCollection(testutil.Keys()))
	_, err := idx.Parse()
	require.ErrorIs(t, err, ErrNotValidated)
}

func TestIndex_ParseWithoutKeys(t *testing.T) {
	t.Parallel()

	idx := NewIndex(testIndexName, buildTestIndex(t, blockcipher.AES, 0))
	require.NoError(t, idx.ValidateHeader())
	_, err := idx.Parse()
	require.ErrorIs(t, err, ErrEmptyKey)

	idx.SetKeyCollection(testutil.Keys())
	_, err = idx.Parse()
	require.NoError(t, err)
}

func TestIndex_UnknownCipher(t *testing.T) {
	t.Parallel()

	data := buildTestIndex(t, blockcipher.AES, 0)
	data[2] = 9
	idx := NewIndex(testIndexName, data, WithKeyCollection(testutil.Keys()))
	require.NoError(t, idx.ValidateHeader())
	_, err := idx.Parse()
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndex_KeyFlagOutOfRange(t *testing.T) {
	t.Parallel()

	data := buildTestIndex(t, blockcipher.AES, 0)
	data[3] = 8
	idx := NewIndex(testIndexName, data, WithKeyCollection(testutil.Keys()))
	require.NoError(t, idx.ValidateHeader())
	_, err := idx.Parse()
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndex_TamperedBody(t *testing.T) {
	t.Parallel()

	clean := buildTestIndex(t, blockcipher.AES, 2)
	blocks := (len(clean) - 8) / 16
	require.Greater(t, blocks, 2)

	for block := range blocks {
		for _, pos := range []int{0, 3, 15} {
			t.Run(fmt.Sprintf("block %d byte %d", block, pos), func(t *testing.T) {
				t.Parallel()

				data := bytes.Clone(clean)
				data[8+block*16+pos] ^= 0x01

				idx := NewIndex(testIndexName, data, WithKeyCollection(testutil.Keys()))
				require.NoError(t, idx.ValidateHeader())
				_, err := idx.Parse()
				require.ErrorIs(t, err, ErrDecryptionFailed)
				assert.Empty(t, idx.Filenames())
				assert.Equal(t, IndexHeaderValid, idx.State())
			})
		}
	}
}

// buildRawIndex encrypts body as is, without adding line terminators.
func buildRawIndex(t *testing.T, body string) []byte {
	t.Helper()
	key, err := DeriveIndexKey(2, testIndexName, testutil.Keys())
	require.NoError(t, err)
	enc, err := testutil.EncryptCBC(blockcipher.AES, key[:], []byte(body), true)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.LittleEndian, layout.IndexHeader{
		Version:  2,
		Cipher:   uint8(blockcipher.AES),
		KeyFlag:  2,
		BodySize: uint32(len(enc)), //nolint:gosec // test data is small
	}))
	out.Write(enc)
	return out.Bytes()
}

func TestIndex_RejectsMalformedNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"unterminated tail", testIndexName + "\r\npak000.pkg\r\npak001"},
		{"control byte", testIndexName + "\r\npak\x01000.pkg\r\n"},
		{"delete byte", testIndexName + "\r\npak000\x7f.pkg\r\n"},
		{"invalid utf8", testIndexName + "\r\npak\xbe\xe0000.pkg\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			idx := NewIndex(testIndexName, buildRawIndex(t, tt.body), WithKeyCollection(testutil.Keys()))
			require.NoError(t, idx.ValidateHeader())
			_, err := idx.Parse()
			require.ErrorIs(t, err, ErrDecryptionFailed)
			assert.Empty(t, idx.Filenames())
		})
	}

	t.Run("utf8 names pass", func(t *testing.T) {
		t.Parallel()

		idx := NewIndex(testIndexName, buildRawIndex(t, testIndexName+"\r\ndata/тест.pkg\r\n"),
			WithKeyCollection(testutil.Keys()))
		require.NoError(t, idx.ValidateHeader())
		_, err := idx.Parse()
		require.NoError(t, err)
		assert.Equal(t, []string{testIndexName, "data/тест.pkg"}, idx.Filenames())
	})
}

func TestIndex_WrongKeys(t *testing.T) {
	t.Parallel()

	data := buildTestIndex(t, blockcipher.AES, 2)
	wrong := *testutil.Keys()
	wrong[1][0] ^= 0xff

	idx := NewIndex(testIndexName, data, WithKeyCollection(&wrong))
	require.NoError(t, idx.ValidateHeader())
	_, err := idx.Parse()
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestIndex_WrongName(t *testing.T) {
	t.Parallel()

	data, err := testutil.BuildIndex(testutil.IndexFixture{
		Name:   testIndexName,
		Lines:  []string{"other.pkg", "pak000.pkg"},
		Cipher: blockcipher.AES,
		Keys:   testutil.Keys(),
	})
	require.NoError(t, err)

	idx := NewIndex(testIndexName, data, WithKeyCollection(testutil.Keys()))
	require.NoError(t, idx.ValidateHeader())
	_, err = idx.Parse()
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	lines := splitLines([]byte("a\r\nbc\r\n\r\ntail"))
	require.Len(t, lines, 3)
	assert.Equal(t, "a", string(lines[0]))
	assert.Equal(t, "bc", string(lines[1]))
	assert.Empty(t, lines[2])
	assert.Nil(t, splitLines([]byte("no terminator")))
}
