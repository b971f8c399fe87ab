package storage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressiblePage() []byte {
	data := PageBuffer()
	for i := range data {
		data[i] = byte(i % 16)
	}
	return data
}

func randomPage(seed int64) []byte {
	data := PageBuffer()
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func TestCompressPageRoundTrip(t *testing.T) {
	for _, ct := range []CompressionType{CompressionLZ4, CompressionSnappy} {
		t.Run(ct.String(), func(t *testing.T) {
			data := compressiblePage()

			cp, err := CompressPage(data, ct)
			require.NoError(t, err)
			require.Equal(t, ct, cp.CompressionType)
			assert.Less(t, cp.CompressedSize, cp.UncompressedSize)

			block := PageBuffer()
			require.NoError(t, SerializeCompressedPage(cp, block))
			parsed, err := DeserializeCompressedPage(block)
			require.NoError(t, err)
			out, err := DecompressPage(parsed)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestCompressPageIncompressible(t *testing.T) {
	data := randomPage(1)

	for _, ct := range []CompressionType{CompressionLZ4, CompressionSnappy} {
		cp, err := CompressPage(data, ct)
		require.NoError(t, err)
		assert.Equal(t, CompressionNone, cp.CompressionType, "%s falls back to none for random data", ct)
	}
}

func TestDecompressDetectsCorruption(t *testing.T) {
	cp, err := CompressPage(compressiblePage(), CompressionSnappy)
	require.NoError(t, err)
	cp.OriginalChecksum ^= 0xFFFF

	_, err = DecompressPage(cp)
	assert.Error(t, err, "checksum mismatch")
}

func TestDeserializeBadMagic(t *testing.T) {
	_, err := DeserializeCompressedPage(PageBuffer())
	assert.Error(t, err, "invalid magic")

	_, err = DeserializeCompressedPage(make([]byte, 4))
	assert.Error(t, err, "short header")
}

func TestParseCompressionType(t *testing.T) {
	tests := map[string]CompressionType{
		"":       CompressionNone,
		"none":   CompressionNone,
		"LZ4":    CompressionLZ4,
		"snappy": CompressionSnappy,
	}
	for name, want := range tests {
		got, err := ParseCompressionType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseCompressionType("zstd")
	assert.True(t, IsErrorCode(err, ErrCodeInvalidConfig), "got %v", err)
}

func TestPageCompressionStats(t *testing.T) {
	var stats PageCompressionStats
	assert.Equal(t, 1.0, stats.GetStoredRatio(), "nothing written")

	cp, _ := CompressPage(compressiblePage(), CompressionLZ4)
	stats.AddCompression(cp)
	raw, _ := CompressPage(randomPage(2), CompressionLZ4)
	stats.AddCompression(raw)

	assert.Equal(t, uint64(2), stats.TotalPages)
	assert.Equal(t, uint64(1), stats.CompressedPages)
	assert.Equal(t, uint64(1), stats.UncompressedPages)
	assert.Positive(t, stats.GetSpaceSavings())
	assert.Greater(t, stats.GetCompressionRatio(), 1.0)
	assert.Less(t, stats.GetStoredRatio(), 1.0)
}
