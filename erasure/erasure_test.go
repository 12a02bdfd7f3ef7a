package erasure

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomBlob(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	rnd := rand.New(rand.NewSource(int64(n)))
	if _, err := rnd.Read(data); err != nil {
		t.Fatal(err)
	}

	return data
}

func TestEncodeReferenceConfig(t *testing.T) {
	p := Params{ChunkSize: 256 << 10, DataChunks: 10, ParityChunks: 4}
	data := randomBlob(t, 2560000)

	meta, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}

	if len(meta.Chunks) != 14 {
		t.Fatalf("chunk count = %d, want 14", len(meta.Chunks))
	}

	if meta.ChunkSize != 256<<10 {
		t.Errorf("chunk size = %d, want %d", meta.ChunkSize, 256<<10)
	}

	if meta.MinChunksForRecovery != 10 {
		t.Errorf("min chunks = %d, want 10", meta.MinChunksForRecovery)
	}

	if meta.RedundancyPercent != 40 {
		t.Errorf("redundancy percent = %v, want 40", meta.RedundancyPercent)
	}

	dataChunks, parityChunks := 0, 0
	for _, c := range meta.Chunks {
		if c.Size != meta.ChunkSize {
			t.Errorf("chunk %d size = %d, want %d",
				c.Index, c.Size, meta.ChunkSize)
		}

		switch c.Type {
		case ChunkData:
			dataChunks++
		case ChunkParity:
			parityChunks++
		}
	}

	if dataChunks != 10 || parityChunks != 4 {
		t.Errorf("got %d data + %d parity chunks, want 10 + 4",
			dataChunks, parityChunks)
	}
}

func TestRoundTripEveryKSubset(t *testing.T) {
	p := Params{ChunkSize: 64, DataChunks: 4, ParityChunks: 2}
	data := randomBlob(t, 200)

	meta, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}

	total := p.DataChunks + p.ParityChunks
	// Every 4-of-6 index combination must reconstruct the blob.
	for a := 0; a < total; a++ {
		for b := a + 1; b < total; b++ {
			avail := make([]*Chunk, 0, p.DataChunks)
			for i := 0; i < total; i++ {
				if i != a && i != b {
					avail = append(avail, meta.Chunks[i])
				}
			}

			got, err := Decode(avail, meta)
			if err != nil {
				t.Fatalf("decode without chunks %d,%d: %v", a, b, err)
			}

			if !bytes.Equal(got, data) {
				t.Fatalf("decode without chunks %d,%d: blob mismatch", a, b)
			}
		}
	}
}

func TestDecodeInsufficientChunks(t *testing.T) {
	p := Params{ChunkSize: 32, DataChunks: 3, ParityChunks: 2}
	data := randomBlob(t, 90)

	meta, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Decode(meta.Chunks[:2], meta)
	re, ok := err.(*ReconstructionError)
	if !ok {
		t.Fatalf("error = %v, want ReconstructionError", err)
	}

	if re.Available != 2 || re.Required != 3 {
		t.Errorf("available/required = %d/%d, want 2/3",
			re.Available, re.Required)
	}

	// Duplicated indices must not count as distinct chunks.
	_, err = Decode([]*Chunk{
		meta.Chunks[0],
		meta.Chunks[0],
		meta.Chunks[0],
	}, meta)
	if _, ok := err.(*ReconstructionError); !ok {
		t.Fatalf("error = %v, want ReconstructionError", err)
	}
}

func TestDecodeCorruptChunk(t *testing.T) {
	p := Params{ChunkSize: 32, DataChunks: 3, ParityChunks: 2}
	data := randomBlob(t, 90)

	meta, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}

	corrupt := *meta.Chunks[1]
	corrupt.Data = append([]byte(nil), corrupt.Data...)
	corrupt.Data[0] ^= 0xff

	_, err = Decode([]*Chunk{
		meta.Chunks[0],
		&corrupt,
		meta.Chunks[2],
	}, meta)
	if _, ok := err.(*ReconstructionError); !ok {
		t.Fatalf("error = %v, want ReconstructionError", err)
	}
}

func TestShardSizeGrowsForLargeObjects(t *testing.T) {
	p := Params{ChunkSize: 16, DataChunks: 4, ParityChunks: 2}
	data := randomBlob(t, 100)

	meta, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}

	if meta.ChunkSize != 25 {
		t.Errorf("chunk size = %d, want 25", meta.ChunkSize)
	}

	got, err := Decode(meta.Chunks[:p.DataChunks], meta)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, data) {
		t.Error("blob mismatch after decode")
	}
}

func TestCalculateOverhead(t *testing.T) {
	testCases := []struct {
		name        string
		size        int64
		params      Params
		wantStored  int64
		wantPercent float64
	}{
		{
			name:        "reference config exact fit",
			size:        10 * 256 << 10,
			params:      Params{ChunkSize: 256 << 10, DataChunks: 10, ParityChunks: 4},
			wantStored:  14 * 256 << 10,
			wantPercent: 40,
		},
		{
			name:        "small object padded",
			size:        100,
			params:      Params{ChunkSize: 64, DataChunks: 4, ParityChunks: 2},
			wantStored:  6 * 64,
			wantPercent: 284,
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			o, err := CalculateOverhead(c.size, c.params)
			if err != nil {
				t.Fatal(err)
			}

			if o.StoredBytes != c.wantStored {
				t.Errorf("stored = %d, want %d", o.StoredBytes, c.wantStored)
			}

			if o.OverheadPercent != c.wantPercent {
				t.Errorf("overhead = %v, want %v",
					o.OverheadPercent, c.wantPercent)
			}
		})
	}
}

func TestEncodeRejectsInvalidParams(t *testing.T) {
	testCases := []struct {
		name   string
		params Params
	}{
		{
			name:   "zero data chunks",
			params: Params{ChunkSize: 64, DataChunks: 0, ParityChunks: 2},
		},
		{
			name:   "zero parity chunks",
			params: Params{ChunkSize: 64, DataChunks: 4, ParityChunks: 0},
		},
		{
			name:   "zero chunk size",
			params: Params{ChunkSize: 0, DataChunks: 4, ParityChunks: 2},
		},
		{
			name:   "too many total chunks",
			params: Params{ChunkSize: 64, DataChunks: 200, ParityChunks: 100},
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Encode([]byte("x"), c.params); err == nil {
				t.Error("encode accepted invalid params")
			}
		})
	}
}
