// Package erasure implements the systematic Reed-Solomon redundancy
// transform applied to premium and enterprise deals. Any k of the
// resulting k+m chunks reconstruct the original object exactly.
package erasure

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// ChunkType distinguishes systematic data chunks from parity chunks.
type ChunkType string

const (
	// ChunkData is an original data chunk, zero-padded if short.
	ChunkData ChunkType = "data"
	// ChunkParity is a derived parity chunk.
	ChunkParity ChunkType = "parity"
)

// Params configure the redundancy transform. The reference
// configuration is 10 data chunks, 4 parity chunks, 256KiB chunk size.
type Params struct {
	ChunkSize    int `json:"chunk_size"`
	DataChunks   int `json:"data_chunks"`
	ParityChunks int `json:"parity_chunks"`
}

// Validate rejects parameter sets the coder cannot operate on.
func (p Params) Validate() error {
	if p.DataChunks < 1 {
		return errors.New("data chunk count must be at least 1")
	}

	if p.ParityChunks < 1 {
		return errors.New("parity chunk count must be at least 1")
	}

	if p.DataChunks+p.ParityChunks > 256 {
		return errors.New("total chunk count must not exceed 256")
	}

	if p.ChunkSize < 1 {
		return errors.New("chunk size must be positive")
	}

	return nil
}

// Chunk is one stored shard of an encoded object.
type Chunk struct {
	Type  ChunkType `json:"type"`
	Index int       `json:"index"`
	CID   string    `json:"cid,omitempty"`
	Hash  string    `json:"hash"`
	Size  int       `json:"size"`
	Data  []byte    `json:"-"`
}

// Metadata records everything needed to reconstruct the original
// object from any sufficient chunk subset. It is persisted on the deal.
type Metadata struct {
	OriginalCID          string    `json:"original_cid,omitempty"`
	OriginalSize         int64     `json:"original_size"`
	ChunkSize            int       `json:"chunk_size"`
	DataChunkCount       int       `json:"data_chunk_count"`
	ParityChunkCount     int       `json:"parity_chunk_count"`
	MinChunksForRecovery int       `json:"min_chunks_for_recovery"`
	RedundancyPercent    float64   `json:"redundancy_percent"`
	Chunks               []*Chunk  `json:"chunks"`
	EncodedAt            time.Time `json:"encoded_at"`
}

// ReconstructionError reports why an object could not be rebuilt from
// the available chunks.
type ReconstructionError struct {
	Available int
	Required  int
	Reason    string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstruction failed, have %d of %d required chunks: %s",
		e.Available, e.Required, e.Reason)
}

// Overhead is the predicted storage cost of encoding an object.
type Overhead struct {
	TotalChunks     int     `json:"total_chunks"`
	ChunkSize       int     `json:"chunk_size"`
	StoredBytes     int64   `json:"stored_bytes"`
	OverheadBytes   int64   `json:"overhead_bytes"`
	OverheadPercent float64 `json:"overhead_percent"`
}

// shardSize grows the configured chunk size when the object does not
// fit into k chunks of that size.
func shardSize(size int64, p Params) int {
	perChunk := (size + int64(p.DataChunks) - 1) / int64(p.DataChunks)
	if perChunk > int64(p.ChunkSize) {
		return int(perChunk)
	}

	return p.ChunkSize
}

// Encode splits data into k fixed-size chunks and derives m parity
// chunks. The final data chunk is zero-padded when short.
func Encode(data []byte, p Params) (*Metadata, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, errors.New("cannot encode empty data")
	}

	size := shardSize(int64(len(data)), p)
	total := p.DataChunks + p.ParityChunks
	shards := make([][]byte, total)
	for i := 0; i < p.DataChunks; i++ {
		shards[i] = make([]byte, size)
		lo := i * size
		if lo < len(data) {
			hi := lo + size
			if hi > len(data) {
				hi = len(data)
			}

			copy(shards[i], data[lo:hi])
		}
	}

	for i := p.DataChunks; i < total; i++ {
		shards[i] = make([]byte, size)
	}

	enc, err := reedsolomon.New(p.DataChunks, p.ParityChunks)
	if err != nil {
		return nil, errors.Wrap(err, "init reed-solomon coder")
	}

	if err := enc.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "derive parity chunks")
	}

	chunks := make([]*Chunk, total)
	for i, shard := range shards {
		typ := ChunkData
		if i >= p.DataChunks {
			typ = ChunkParity
		}

		sum := sha256.Sum256(shard)
		chunks[i] = &Chunk{
			Type:  typ,
			Index: i,
			Hash:  hex.EncodeToString(sum[:]),
			Size:  len(shard),
			Data:  shard,
		}
	}

	return &Metadata{
		OriginalSize:         int64(len(data)),
		ChunkSize:            size,
		DataChunkCount:       p.DataChunks,
		ParityChunkCount:     p.ParityChunks,
		MinChunksForRecovery: p.DataChunks,
		RedundancyPercent:    float64(p.ParityChunks) / float64(p.DataChunks) * 100,
		Chunks:               chunks,
		EncodedAt:            time.Now().UTC(),
	}, nil
}

// Decode reconstructs the original object from any k available chunks
// with known indices.
func Decode(available []*Chunk, meta *Metadata) ([]byte, error) {
	k := meta.DataChunkCount
	total := k + meta.ParityChunkCount
	shards := make([][]byte, total)
	distinct := 0
	for _, c := range available {
		if c.Index < 0 || c.Index >= total {
			return nil, &ReconstructionError{
				Available: distinct,
				Required:  k,
				Reason: fmt.Sprintf("chunk index %d out of range",
					c.Index),
			}
		}

		if len(c.Data) != meta.ChunkSize {
			return nil, &ReconstructionError{
				Available: distinct,
				Required:  k,
				Reason: fmt.Sprintf("chunk %d has size %d, want %d",
					c.Index, len(c.Data), meta.ChunkSize),
			}
		}

		sum := sha256.Sum256(c.Data)
		if want := meta.Chunks[c.Index].Hash; hex.EncodeToString(sum[:]) != want {
			return nil, &ReconstructionError{
				Available: distinct,
				Required:  k,
				Reason: fmt.Sprintf("chunk %d content does not match "+
					"recorded hash", c.Index),
			}
		}

		if shards[c.Index] == nil {
			distinct++
		}

		shards[c.Index] = c.Data
	}

	if distinct < k {
		return nil, &ReconstructionError{
			Available: distinct,
			Required:  k,
			Reason:    "not enough distinct chunks",
		}
	}

	dec, err := reedsolomon.New(k, meta.ParityChunkCount)
	if err != nil {
		return nil, errors.Wrap(err, "init reed-solomon coder")
	}

	if err := dec.Reconstruct(shards); err != nil {
		return nil, &ReconstructionError{
			Available: distinct,
			Required:  k,
			Reason:    err.Error(),
		}
	}

	data := make([]byte, 0, int64(k)*int64(meta.ChunkSize))
	for i := 0; i < k; i++ {
		data = append(data, shards[i]...)
	}

	return data[:meta.OriginalSize], nil
}

// CalculateOverhead predicts the stored size of an object without
// performing the encode, for planning and pricing quotes.
func CalculateOverhead(sizeBytes int64, p Params) (*Overhead, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if sizeBytes < 1 {
		return nil, errors.New("size must be positive")
	}

	size := shardSize(sizeBytes, p)
	total := p.DataChunks + p.ParityChunks
	stored := int64(total) * int64(size)
	return &Overhead{
		TotalChunks:     total,
		ChunkSize:       size,
		StoredBytes:     stored,
		OverheadBytes:   stored - sizeBytes,
		OverheadPercent: float64(stored-sizeBytes) / float64(sizeBytes) * 100,
	}, nil
}
