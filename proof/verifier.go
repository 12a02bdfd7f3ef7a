// Package proof issues and checks storage existence proofs against
// the content-addressed storage network, feeding every outcome into
// the reputation tracker.
package proof

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/ipfs"
)

// proofValidity is the window during which a generated proof can be
// checked. Binding the proof to a timestamp and nonce prevents replay
// against a past or future challenge.
const proofValidity = 5 * time.Minute

// sampleSize is the byte sample read to established readability and
// bound into the proof hash.
const sampleSize = 256

// ErrContentNotFound is returned when the storage network has no
// block for the content address; it must never yield a false
// "verified".
var ErrContentNotFound = errors.New("content not found on storage network")

// Storage is the subset of the storage network data plane the
// verifier needs.
type Storage interface {
	Cat(ctx context.Context, cid string, offset, length int64) ([]byte, error)
	PinLs(ctx context.Context, cid string) (bool, error)
	BlockStat(ctx context.Context, cid string) (int64, error)
}

// Recorder receives every verification outcome. Recording is best
// effort: failures are logged and swallowed.
type Recorder interface {
	RecordProofSuccess(host, cid string, responseTime time.Duration) error
	RecordProofFailure(host, cid, reason string) error
}

// Verifier runs the storage proof checks for one storage host.
type Verifier struct {
	storage    Storage
	reputation Recorder
	host       string
}

// NewVerifier returns a verifier bound to the host label under which
// outcomes are recorded.
func NewVerifier(storage Storage, reputation Recorder, host string) *Verifier {
	return &Verifier{
		storage:    storage,
		reputation: reputation,
		host:       host,
	}
}

// VerifyResult itemizes the three independent storage checks.
type VerifyResult struct {
	CID       string    `json:"cid"`
	Existence bool      `json:"existence"`
	Pinned    bool      `json:"pinned"`
	Readable  bool      `json:"readable"`
	Verified  bool      `json:"verified"`
	SizeBytes int64     `json:"size_bytes"`
	Issues    []string  `json:"issues"`
	CheckedAt time.Time `json:"checked_at"`
}

// Verify checks existence, pin membership and readability for the
// content address. The checks are independent: one failing does not
// short-circuit the others.
func (v *Verifier) Verify(ctx context.Context, cid string) (*VerifyResult, error) {
	started := time.Now()
	result := &VerifyResult{
		CID:       cid,
		Issues:    make([]string, 0),
		CheckedAt: started.UTC(),
	}

	size, err := v.storage.BlockStat(ctx, cid)
	if err != nil {
		result.Issues = append(result.Issues,
			fmt.Sprintf("existence check failed: %v", err))
	} else {
		result.Existence = true
		result.SizeBytes = size
	}

	pinned, err := v.storage.PinLs(ctx, cid)
	if err != nil {
		result.Issues = append(result.Issues,
			fmt.Sprintf("pin check failed: %v", err))
	} else if !pinned {
		result.Issues = append(result.Issues, "content is not pinned")
	} else {
		result.Pinned = true
	}

	if _, err := v.storage.Cat(ctx, cid, 0, sampleSize); err != nil {
		result.Issues = append(result.Issues,
			fmt.Sprintf("read check failed: %v", err))
	} else {
		result.Readable = true
	}

	result.Verified = result.Existence && result.Pinned && result.Readable
	v.recordOutcome(cid, result.Verified, time.Since(started))
	return result, nil
}

// Proof is a challenge-bound storage existence proof.
type Proof struct {
	CID         string    `json:"cid"`
	Challenge   string    `json:"challenge"`
	Timestamp   int64     `json:"timestamp"`
	SizeBytes   int64     `json:"size_bytes"`
	Hash        string    `json:"proof"`
	GeneratedAt time.Time `json:"generated_at"`
	ValidUntil  time.Time `json:"valid_until"`
}

// GenerateProof samples the object and returns
// sha256(cid || challenge || timestamp || size || base64(sample)).
// An empty challenge is replaced with a random nonce.
func (v *Verifier) GenerateProof(
	ctx context.Context,
	cid string,
	challenge string,
) (*Proof, error) {
	started := time.Now()
	if challenge == "" {
		nonce := make([]byte, 16)
		if _, err := rand.Read(nonce); err != nil {
			return nil, errors.Wrap(err, "generate challenge nonce")
		}

		challenge = hex.EncodeToString(nonce)
	}

	size, err := v.storage.BlockStat(ctx, cid)
	if err != nil {
		v.recordFailure(cid, err.Error())
		if errors.Is(err, ipfs.ErrNotFound) {
			return nil, ErrContentNotFound
		}

		return nil, errors.Wrap(err, "stat block")
	}

	sample, err := v.storage.Cat(ctx, cid, 0, sampleSize)
	if err != nil {
		v.recordFailure(cid, err.Error())
		return nil, errors.Wrap(err, "read sample")
	}

	ts := started.Unix()
	payload := fmt.Sprintf("%s%s%d%d%s",
		cid,
		challenge,
		ts,
		size,
		base64.StdEncoding.EncodeToString(sample),
	)
	sum := sha256.Sum256([]byte(payload))

	v.recordOutcome(cid, true, time.Since(started))
	return &Proof{
		CID:         cid,
		Challenge:   challenge,
		Timestamp:   ts,
		SizeBytes:   size,
		Hash:        hex.EncodeToString(sum[:]),
		GeneratedAt: started.UTC(),
		ValidUntil:  started.UTC().Add(proofValidity),
	}, nil
}

func (v *Verifier) recordOutcome(cid string, ok bool, elapsed time.Duration) {
	if ok {
		if err := v.reputation.RecordProofSuccess(v.host, cid, elapsed); err != nil {
			log.Warn("fail to record proof success",
				"host", v.host,
				"error", err,
			)
		}

		return
	}

	v.recordFailure(cid, "verification checks failed")
}

func (v *Verifier) recordFailure(cid, reason string) {
	if err := v.reputation.RecordProofFailure(v.host, cid, reason); err != nil {
		log.Warn("fail to record proof failure",
			"host", v.host,
			"error", err,
		)
	}
}
