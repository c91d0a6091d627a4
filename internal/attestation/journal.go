package attestation

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	dErrors "derisk/pkg/domain-errors"
)

// JournalSize is the exact length of an attestation journal.
const JournalSize = 48

// Journal field offsets. All fields are little-endian.
const (
	offScore       = 0
	offAssets      = 8
	offLiabilities = 24
	offTimestamp   = 40
)

// MaxBasisPoints is a score of 100%.
const MaxBasisPoints = 10_000

// MaxScore is the top of the engine's score scale.
const MaxScore = 100

// Journal is the public output of the off-chain safety computation.
type Journal struct {
	ScoreBasisPoints uint64
	// TotalAssets and TotalLiabilities are USD values scaled by 1e8.
	TotalAssets      Uint128
	TotalLiabilities Uint128
	Timestamp        uint64
}

// DecodeJournal parses exactly JournalSize bytes.
func DecodeJournal(b []byte) (Journal, error) {
	if len(b) != JournalSize {
		return Journal{}, dErrors.Newf(dErrors.CodeValidation, "journal must be exactly %d bytes, got %d", JournalSize, len(b))
	}
	return Journal{
		ScoreBasisPoints: binary.LittleEndian.Uint64(b[offScore:offAssets]),
		TotalAssets:      readUint128(b[offAssets:offLiabilities]),
		TotalLiabilities: readUint128(b[offLiabilities:offTimestamp]),
		Timestamp:        binary.LittleEndian.Uint64(b[offTimestamp:JournalSize]),
	}, nil
}

// Encode is the inverse of DecodeJournal.
func (j Journal) Encode() []byte {
	b := make([]byte, JournalSize)
	binary.LittleEndian.PutUint64(b[offScore:offAssets], j.ScoreBasisPoints)
	writeUint128(b[offAssets:offLiabilities], j.TotalAssets)
	writeUint128(b[offLiabilities:offTimestamp], j.TotalLiabilities)
	binary.LittleEndian.PutUint64(b[offTimestamp:JournalSize], j.Timestamp)
	return b
}

// Score converts basis points to the 0-100 scale: min(100, bp*100/10000).
// bp*100/10000 is computed as bp/100, which is exact and cannot overflow.
func (j Journal) Score() uint8 {
	return ScoreFromBasisPoints(j.ScoreBasisPoints)
}

// ScoreFromBasisPoints applies the journal score conversion.
func ScoreFromBasisPoints(bp uint64) uint8 {
	s := bp / (MaxBasisPoints / MaxScore)
	if s > MaxScore {
		return MaxScore
	}
	return uint8(s)
}

// Time is the attested snapshot time.
func (j Journal) Time() time.Time {
	if j.Timestamp > uint64(1<<63-1) {
		return time.Unix(1<<63-1, 0).UTC()
	}
	return time.Unix(int64(j.Timestamp), 0).UTC()
}

// Digest is the SHA-256 of the raw journal bytes, the value the seal commits to.
func Digest(journal []byte) [32]byte {
	return sha256.Sum256(journal)
}

// A little-endian u128 is the low word followed by the high word.
func readUint128(b []byte) Uint128 {
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

func writeUint128(b []byte, v Uint128) {
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], v.Hi)
}
