package dedup

import (
	"hash/fnv"
	"strings"

	"github.com/nlmatters/semdex/internal/chunker"
)

const (
	numHashes = 16
	numBands  = 4
	bandSize  = numHashes / numBands
)

// Deduplicator removes near-duplicate texts from an ordered sequence while
// preserving first-occurrence order. Exact duplicates always collapse;
// near-duplicates are dropped when their Jaccard similarity to an earlier
// retained text reaches the threshold. MinHash signature bands bucket
// candidates so exact similarity is only scored within a bucket, never
// across all pairs.
type Deduplicator struct {
	threshold   float64
	shingleSize int
}

// New creates a deduplicator. threshold is the Jaccard similarity in [0,1]
// at or above which a text is considered a duplicate; shingleSize is the
// number of words per shingle.
func New(threshold float64, shingleSize int) *Deduplicator {
	if shingleSize <= 0 {
		shingleSize = 3
	}
	return &Deduplicator{threshold: threshold, shingleSize: shingleSize}
}

type entry struct {
	index    int
	shingles map[uint64]struct{}
}

// Unique returns the indices of retained texts, in original order.
func (d *Deduplicator) Unique(texts []string) []int {
	kept := make([]int, 0, len(texts))
	seenExact := make(map[uint64]struct{}, len(texts))
	buckets := make(map[uint64][]*entry)

	for i, text := range texts {
		canon := canonicalize(text)
		if canon == "" {
			continue
		}

		exact := hash64(canon)
		if _, dup := seenExact[exact]; dup {
			continue
		}

		shingles := d.shingles(canon)
		signature := minhash(shingles)
		bandKeys := bandHashes(signature)

		dup := false
		if d.threshold <= 1 {
			checked := make(map[int]struct{})
			for _, key := range bandKeys {
				for _, prev := range buckets[key] {
					if _, done := checked[prev.index]; done {
						continue
					}
					checked[prev.index] = struct{}{}
					if jaccard(shingles, prev.shingles) >= d.threshold {
						dup = true
						break
					}
				}
				if dup {
					break
				}
			}
		}
		if dup {
			continue
		}

		seenExact[exact] = struct{}{}
		e := &entry{index: i, shingles: shingles}
		for _, key := range bandKeys {
			buckets[key] = append(buckets[key], e)
		}
		kept = append(kept, i)
	}
	return kept
}

// FilterChunks drops near-duplicate chunks and reassigns ChunkIndex densely
// from 0, preserving relative order.
func (d *Deduplicator) FilterChunks(chunks []chunker.Chunk) []chunker.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	kept := d.Unique(texts)
	out := make([]chunker.Chunk, 0, len(kept))
	for newIndex, orig := range kept {
		ch := chunks[orig]
		ch.ChunkIndex = newIndex
		out = append(out, ch)
	}
	return out
}

// canonicalize folds case and whitespace so cosmetic differences do not
// defeat duplicate detection.
func canonicalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// shingles builds the word shingle set. Texts shorter than one shingle hash
// as a single whole-text shingle.
func (d *Deduplicator) shingles(canon string) map[uint64]struct{} {
	words := strings.Fields(canon)
	set := make(map[uint64]struct{})
	if len(words) < d.shingleSize {
		set[hash64(canon)] = struct{}{}
		return set
	}
	for i := 0; i+d.shingleSize <= len(words); i++ {
		set[hash64(strings.Join(words[i:i+d.shingleSize], " "))] = struct{}{}
	}
	return set
}

// minhash computes a fixed-width signature by mixing each shingle hash with
// per-slot seeds and keeping the minimum.
func minhash(shingles map[uint64]struct{}) [numHashes]uint64 {
	var sig [numHashes]uint64
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for h := range shingles {
		for i := 0; i < numHashes; i++ {
			mixed := mix(h, uint64(i)+1)
			if mixed < sig[i] {
				sig[i] = mixed
			}
		}
	}
	return sig
}

func bandHashes(sig [numHashes]uint64) []uint64 {
	keys := make([]uint64, numBands)
	for b := 0; b < numBands; b++ {
		h := fnv.New64a()
		var buf [8]byte
		buf[0] = byte(b) // band id keeps buckets from colliding across bands
		h.Write(buf[:1])
		for i := b * bandSize; i < (b+1)*bandSize; i++ {
			v := sig[i]
			for j := 0; j < 8; j++ {
				buf[j] = byte(v >> (8 * j))
			}
			h.Write(buf[:])
		}
		keys[b] = h.Sum64()
	}
	return keys
}

func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for h := range small {
		if _, ok := large[h]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// mix is a splitmix64 style finalizer over the shingle hash and a seed.
func mix(h, seed uint64) uint64 {
	z := h + seed*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
