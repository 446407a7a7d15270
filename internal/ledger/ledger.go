// Package ledger implements C1: the append-only, hash-chained audit
// journal of every monetary and penalty event in the core (spec §4.1).
//
// Grounded on original_source/sweet_models_enterprise/backend_api/src/
// finance/ledger.rs for the block shape and seal/verify algorithm, with
// one deliberate fix: the original hashes the raw serde_json string,
// which is not canonical (key order isn't guaranteed); this
// implementation hashes canonical JSON instead, so chain verification
// is deterministic across re-implementations (spec §9).
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// Block is the externally visible, immutable ledger entry (spec §3
// LedgerBlock).
type Block struct {
	ID        identity.ID
	PrevHash  string
	Data      map[string]interface{}
	Nonce     uint64
	Hash      string
	Timestamp time.Time
}

// Ledger seals and verifies the hash chain backing every monetary event.
// Appends are serialized per chain with a single mutex, satisfying §5's
// "two concurrent sealers cannot read the same prev_hash" requirement.
type Ledger struct {
	db   *store.DB
	mu   sync.Mutex
}

// New constructs a Ledger over the given store.
func New(db *store.DB) *Ledger {
	return &Ledger{db: db}
}

// GenesisPrevHash is B_0's well-known predecessor hash (spec §3).
const GenesisPrevHash = "0"

// Seal appends a new block carrying data, chained to the current tail.
// Fails only with apperr.LedgerWriteFailed on a durable-store error —
// callers must roll back the enclosing business operation on failure
// (spec §4.1, §7).
func (l *Ledger) Seal(data map[string]interface{}) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var tail store.LedgerBlock
	err := l.db.GORM().Order("seq DESC").First(&tail).Error
	prevHash := GenesisPrevHash
	nextSeq := uint64(1)
	if err == nil {
		prevHash = tail.Hash
		nextSeq = tail.Seq + 1
	} else if err != gorm.ErrRecordNotFound {
		return Block{}, apperr.LedgerWriteFailed(err)
	}

	id := identity.NewID()
	nonce := uint64(time.Now().UnixNano())
	canonical, err := canonicalJSON(data)
	if err != nil {
		return Block{}, apperr.LedgerWriteFailed(err)
	}

	hash := computeHash(id, prevHash, canonical, nonce)
	ts := time.Now().UTC()

	rawData, err := json.Marshal(data)
	if err != nil {
		return Block{}, apperr.LedgerWriteFailed(err)
	}

	row := store.LedgerBlock{
		ID:        id,
		Seq:       nextSeq,
		PrevHash:  prevHash,
		Data:      string(rawData),
		Nonce:     nonce,
		Hash:      hash,
		Timestamp: ts,
	}
	if err := l.db.GORM().Create(&row).Error; err != nil {
		return Block{}, apperr.LedgerWriteFailed(err)
	}

	return Block{
		ID:        id,
		PrevHash:  prevHash,
		Data:      data,
		Nonce:     nonce,
		Hash:      hash,
		Timestamp: ts,
	}, nil
}

// VerifyChain iterates every block in insertion order and checks both
// the prev_hash link and the recomputed hash, returning false at the
// first mismatch (spec §4.1).
func (l *Ledger) VerifyChain() (bool, error) {
	var rows []store.LedgerBlock
	if err := l.db.GORM().Order("seq ASC").Find(&rows).Error; err != nil {
		return false, fmt.Errorf("ledger: verify: %w", err)
	}

	prevHash := GenesisPrevHash
	for _, row := range rows {
		if row.PrevHash != prevHash {
			return false, nil
		}
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return false, nil
		}
		canonical, err := canonicalJSON(data)
		if err != nil {
			return false, nil
		}
		recomputed := computeHash(row.ID, row.PrevHash, canonical, row.Nonce)
		if recomputed != row.Hash {
			return false, nil
		}
		prevHash = row.Hash
	}
	return true, nil
}

// History returns every block whose data carries the given user_id,
// in insertion order (spec §4.1 history(user_id)).
func (l *Ledger) History(userID identity.ID) ([]Block, error) {
	var rows []store.LedgerBlock
	q := `data->>'$.user_id' = ?`
	if err := l.db.GORM().Where(q, userID.String()).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}

	blocks := make([]Block, 0, len(rows))
	for _, row := range rows {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			continue
		}
		blocks = append(blocks, Block{
			ID:        row.ID,
			PrevHash:  row.PrevHash,
			Data:      data,
			Nonce:     row.Nonce,
			Hash:      row.Hash,
			Timestamp: row.Timestamp,
		})
	}
	return blocks, nil
}

// computeHash implements hash = SHA3-512(id || prev_hash || canonical_json(data) || nonce).
func computeHash(id identity.ID, prevHash string, canonicalData []byte, nonce uint64) string {
	h := sha3.New512()
	h.Write([]byte(id.String()))
	h.Write([]byte(prevHash))
	h.Write(canonicalData)
	h.Write([]byte(fmt.Sprintf("%d", nonce)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON marshals v with lexicographically sorted object keys and
// no insignificant whitespace, so semantically equal payloads always hash
// identically (spec §4.1, §8 canonical-hashing property).
func canonicalJSON(v interface{}) ([]byte, error) {
	normalized := normalize(v)
	return json.Marshal(normalized)
}

// normalize recursively converts maps into sortedMap, whose MarshalJSON
// emits keys in sorted order; json.Marshal already omits insignificant
// whitespace.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		sm := make(sortedMap, 0, len(t))
		for k, val := range t {
			sm = append(sm, sortedEntry{key: k, value: normalize(val)})
		}
		sort.Slice(sm, func(i, j int) bool { return sm[i].key < sm[j].key })
		return sm
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return t
	}
}

type sortedEntry struct {
	key   string
	value interface{}
}

type sortedMap []sortedEntry

func (m sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, entry := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(entry.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(entry.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
