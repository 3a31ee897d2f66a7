package pipeline

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// sealer signs staged batches so Commit only writes content Stage produced.
type sealer struct {
	key []byte
}

// newSealer uses key, or a random per-process key when key is empty. Batches
// staged by another process then fail verification and must be staged again.
func newSealer(key []byte) *sealer {
	if len(key) == 0 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	return &sealer{key: key}
}

func (s *sealer) sign(b *model.ImportBatch) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonicalBatch(b))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *sealer) verify(b *model.ImportBatch) bool {
	return b.Seal != "" && hmac.Equal([]byte(b.Seal), []byte(s.sign(b)))
}

// canonicalBatch encodes the staged content of b. Status and duplicate flags
// are left out since Commit recomputes them against the store.
func canonicalBatch(b *model.ImportBatch) []byte {
	fields := []string{
		"IMPORT_BATCH", "v1",
		b.ID, b.SourceName, b.DocumentHash, b.Bank, b.Company, b.Account, b.Format,
		nullDecimal(b.OpeningBalance.Valid, b.OpeningBalance.Decimal.StringFixed(2)),
		b.StagedAt.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(len(b.Candidates)), strconv.Itoa(len(b.Lines)),
	}
	for _, c := range b.Candidates {
		fields = append(fields,
			strconv.Itoa(c.Row),
			c.Date.Format(model.DateLayout),
			c.Description,
			c.Reference,
			c.Amount.StringFixed(2),
			string(c.Direction),
			nullDecimal(c.Balance.Valid, c.Balance.Decimal.StringFixed(2)),
			c.Source,
			strconv.Itoa(c.Line),
		)
		keys := make([]string, 0, len(c.Extra))
		for k := range c.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields = append(fields, strconv.Itoa(len(keys)))
		for _, k := range keys {
			fields = append(fields, k, c.Extra[k])
		}
	}
	for _, l := range b.Lines {
		fields = append(fields, strconv.Itoa(l.Line), strconv.Itoa(l.Page), l.Text)
	}
	data, _ := json.Marshal(fields)
	return data
}

func nullDecimal(valid bool, s string) string {
	if !valid {
		return "null"
	}
	return s
}
