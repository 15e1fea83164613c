package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
)

// KeyParams covers everything that may change a computation's output.
// Any edit to any field must produce a different key, otherwise a prompt or
// parameter change would keep serving stale results.
type KeyParams struct {
	Operation string //summarize | digest | rag-answer
	PromptKey string //template id@version
	Provider  string //gateway name
	Budget    int
	Extra     map[string]string //question, top_k and friends
}

// Fingerprint hashes the normalized document set plus all parameters.
// Document order is preserved: a summary over [A,B] is not a summary
// over [B,A].
func Fingerprint(docs []docModel.Document, p KeyParams) string {
	h := sha256.New()

	for _, doc := range docs {
		io.WriteString(h, doc.Id)
		io.WriteString(h, "\x1f")
		io.WriteString(h, normalize(doc.Text))
		io.WriteString(h, "\x1e")
	}

	io.WriteString(h, p.Operation)
	io.WriteString(h, "\x1f")
	io.WriteString(h, p.PromptKey)
	io.WriteString(h, "\x1f")
	io.WriteString(h, p.Provider)
	io.WriteString(h, "\x1f")
	io.WriteString(h, strconv.Itoa(p.Budget))

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(h, "\x1f")
		io.WriteString(h, k)
		io.WriteString(h, "=")
		io.WriteString(h, p.Extra[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}

// normalize strips the variation that never changes meaning: line-ending
// style and leading/trailing whitespace.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
