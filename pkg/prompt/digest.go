package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

func computeDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CombinedDigest hashes the digests of every template in the catalog in name
// order, so a run can record exactly which prompt set scored its articles.
func (c *Catalog) CombinedDigest() string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.templates[name].Digest())
		b.WriteByte('\n')
	}
	return computeDigest([]byte(b.String()))
}
