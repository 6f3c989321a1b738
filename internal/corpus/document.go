package corpus

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Logical document names expected in the corpus directory. Absence of any one
// of them is a degraded-mode condition, not an error.
const (
	SourceEligibility  = "eligibility_criteria"
	SourceFeeStructure = "fee_structure"
	SourceLoanPolicy   = "loan_policy"
)

// Document is one reference text, immutable once loaded.
type Document struct {
	SourceID string
	Body     string
}

// LoadDir reads every .txt file in dir as a Document keyed by its base name.
// A missing directory yields an empty slice; the caller decides whether zero
// documents is fatal.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			SourceID: strings.TrimSuffix(entry.Name(), ".txt"),
			Body:     string(raw),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceID < docs[j].SourceID })
	return docs, nil
}
