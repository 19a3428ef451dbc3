package scanner

import (
	"iter"
	"strings"

	"github.com/FlipperPlz/BankProcessor/internal/bank"
)

// Form is one recognized configuration entry name.
type Form struct {
	FileName string // Entry name, matched case-insensitively
	Label    string // Short name used in reports
}

var (
	FormBinary = Form{FileName: "config.bin", Label: "bin"}
	FormText   = Form{FileName: "config.cpp", Label: "cpp"}
)

// Forms lists the recognized forms in scan order. Later forms overwrite
// earlier ones under the last-write-wins policy.
var Forms = []Form{FormBinary, FormText}

// Candidate is one configuration entry found by ScanEntries.
type Candidate struct {
	Dir   *bank.Directory
	Entry *bank.Entry
	Form  Form
	// Seq is the position in the overall scan, assigned by the Selector.
	Seq int
}

// Key is the directory identity used for deduplication.
func (c Candidate) Key() string {
	return c.Dir.Key()
}

// ScanEntries yields every entry of b named like form, in the bank's header
// order, whatever directory it sits in.
func ScanEntries(b *bank.Bank, form Form) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, e := range b.Entries() {
			if !strings.EqualFold(e.Name, form.FileName) {
				continue
			}
			if !yield(Candidate{Dir: e.Dir, Entry: e, Form: form}) {
				return
			}
		}
	}
}
