package xlrd

import (
	"strings"

	"github.com/xuri/efp"
)

// FormulaRefs lists the cell and range references of formula text, in
// order of first appearance. Absolute markers are kept; sheet prefixes are
// part of the reference.
func FormulaRefs(formula string) []string {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return nil
	}
	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)

	var refs []string
	seen := make(map[string]bool)
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := token.TValue
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
