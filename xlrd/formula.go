package xlrd

import "github.com/yamitzky/xlstream/biff"

// FormulaResolver turns formula cells into values: the cached result of
// the last calculation, or the formula text when text is set.
type FormulaResolver struct {
	classifier *Classifier
	text       bool
	context    func() *FormulaContext
}

// NewFormulaResolver returns a resolver classifying numeric results with
// c. In text mode, context supplies the names used by references; it is
// called on the first formula only when needed.
func NewFormulaResolver(c *Classifier, text bool, context func() *FormulaContext) *FormulaResolver {
	return &FormulaResolver{classifier: c, text: text, context: context}
}

// Resolve returns the value of f. deferred is set when the result is a
// string carried by the next record; v is then Empty. A non-nil error is
// informational: v is still the value to report.
func (r *FormulaResolver) Resolve(f biff.FormulaCell) (v Value, deferred bool, err error) {
	if r.text {
		var ctx *FormulaContext
		if r.context != nil {
			ctx = r.context()
		}
		text, err := DecompileFormula(ctx, f)
		return FormulaValue(text), false, err
	}

	switch f.Result.Kind {
	case biff.ResultNumber:
		return r.classifier.Classify(f.Result.Number, f.Format), false, nil
	case biff.ResultBool:
		return BooleanValue(f.Result.Bool), false, nil
	case biff.ResultError:
		return ErrorValue(biff.ErrorText(f.Result.Error)), false, nil
	case biff.ResultString:
		return EmptyValue(), true, nil
	}
	return EmptyValue(), false, nil
}
