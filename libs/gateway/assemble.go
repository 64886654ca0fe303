package gateway

// charsPerUnit is the fixed ratio used to estimate usage when a provider
// reports no accounting. It is an approximation, not a guarantee.
const charsPerUnit = 4

// assemble merges a provider payload into the canonical Result,
// preferring provider-reported usage and estimating otherwise.
func assemble(req Request, p Payload) *Result {
	res := &Result{Content: p.Content, Audio: p.Audio}
	if p.Usage != nil && (p.Usage.Input > 0 || p.Usage.Output > 0 || p.Usage.Total > 0) {
		res.Usage = *p.Usage
		if res.Usage.Total == 0 {
			res.Usage.Total = res.Usage.Input + res.Usage.Output
		}
		return res
	}
	in := estimateUnits(req.inputChars())
	out := estimateUnits(len(p.Content))
	res.Usage = Usage{Input: in, Output: out, Total: in + out, Estimated: true}
	return res
}

func estimateUnits(chars int) int {
	if chars == 0 {
		return 0
	}
	units := chars / charsPerUnit
	if units == 0 {
		units = 1
	}
	return units
}
