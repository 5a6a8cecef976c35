package liquidity

// MintState is the add page's input state. Exactly one field is independent.
type MintState struct {
	IndependentField Field
	TypedValue       string
	OtherTypedValue  string
}

// TypeInput records text typed into field. When the pool is empty both fields
// keep their own text; otherwise the other field is recomputed from the price.
func (s *MintState) TypeInput(field Field, value string, noLiquidity bool) {
	if noLiquidity {
		if field == s.IndependentField {
			s.TypedValue = value
			return
		}
		s.OtherTypedValue = s.TypedValue
		s.IndependentField = field
		s.TypedValue = value
		return
	}
	s.IndependentField = field
	s.TypedValue = value
	s.OtherTypedValue = ""
}

// Reset clears all inputs, leaving field A independent.
func (s *MintState) Reset() {
	*s = MintState{IndependentField: CurrencyA}
}

// BurnState is the remove page's input state.
type BurnState struct {
	IndependentField Field
	TypedValue       string
}

// NewBurnState starts the remove page at 0%.
func NewBurnState() BurnState {
	return BurnState{IndependentField: LiquidityPercent, TypedValue: "0"}
}

func (s *BurnState) TypeInput(field Field, value string) {
	s.IndependentField = field
	s.TypedValue = value
}
