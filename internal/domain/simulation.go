package domain

// CallVariant is the venue function family chosen for a swap call.
type CallVariant string

const (
	VariantNativeIn     CallVariant = "native-in"
	VariantNativeOut    CallVariant = "native-out"
	VariantTokenToToken CallVariant = "token-to-token"

	// Fee-on-transfer-safe counterparts tolerate output-amount deviation
	// caused by tokens that deduct a fee on transfer.
	VariantNativeInFeeSafe     CallVariant = "native-in-fee-safe"
	VariantNativeOutFeeSafe    CallVariant = "native-out-fee-safe"
	VariantTokenToTokenFeeSafe CallVariant = "token-to-token-fee-safe"
)

// FeeSafe returns the fee-on-transfer-tolerant counterpart of a variant.
func (v CallVariant) FeeSafe() CallVariant {
	switch v {
	case VariantNativeIn:
		return VariantNativeInFeeSafe
	case VariantNativeOut:
		return VariantNativeOutFeeSafe
	case VariantTokenToToken:
		return VariantTokenToTokenFeeSafe
	}
	return v
}

// SimulationResult is the go/no-go verdict from the pre-submission
// dry run. OK=false with a risky ErrorKind still allows the caller to
// submit at their own discretion; fatal kinds must block submission.
type SimulationResult struct {
	OK                  bool        `json:"ok"`
	SelectedCallVariant CallVariant `json:"selectedCallVariant,omitempty"`
	ErrorKind           string      `json:"errorKind,omitempty"`
	ErrorMessage        string      `json:"errorMessage,omitempty"`
	Warnings            []string    `json:"warnings,omitempty"`
}
