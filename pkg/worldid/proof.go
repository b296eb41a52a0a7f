package worldid

import "encoding/json"

// ProofRequest is the body sent to the proof verification endpoint.
type ProofRequest struct {
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
	SignalHash        string `json:"signal_hash,omitempty"`
}

// ProofVerification is the success branch of a ProofOutcome. Callers must
// record NullifierHash as consumed to prevent proof reuse.
type ProofVerification struct {
	Uses              int    `json:"uses"`
	Action            string `json:"action"`
	MaxUses           int    `json:"max_uses"`
	NullifierHash     string `json:"nullifier_hash"`
	CreatedAt         string `json:"created_at"`
	VerificationLevel string `json:"verification_level"`
	Message           string `json:"message,omitempty"`
}

// ProofRejection is the failure branch of a ProofOutcome. Code, Detail and
// Attribute are copied verbatim from the provider when it sent them.
type ProofRejection struct {
	Code      string `json:"code,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ProofOutcome holds exactly one of a verification or a rejection.
type ProofOutcome struct {
	verification *ProofVerification
	rejection    *ProofRejection
}

func Verified(v ProofVerification) *ProofOutcome {
	return &ProofOutcome{verification: &v}
}

func Rejected(r ProofRejection) *ProofOutcome {
	return &ProofOutcome{rejection: &r}
}

func (o *ProofOutcome) Succeeded() bool {
	return o != nil && o.verification != nil
}

// Verification returns the success branch, nil on rejection.
func (o *ProofOutcome) Verification() *ProofVerification {
	if o == nil {
		return nil
	}
	return o.verification
}

// Rejection returns the failure branch, nil on success.
func (o *ProofOutcome) Rejection() *ProofRejection {
	if o == nil {
		return nil
	}
	return o.rejection
}

func (o ProofOutcome) MarshalJSON() ([]byte, error) {
	if o.verification != nil {
		return json.Marshal(struct {
			Success bool `json:"success"`
			*ProofVerification
		}{true, o.verification})
	}
	rejection := o.rejection
	if rejection == nil {
		rejection = &ProofRejection{}
	}
	return json.Marshal(struct {
		Success bool `json:"success"`
		*ProofRejection
	}{false, rejection})
}

// verifyResponse is the union of the provider's success and error bodies.
type verifyResponse struct {
	Success           bool   `json:"success"`
	Uses              int    `json:"uses"`
	Action            string `json:"action"`
	MaxUses           int    `json:"max_uses"`
	NullifierHash     string `json:"nullifier_hash"`
	CreatedAt         string `json:"created_at"`
	VerificationLevel string `json:"verification_level"`
	Message           string `json:"message"`
	Code              string `json:"code"`
	Detail            string `json:"detail"`
	Attribute         string `json:"attribute"`
	Error             string `json:"error"`
}

func (r *verifyResponse) verification() ProofVerification {
	return ProofVerification{
		Uses:              r.Uses,
		Action:            r.Action,
		MaxUses:           r.MaxUses,
		NullifierHash:     r.NullifierHash,
		CreatedAt:         r.CreatedAt,
		VerificationLevel: r.VerificationLevel,
		Message:           r.Message,
	}
}

func (r *verifyResponse) rejection() ProofRejection {
	return ProofRejection{
		Code:      r.Code,
		Detail:    r.Detail,
		Attribute: r.Attribute,
		Message:   r.Message,
		Error:     r.Error,
	}
}
