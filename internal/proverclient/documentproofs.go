package proverclient

// documentproofs.go — types for the prover/documentProofs and
// prover/search side-channel requests, which describe document
// structure independent of the STM's state_id-keyed add/edit_at flow.

// ProofBlock is one proof in the document, as returned by
// prover/documentProofs.
type ProofBlock struct {
	Statement ProofStatement `json:"statement"`
	Range     LSPRange       `json:"range"`
	Steps     []ProofStep    `json:"steps"`
}

type ProofStatement struct {
	Statement string   `json:"statement"`
	Range     LSPRange `json:"range"`
}

type ProofStep struct {
	Tactic string   `json:"tactic"`
	Range  LSPRange `json:"range"`
}

// LSPRange is the wire-shaped line/character range vsrocqtop reports for
// document-structure queries (as opposed to buffer.Range, which is used
// internally once a range has been resolved against a TextBuffer).
type LSPRange struct {
	Start LSPPosition `json:"start"`
	End   LSPPosition `json:"end"`
}

type LSPPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// SearchHit is one result streamed back from prover/searchResult.
type SearchHit struct {
	Name      string
	Statement string
}
