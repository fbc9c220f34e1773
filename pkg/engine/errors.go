package engine

// ErrorKind classifies a recoverable pipeline failure.
type ErrorKind string

const (
	KindTransport          ErrorKind = "transport"
	KindParse              ErrorKind = "parse"
	KindSchemaViolation    ErrorKind = "schema-violation"
	KindValidationRejected ErrorKind = "validation-rejected"
)

// ErrorRecord is one entry of the run-wide error ledger. None of these abort
// the run; they only reduce the yield of the unit named in SourceFile.
type ErrorRecord struct {
	SourceFile string    `json:"source_file"`
	Attempt    int       `json:"attempt"`
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
}
