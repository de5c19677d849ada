package model

// Origins of ingest envelopes.
const (
	OriginFile   = "file"
	OriginUpload = "upload"
	OriginTCP    = "tcp"
	OriginStdin  = "stdin"
)

// IngestEnvelope carries one delivery batch of raw lines with source metadata.
// It is the transport contract between ingestion plugins and the coordinator.
type IngestEnvelope struct {
	Source   string   `json:"source"`
	Filename string   `json:"filename"` // fallback for the record source field
	Lines    []string `json:"lines"`
}

// Empty reports whether the envelope carries no non-blank line.
func (e IngestEnvelope) Empty() bool {
	for _, line := range e.Lines {
		for i := 0; i < len(line); i++ {
			switch line[i] {
			case ' ', '\t', '\r', '\n', '\v', '\f':
				continue
			}
			return false
		}
	}
	return true
}
