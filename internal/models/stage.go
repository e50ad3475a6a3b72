package models

// StageType identifies one unit of pipeline work. Stages are routed to their
// executor by type; the pipeline is strictly linear with no skipping,
// branching or fan-out.
type StageType string

const (
	StageScrape    StageType = "scrape"
	StageTranslate StageType = "translate"
	StageSummarize StageType = "summarize"
	StageComplete  StageType = "complete"
)

// IsValid checks if the StageType is a known, valid stage
func (s StageType) IsValid() bool {
	switch s {
	case StageScrape, StageTranslate, StageSummarize, StageComplete:
		return true
	}
	return false
}

// String returns the string representation of the StageType
func (s StageType) String() string {
	return string(s)
}

// DefaultChain returns the ordered workflow descriptor for a full ingestion:
// scrape, translate, summarize, complete.
func DefaultChain() []StageType {
	return []StageType{StageScrape, StageTranslate, StageSummarize, StageComplete}
}
