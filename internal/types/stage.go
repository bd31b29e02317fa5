package types

// Enum values for pipeline job stage
type JobStage string

const (
	StageIngested   JobStage = "INGESTED"
	StageEncoded    JobStage = "ENCODED"
	StageSubmitted  JobStage = "SUBMITTED"
	StageComputed   JobStage = "COMPUTED"
	StageDecoded    JobStage = "DECODED"
	StageStored     JobStage = "STORED"
	StageSummarized JobStage = "SUMMARIZED"
	StageFailed     JobStage = "FAILED"
)

func (s JobStage) String() string {
	return string(s)
}

// IsTerminal reports whether a job in this stage will never transition again.
func (s JobStage) IsTerminal() bool {
	return s == StageSummarized || s == StageFailed
}

// QualifiedStagesFor returns the stages a job must currently be in for a
// transition into next to be legal. Stage order is fixed; FAILED is reachable
// from any non-terminal stage, and INGESTED from FAILED when a job is
// explicitly restarted.
func QualifiedStagesFor(next JobStage) []JobStage {
	switch next {
	case StageIngested:
		return []JobStage{StageFailed}
	case StageEncoded:
		return []JobStage{StageIngested}
	case StageSubmitted:
		return []JobStage{StageEncoded}
	case StageComputed:
		return []JobStage{StageSubmitted}
	case StageDecoded:
		return []JobStage{StageComputed}
	case StageStored:
		return []JobStage{StageDecoded}
	case StageSummarized:
		return []JobStage{StageStored}
	case StageFailed:
		return []JobStage{
			StageIngested, StageEncoded, StageSubmitted,
			StageComputed, StageDecoded, StageStored,
		}
	default:
		return nil
	}
}
