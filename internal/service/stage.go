package service

// Stage is a step of a summarization run. Stages advance strictly in
// declaration order until Done or Failed.
type Stage int

const (
	StageStart Stage = iota
	StageResolveModel
	StageLoadRuntime
	StageAcquireInput
	StageBuildPrompt
	StageRunGeneration
	StageReportStats
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageResolveModel:
		return "resolve model"
	case StageLoadRuntime:
		return "load runtime"
	case StageAcquireInput:
		return "acquire input"
	case StageBuildPrompt:
		return "build prompt"
	case StageRunGeneration:
		return "run generation"
	case StageReportStats:
		return "report stats"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}
