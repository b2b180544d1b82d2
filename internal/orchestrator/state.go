package orchestrator

import (
	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/curation"
	"github.com/spigell/job-curator/internal/scoring"
	"github.com/spigell/job-curator/internal/scraper"
)

// State is a node of the orchestration graph.
type State int

const (
	StateChat State = iota
	StateToolCall
	StateParseJobs
	StateScoreJobs
	StateCurateResume
	StateTerminal
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateChat:
		return "chat"
	case StateToolCall:
		return "tool_call"
	case StateParseJobs:
		return "parse_jobs"
	case StateScoreJobs:
		return "score_jobs"
	case StateCurateResume:
		return "curate_resume"
	case StateTerminal:
		return "terminal"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the graph stops in this state.
func (s State) Done() bool {
	return s == StateTerminal || s == StateFailed
}

// PipelineState is owned by a single run and threaded through every stage.
type PipelineState struct {
	RunID       string
	Search      scraper.SearchParams
	MinJobScore int

	// Messages is append-only.
	Messages       []ai.Message
	ParsedJobs     []ParsedRecord
	JobScores      []scoring.RankedScore
	CuratedResumes *curation.Summary

	ToolAttempts    int
	MaxToolAttempts int

	// batchStart is the index in Messages where the latest tool batch begins.
	batchStart int
	// batchRecords is how many ParsedJobs entries the latest batch appended.
	batchRecords int
	// batchElements counts the array elements of the latest batch, failed decodes included.
	// Only a batch with no elements at all loops back to the tool.
	batchElements int
	resumeText    string
}

// lastAssistant returns the most recent assistant message.
func (ps *PipelineState) lastAssistant() (ai.Message, bool) {
	for i := len(ps.Messages) - 1; i >= 0; i-- {
		if ps.Messages[i].Role == ai.RoleAssistant {
			return ps.Messages[i], true
		}
	}
	return ai.Message{}, false
}

// next is the transition function of the graph. It never performs I/O.
func next(state State, ps *PipelineState) State {
	switch state {
	case StateChat:
		if len(ps.Messages) > 0 && ps.Messages[len(ps.Messages)-1].HasToolCalls() {
			return StateToolCall
		}
		return StateTerminal
	case StateToolCall:
		return StateParseJobs
	case StateParseJobs:
		if ps.batchElements > 0 {
			return StateScoreJobs
		}
		if ps.ToolAttempts >= ps.MaxToolAttempts {
			return StateFailed
		}
		return StateToolCall
	case StateScoreJobs:
		return StateCurateResume
	case StateCurateResume:
		return StateTerminal
	default:
		return state
	}
}
