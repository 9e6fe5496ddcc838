package curate

import (
	"time"

	"nogal/internal/match"
)

// Disposition is what happens to matching ROMs.
type Disposition string

const (
	DispositionList   Disposition = "list"
	DispositionDelete Disposition = "delete"
	DispositionMove   Disposition = "move"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// ActionKind distinguishes ROM archives from their companion videos.
type ActionKind string

const (
	KindROM   ActionKind = "rom"
	KindVideo ActionKind = "video"
)

// Options is the fully resolved request for one run.
type Options struct {
	Directory     string
	Filter        match.Filter
	ListOnly      bool
	IncludeVideos bool
	BackupDir     string
}

// Disposition derives the run mode from the options.
func (o Options) Disposition() Disposition {
	switch {
	case o.ListOnly:
		return DispositionList
	case o.BackupDir != "":
		return DispositionMove
	default:
		return DispositionDelete
	}
}

// Match is a ROM whose category satisfied the filter.
type Match struct {
	Name       string `json:"file" yaml:"file"`
	Identifier string `json:"rom" yaml:"rom"`
	Category   string `json:"category" yaml:"category"`
	Size       int64  `json:"size" yaml:"size"`
}

// Action is the outcome of deleting or moving a single file.
type Action struct {
	Kind        ActionKind
	ROM         string
	Name        string
	Source      string
	Destination string
	Err         error
}

// Succeeded reports whether the file was deleted or moved.
func (a Action) Succeeded() bool {
	return a.Err == nil
}

// Report summarises a run. Succeeded and Failed count ROM actions only;
// companion videos appear in Actions but never in the totals.
type Report struct {
	Status      Status
	Disposition Disposition
	Directory   string
	BackupDir   string
	Filter      match.Filter
	Videos      bool
	Matches     []Match
	Actions     []Action
	Succeeded   int
	Failed      int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// VideoActions returns the companion video actions of the run.
func (r Report) VideoActions() []Action {
	var out []Action
	for _, a := range r.Actions {
		if a.Kind == KindVideo {
			out = append(out, a)
		}
	}
	return out
}
