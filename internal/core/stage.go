package core

import "fmt"

// Stage is the position of a submission in the capture-to-persist pipeline.
// Stages only advance; a failure at any stage ends the submission.
type Stage int

const (
	StageIdle Stage = iota
	StageCapturing
	StageInferring
	StageParsing
	StageUploading
	StageRecording
	StageDone
)

var stageNames = map[Stage]string{
	StageIdle:      "idle",
	StageCapturing: "capturing",
	StageInferring: "inferring",
	StageParsing:   "parsing",
	StageUploading: "uploading",
	StageRecording: "recording",
	StageDone:      "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError is the Failed(stage, cause) outcome of a submission.
// The cause keeps its component type (inference.Error, nutrition.ParseError, ...) for errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("submission failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
