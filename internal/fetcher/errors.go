package fetcher

import "fmt"

type Stage string

const (
	StageCredentials Stage = "credentials"
	StagePrepare     Stage = "prepare"
	StageLaunch      Stage = "launch"
	StageLogin       Stage = "login"
	StageListing     Stage = "listing"
	StageSelect      Stage = "select"
)

// StageError - фатальная ошибка этапа, после которой запуск прекращается.
type StageError struct {
	Stage Stage
	Step  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("этап %s (%s): %v", e.Stage, e.Step, e.Err)
	}
	return fmt.Sprintf("этап %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
