package proc

import (
	"fmt"
)

type Tstatus uint8

const (
	StatusOK Tstatus = iota + 1
	StatusErr
)

func (status Tstatus) String() string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusErr:
		return "ERROR"
	default:
		return "unkown status"
	}
}

// ExitCode is the raw value a process passed to exit. A process that
// dies abnormally gets StatusErr and ExitCode -1.
type Status struct {
	StatusCode Tstatus
	ExitCode   int32
	StatusInfo string
}

func NewStatus(code int32) *Status {
	return &Status{StatusOK, code, ""}
}

func NewStatusErr(info string) *Status {
	return &Status{StatusErr, -1, info}
}

func (s *Status) IsStatusOK() bool {
	return s.StatusCode == StatusOK
}

func (s *Status) IsStatusErr() bool {
	return s.StatusCode == StatusErr
}

func (s *Status) Info() string {
	return s.StatusInfo
}

func (s *Status) String() string {
	return fmt.Sprintf("&{ statuscode:%v exit:%d info:%v }", s.StatusCode, s.ExitCode, s.StatusInfo)
}
