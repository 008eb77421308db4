package serr

import (
	"errors"
	"fmt"
)

type Terror uint32

const (
	TErrNoError Terror = iota
	TErrInval
	TErrNotfound
	TErrExists
	TErrNoMem
	TErrBadFd
	TErrNotChild
	TErrFormat
	TErrClosed
	TErrHalted
	TErrError
)

func (err Terror) String() string {
	switch err {
	case TErrNoError:
		return "no error"
	case TErrInval:
		return "invalid argument"
	case TErrNotfound:
		return "file not found"
	case TErrExists:
		return "file exists"
	case TErrNoMem:
		return "out of physical memory"
	case TErrBadFd:
		return "bad file descriptor"
	case TErrNotChild:
		return "not a child"
	case TErrFormat:
		return "bad executable format"
	case TErrClosed:
		return "closed"
	case TErrHalted:
		return "machine halted"
	case TErrError:
		return "Error"
	default:
		return "unknown error"
	}
}

type Err struct {
	ErrCode Terror
	Obj     interface{}
	Err     error
}

func NewErr(code Terror, obj interface{}) *Err {
	return &Err{code, obj, nil}
}

func NewErrError(code Terror, obj interface{}, err error) *Err {
	return &Err{code, obj, err}
}

func (err *Err) Code() Terror {
	return err.ErrCode
}

func (err *Err) Unwrap() error {
	return err.Err
}

func (err *Err) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("{Err: %q Obj: %v (%v)}", err.ErrCode, err.Obj, err.Err)
	}
	return fmt.Sprintf("{Err: %q Obj: %v}", err.ErrCode, err.Obj)
}

func (err *Err) String() string {
	return err.Error()
}

func (err *Err) IsErrNotfound() bool {
	return err.Code() == TErrNotfound
}

func (err *Err) IsErrNoMem() bool {
	return err.Code() == TErrNoMem
}

// Return true if err (or an error it wraps) is an *Err with code c.
func IsErrCode(error error, c Terror) bool {
	var err *Err
	if errors.As(error, &err) && err != nil {
		return err.Code() == c
	}
	return false
}
