package timerecord

import "errors"

var (
	ErrInvalidID          = errors.New("time record: invalid id")
	ErrInvalidEmployeeID  = errors.New("time record: invalid employee id")
	ErrInvalidType        = errors.New("time record: invalid type")
	ErrTimeRecordNotFound = errors.New("time record: not found")
	ErrEmployeeNotFound   = errors.New("time record: employee not found")
)
