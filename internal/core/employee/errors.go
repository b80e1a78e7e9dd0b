package employee

import "errors"

var (
	ErrInvalidID           = errors.New("employee: invalid id")
	ErrInvalidName         = errors.New("employee: name must have between 1 and 150 characters")
	ErrInvalidCPF          = errors.New("employee: cpf must have exactly 11 digits")
	ErrInvalidArrivalTime  = errors.New("employee: arrival time must be in HH:MM format")
	ErrInvalidExitTime     = errors.New("employee: exit time must be in HH:MM format")
	ErrInvalidWorkingHours = errors.New("employee: arrival time must be less than exit time")
	ErrEmployeeNotFound    = errors.New("employee: not found")
	ErrCPFAlreadyExists    = errors.New("employee: cpf already exists")
)
