package card

import "errors"

var (
	ErrInvalidID            = errors.New("card: invalid id")
	ErrInvalidEmployeeID    = errors.New("card: invalid employee id")
	ErrCardNotFound         = errors.New("card: not found")
	ErrEmployeeNotFound     = errors.New("card: employee not found")
	ErrUnassignedCardExists = errors.New("card: only one card can be registered at a time")
	ErrCardAlreadyAssigned  = errors.New("card: employee already has a card")
	ErrEmployeeHasNoCard    = errors.New("card: employee doesn't have any card")
)
