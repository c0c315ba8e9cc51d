package admin

import "errors"

var (
	ErrInvalidAction  = errors.New("invalid action")
	ErrTargetRequired = errors.New("targetId is required")
	ErrSelfTarget     = errors.New("admins cannot target their own account")
)
