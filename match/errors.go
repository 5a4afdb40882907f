package match

import "errors"

var (
	ErrNotLive      = errors.New("order is not in the live state")
	ErrInvalidParam = errors.New("the param is invalid")
	ErrNotFound     = errors.New("not found")
	ErrDuplicateID  = errors.New("order id already rests in the book")
)
