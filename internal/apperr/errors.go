// Package apperr 定义服务层的错误分类，由 API 层映射为 HTTP 状态码
package apperr

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error 携带面向用户的消息和错误类别
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

func BadRequest(msg string) error {
	return &Error{Kind: ErrBadRequest, Msg: msg}
}

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Msg: msg}
}

// Message 返回可以展示给客户端的消息，非分类错误返回空串
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return ""
}
