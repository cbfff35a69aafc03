package domain

import "errors"

// 结算操作的四类错误
// 所有前置校验失败都映射到其中一类，调用方据此返回对应的 HTTP 状态码
var (
	// ErrNotAuthorized 调用者不是挂单创建者（需要创建者权限的操作）
	ErrNotAuthorized = errors.New("caller is not the listing creator")
	// ErrBadState 挂单状态不允许该操作（已结束、类型不匹配、窗口未到/已过）
	ErrBadState = errors.New("listing state does not allow this operation")
	// ErrInvalidArgument 参数为零值/空值，或资产所有权、授权、余额不足
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBidRejected 出价低于底价，或加价幅度不足
	ErrBidRejected = errors.New("bid rejected")
	// ErrListingNotFound 挂单不存在
	ErrListingNotFound = errors.New("listing not found")
)
