package engine

import (
	"github.com/pkg/errors"

	"github.com/nftmart/gomart/internal/domain"
)

// 统一把校验失败包装到 domain 的四类哨兵错误上
// errors.Is(err, domain.ErrXxx) 对包装后的错误成立

func wrapValidation(cause error, msg string) error {
	return errors.Wrapf(domain.ErrInvalidArgument, "%s: %v", msg, cause)
}

func wrapValidationf(format string, args ...interface{}) error {
	return errors.Wrapf(domain.ErrInvalidArgument, format, args...)
}

func wrapStatef(format string, args ...interface{}) error {
	return errors.Wrapf(domain.ErrBadState, format, args...)
}

func wrapAuthf(format string, args ...interface{}) error {
	return errors.Wrapf(domain.ErrNotAuthorized, format, args...)
}

func wrapBidf(format string, args ...interface{}) error {
	return errors.Wrapf(domain.ErrBidRejected, format, args...)
}
