package schema

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidIdentifier = errors.New("invalid identifier")

// 标识符白名单：字母、数字、下划线
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateIdentifier 校验标识符是否只包含白名单字符
// 数据库名等不能参数化的标识符必须先通过校验再拼入语句
func ValidateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return errors.WithMessagef(ErrInvalidIdentifier, "%q", name)
	}
	return nil
}

// QuoteIdentifier 反引号包裹标识符，内部反引号成对转义
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
