// Package wallet 负责钱包身份的校验与链上余额查询。
// 身份键是会话历史的分区键：连接钱包后使用校验和格式的地址，
// 未连接时为空串，匿名状态永远不会落库。
package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SonaChat/internal/errors"
)

// Anonymous 表示未绑定钱包的身份键。
const Anonymous = ""

// NormalizeIdentity 将钱包地址规范化为 EIP-55 校验和格式的身份键。
// 空输入返回匿名身份；非法地址返回参数错误。
func NormalizeIdentity(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Anonymous, nil
	}
	if !common.IsHexAddress(address) {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("非法的钱包地址: %q", address))
	}
	return common.HexToAddress(address).Hex(), nil
}

// IsAnonymous 判断身份键是否为匿名。
func IsAnonymous(identity string) bool {
	return identity == Anonymous
}
