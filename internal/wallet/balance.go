package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "SonaChat/internal/errors"
)

// weiPerEther 用于把链上余额从 wei 换算成以太单位。
var weiPerEther = new(big.Float).SetFloat64(1e18)

// Balance 是一条链上余额记录。
type Balance struct {
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
}

// BalanceConfig 描述余额查询服务的连接参数。
type BalanceConfig struct {
	RPCURL string
	Symbol string
}

// BalanceService 通过以太坊节点查询身份地址的原生币余额。
type BalanceService struct {
	eth    *ethclient.Client
	rpc    *gethrpc.Client
	symbol string
}

// NewBalanceService 连接配置的 RPC 节点。
func NewBalanceService(ctx context.Context, cfg BalanceConfig) (*BalanceService, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if symbol == "" {
		symbol = "ETH"
	}

	return &BalanceService{
		eth:    ethclient.NewClient(rpcClient),
		rpc:    rpcClient,
		symbol: symbol,
	}, nil
}

// NativeBalance 查询身份地址的原生币余额。匿名身份直接拒绝。
func (s *BalanceService) NativeBalance(ctx context.Context, identity string) (*Balance, error) {
	if IsAnonymous(identity) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "匿名身份没有链上余额")
	}
	if !common.IsHexAddress(identity) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("非法的钱包地址: %q", identity))
	}

	wei, err := s.eth.BalanceAt(ctx, common.HexToAddress(identity), nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBackendFailure, err, "查询链上余额失败")
	}

	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return &Balance{Symbol: s.symbol, Amount: ether}, nil
}

// Close 释放节点连接。
func (s *BalanceService) Close() {
	if s == nil {
		return
	}
	if s.eth != nil {
		s.eth.Close()
		s.eth = nil
	}
	if s.rpc != nil {
		s.rpc.Close()
		s.rpc = nil
	}
}
