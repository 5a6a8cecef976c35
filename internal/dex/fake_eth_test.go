package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
}

// fakeEth answers eth_call from canned responses keyed by target and calldata.
type fakeEth struct {
	responses map[string][]byte
	balances  map[common.Address]*big.Int
	calls     int
}

func newFakeEth() *fakeEth {
	return &fakeEth{
		responses: make(map[string][]byte),
		balances:  make(map[common.Address]*big.Int),
	}
}

func (f *fakeEth) Call(ctx context.Context, args callArgs, block gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	f.calls++
	input := args.Input
	if len(input) == 0 {
		input = args.Data
	}
	if args.To == nil {
		return nil, fmt.Errorf("missing to")
	}
	out, ok := f.responses[responseKey(*args.To, input)]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return hexutil.Bytes(out), nil
}

func (f *fakeEth) GetBalance(ctx context.Context, account common.Address, block gethrpc.BlockNumberOrHash) (*hexutil.Big, error) {
	balance, ok := f.balances[account]
	if !ok {
		balance = new(big.Int)
	}
	return (*hexutil.Big)(balance), nil
}

func (f *fakeEth) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	input, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	f.responses[responseKey(to, input)] = out
}

func responseKey(to common.Address, input []byte) string {
	return to.Hex() + ":" + hexutil.Encode(input)
}

func newInprocEthClient(t *testing.T, fe *fakeEth) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", fe); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	c := gethrpc.DialInProc(srv)
	t.Cleanup(c.Close)
	return ethclient.NewClient(c)
}
