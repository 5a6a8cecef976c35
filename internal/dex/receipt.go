package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityDesk/internal/model"
)

// DecodeReceipt extracts pair Mint and Burn events from receipt logs. Logs
// from other contracts and other events are skipped.
func DecodeReceipt(logs []*types.Log) ([]model.LiquidityEvent, error) {
	pairABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	mintID := pairABI.Events["Mint"].ID
	burnID := pairABI.Events["Burn"].ID

	var out []model.LiquidityEvent
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case mintID:
			event, err := decodeMint(pairABI.Events["Mint"], log)
			if err != nil {
				return nil, err
			}
			out = append(out, event)
		case burnID:
			event, err := decodeBurn(pairABI.Events["Burn"], log)
			if err != nil {
				return nil, err
			}
			out = append(out, event)
		}
	}
	return out, nil
}

func decodeMint(event abi.Event, log *types.Log) (model.LiquidityEvent, error) {
	var indexed struct {
		Sender common.Address
	}
	if err := parseIndexed(event, log, &indexed); err != nil {
		return model.LiquidityEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.LiquidityEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 2 {
		return model.LiquidityEvent{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	return model.LiquidityEvent{
		Name:     event.Name,
		Pair:     log.Address.Hex(),
		Sender:   indexed.Sender.Hex(),
		Amount0:  amount0.String(),
		Amount1:  amount1.String(),
		LogIndex: log.Index,
	}, nil
}

func decodeBurn(event abi.Event, log *types.Log) (model.LiquidityEvent, error) {
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log, &indexed); err != nil {
		return model.LiquidityEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.LiquidityEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 2 {
		return model.LiquidityEvent{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	return model.LiquidityEvent{
		Name:     event.Name,
		Pair:     log.Address.Hex(),
		Sender:   indexed.Sender.Hex(),
		To:       indexed.To.Hex(),
		Amount0:  amount0.String(),
		Amount1:  amount1.String(),
		LogIndex: log.Index,
	}, nil
}

func parseIndexed(event abi.Event, log *types.Log, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
