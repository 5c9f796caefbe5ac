package ledger

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/gateway-network-client/interfaces"
)

// decodeEvents decodes the logs emitted by the bound contract.
// Logs of other contracts and unknown events are skipped.
func (g *EthGateway) decodeEvents(logs []*types.Log) []interfaces.Event {
	var events []interfaces.Event
	for _, lg := range logs {
		if lg == nil || lg.Address != g.address || len(lg.Topics) == 0 {
			continue
		}
		ev, err := g.abi.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}

		args := make(map[string]any)
		if err := ev.Inputs.UnpackIntoMap(args, lg.Data); err != nil {
			g.log.Debug("Could not unpack event data", "event", ev.Name, "txHash", lg.TxHash.Hex(), "err", err)
			continue
		}
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
			g.log.Debug("Could not parse event topics", "event", ev.Name, "txHash", lg.TxHash.Hex(), "err", err)
			continue
		}

		events = append(events, interfaces.Event{Name: ev.Name, Args: args})
	}
	return events
}
