package network

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/pending"
)

// Directory reads and administers gatekeeper networks through a gateway bound
// to the GatewayNetwork contract. Reads always query the ledger.
type Directory struct {
	gateway interfaces.LedgerGateway
	auth    *bind.TransactOpts
	log     *slog.Logger
}

// NewDirectory creates a read-only directory. Use WithTransactOpts to submit updates.
func NewDirectory(gateway interfaces.LedgerGateway, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{gateway: gateway, log: log}
}

// WithTransactOpts returns a copy of the directory that signs updates with auth.
func (d *Directory) WithTransactOpts(auth *bind.TransactOpts) *Directory {
	c := *d
	c.auth = auth
	return &c
}

// GetNetworkID resolves a network name into the key assigned by the ledger.
func (d *Directory) GetNetworkID(ctx context.Context, name interfaces.NetworkName) (interfaces.NetworkKey, error) {
	id, err := interfaces.EncodeNetworkName(name)
	if err != nil {
		return 0, err
	}

	out, err := d.gateway.Call(ctx, contracts.MethodGetNetworkID, [32]byte(id))
	if err != nil {
		return 0, err
	}
	raw, err := contracts.Output[*big.Int](out, 0)
	if err != nil {
		return 0, err
	}
	key, err := interfaces.NetworkKeyFromBig(raw)
	if err != nil {
		return 0, err
	}
	if key.IsZero() {
		return 0, fmt.Errorf("%w: %q", interfaces.ErrNetworkNotFound, name)
	}
	return key, nil
}

// DoesNetworkExist reports whether key is registered.
func (d *Directory) DoesNetworkExist(ctx context.Context, key interfaces.NetworkKey) (bool, error) {
	out, err := d.gateway.Call(ctx, contracts.MethodDoesNetworkExist, key.Big())
	if err != nil {
		return false, err
	}
	return contracts.Output[bool](out, 0)
}

// GetNetwork reads the full record of a registered network.
func (d *Directory) GetNetwork(ctx context.Context, key interfaces.NetworkKey) (*interfaces.GatekeeperNetworkRecord, error) {
	exists, err := d.DoesNetworkExist(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: key %s", interfaces.ErrNetworkNotFound, key)
	}

	out, err := d.gateway.Call(ctx, contracts.MethodGetNetwork, key.Big())
	if err != nil {
		return nil, err
	}
	data, err := contracts.Output[contracts.GatekeeperNetworkData](out, 0)
	if err != nil {
		return nil, err
	}
	return recordFromData(key, data)
}

// GetNetworkByName resolves name and reads its record.
func (d *Directory) GetNetworkByName(ctx context.Context, name interfaces.NetworkName) (*interfaces.GatekeeperNetworkRecord, error) {
	key, err := d.GetNetworkID(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.GetNetwork(ctx, key)
}

// IsGatekeeper reports whether addr is a gatekeeper of the named network.
func (d *Directory) IsGatekeeper(ctx context.Context, name interfaces.NetworkName, addr common.Address) (bool, error) {
	id, err := interfaces.EncodeNetworkName(name)
	if err != nil {
		return false, err
	}
	out, err := d.gateway.Call(ctx, contracts.MethodIsGatekeeper, [32]byte(id), addr)
	if err != nil {
		return false, err
	}
	return contracts.Output[bool](out, 0)
}

// GetGatekeepersOnNetwork lists the gatekeepers of the named network in ledger order.
func (d *Directory) GetGatekeepersOnNetwork(ctx context.Context, name interfaces.NetworkName) ([]common.Address, error) {
	id, err := interfaces.EncodeNetworkName(name)
	if err != nil {
		return nil, err
	}
	out, err := d.gateway.Call(ctx, contracts.MethodGetGatekeepersOnNetwork, [32]byte(id))
	if err != nil {
		return nil, err
	}
	gatekeepers, err := contracts.Output[[]common.Address](out, 0)
	if err != nil {
		return nil, err
	}
	if gatekeepers == nil {
		gatekeepers = []common.Address{}
	}
	return gatekeepers, nil
}

// GetSupportedFeeTokenAddress returns the token used to pay fees on the named
// network. The zero address means fees are paid in the native currency.
func (d *Directory) GetSupportedFeeTokenAddress(ctx context.Context, name interfaces.NetworkName) (common.Address, error) {
	id, err := interfaces.EncodeNetworkName(name)
	if err != nil {
		return common.Address{}, err
	}
	out, err := d.gateway.Call(ctx, contracts.MethodGetSupportedFeeTokenAddress, [32]byte(id))
	if err != nil {
		return common.Address{}, err
	}
	return contracts.Output[common.Address](out, 0)
}

// AddGatekeeper submits the addition of gatekeeper to the named network.
// Only the primary authority may do this. Adding an existing gatekeeper is
// rejected by the ledger.
func (d *Directory) AddGatekeeper(ctx context.Context, name interfaces.NetworkName, gatekeeper common.Address, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodAddGatekeeper, gatekeeper)
}

// RemoveGatekeeper submits the removal of gatekeeper from the named network.
func (d *Directory) RemoveGatekeeper(ctx context.Context, name interfaces.NetworkName, gatekeeper common.Address, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodRemoveGatekeeper, gatekeeper)
}

// UpdatePrimaryAuthority proposes newAuthority as primary authority of the
// named network. The current authority keeps its rights until the proposed
// address calls ClaimPrimaryAuthority. A new proposal replaces the previous one.
func (d *Directory) UpdatePrimaryAuthority(ctx context.Context, name interfaces.NetworkName, newAuthority common.Address, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodUpdatePrimaryAuthority, newAuthority)
}

// ClaimPrimaryAuthority completes a handover. It must be signed by the proposed authority.
func (d *Directory) ClaimPrimaryAuthority(ctx context.Context, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodClaimPrimaryAuthority)
}

// UpdatePassExpirationTimeConfig sets the default pass lifetime in seconds, 0 meaning passes never expire.
func (d *Directory) UpdatePassExpirationTimeConfig(ctx context.Context, name interfaces.NetworkName, seconds uint64, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodUpdatePassExpireTime, new(big.Int).SetUint64(seconds))
}

// UpdateDescription replaces the network description.
func (d *Directory) UpdateDescription(ctx context.Context, description string, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodUpdateDescription, description)
}

// UpdateFees replaces all four fees of the network at once.
func (d *Directory) UpdateFees(ctx context.Context, name interfaces.NetworkName, fees interfaces.FeeSchedule, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodUpdateFees, contracts.NetworkFeesBps{
		IssueFee:   fees.IssueFee,
		RefreshFee: fees.RefreshFee,
		ExpireFee:  fees.ExpireFee,
		FreezeFee:  fees.FreezeFee,
	})
}

// UpdateNetworkFeatures replaces the whole feature mask. Callers setting a
// single bit must read the current mask first.
func (d *Directory) UpdateNetworkFeatures(ctx context.Context, name interfaces.NetworkName, mask uint64, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return d.submitForNetwork(ctx, name, opts, contracts.MethodUpdateNetworkFeatures, new(big.Int).SetUint64(mask))
}

// submitForNetwork submits method with args followed by the encoded network name.
func (d *Directory) submitForNetwork(ctx context.Context, name interfaces.NetworkName, opts *interfaces.SubmitOptions, method string, args ...any) (*pending.Operation, error) {
	if d.auth == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	id, err := interfaces.EncodeNetworkName(name)
	if err != nil {
		return nil, err
	}

	var submitOpts interfaces.SubmitOptions
	if opts != nil {
		submitOpts = *opts
	}
	handle, err := d.gateway.Submit(ctx, d.auth, submitOpts, method, append(args, [32]byte(id))...)
	if err != nil {
		d.log.Debug("Network update not submitted", "method", method, "network", name, "err", err)
		return nil, err
	}

	d.log.Info("Network update submitted", "method", method, "network", name, "from", d.auth.From.Hex(), "txHash", handle.Hash.Hex())
	return pending.New(d.gateway, handle, method, d.log), nil
}

func recordFromData(key interfaces.NetworkKey, data contracts.GatekeeperNetworkData) (*interfaces.GatekeeperNetworkRecord, error) {
	passExpire, err := uint64Field("passExpireDurationInSeconds", data.PassExpireDurationInSeconds)
	if err != nil {
		return nil, err
	}
	features, err := uint64Field("networkFeatureMask", data.NetworkFeatureMask)
	if err != nil {
		return nil, err
	}

	gatekeepers := data.Gatekeepers
	if gatekeepers == nil {
		gatekeepers = []common.Address{}
	}
	return &interfaces.GatekeeperNetworkRecord{
		Key:                         key,
		Name:                        interfaces.NetworkIdentifier(data.Name).Name(),
		PrimaryAuthority:            data.PrimaryAuthority,
		Gatekeepers:                 gatekeepers,
		PassExpireDurationInSeconds: passExpire,
		Description:                 data.Description,
		NetworkFee: interfaces.FeeSchedule{
			IssueFee:   data.NetworkFee.IssueFee,
			ExpireFee:  data.NetworkFee.ExpireFee,
			RefreshFee: data.NetworkFee.RefreshFee,
			FreezeFee:  data.NetworkFee.FreezeFee,
		},
		SupportedFeeTokenAddress: data.SupportedToken,
		NetworkFeatureMask:       features,
		LastFeeUpdate:            interfaces.ExpiryFromUnix(data.LastFeeUpdateTimestamp),
	}, nil
}

func uint64Field(field string, v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("network field %s out of range: %s", field, v)
	}
	return v.Uint64(), nil
}
