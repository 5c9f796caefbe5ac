package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/gateway-network-client/cmd/flags"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/pending"
)

var flagNetwork = &cli.StringFlag{
	Name:     "network",
	Aliases:  []string{"n"},
	Required: true,
	Usage:    "network name, at most 32 bytes",
}
var flagAddress = &cli.StringFlag{
	Name:     "address",
	Required: true,
	Usage:    "account address",
}
var flagOwner = &cli.StringFlag{
	Name:     "owner",
	Required: true,
	Usage:    "token owner address",
}
var flagKey = &cli.StringFlag{
	Name:     "key",
	Required: true,
	Usage:    "decimal network key",
}
var flagExpiry = &cli.DurationFlag{
	Name:  "expiry",
	Usage: "token lifetime from now, the network default when 0",
}

func main() {
	app := &cli.App{
		Name:  "gateway-admin",
		Usage: "Administer gatekeeper networks and gateway tokens",
		Flags: append(append([]cli.Flag{}, flags.LogFlags...), flags.LedgerFlags...),
		Commands: []*cli.Command{
			networkCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func networkCommand() *cli.Command {
	return &cli.Command{
		Name:  "network",
		Usage: "read and update gatekeeper networks",
		Subcommands: []*cli.Command{
			{
				Name:  "id",
				Usage: "resolve a network name into its key",
				Flags: []cli.Flag{flagNetwork},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					return c.Directory.GetNetworkID(ctx, networkName(cCtx))
				}),
			},
			{
				Name:  "exists",
				Usage: "check whether a network key is registered",
				Flags: []cli.Flag{flagKey},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					key, err := interfaces.ParseNetworkKey(cCtx.String(flagKey.Name))
					if err != nil {
						return nil, err
					}
					return c.Directory.DoesNetworkExist(ctx, key)
				}),
			},
			{
				Name:  "get",
				Usage: "print a network record",
				Flags: []cli.Flag{flagNetwork},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					return c.Directory.GetNetworkByName(ctx, networkName(cCtx))
				}),
			},
			{
				Name:  "gatekeepers",
				Usage: "list the gatekeepers of a network",
				Flags: []cli.Flag{flagNetwork},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					return c.Directory.GetGatekeepersOnNetwork(ctx, networkName(cCtx))
				}),
			},
			{
				Name:  "is-gatekeeper",
				Usage: "check whether an address is a gatekeeper",
				Flags: []cli.Flag{flagNetwork, flagAddress},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					addr, err := address(cCtx, flagAddress)
					if err != nil {
						return nil, err
					}
					return c.Directory.IsGatekeeper(ctx, networkName(cCtx), addr)
				}),
			},
			{
				Name:  "fee-token",
				Usage: "print the fee token address, zero for the native currency",
				Flags: []cli.Flag{flagNetwork},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					return c.Directory.GetSupportedFeeTokenAddress(ctx, networkName(cCtx))
				}),
			},
			{
				Name:  "add-gatekeeper",
				Usage: "add a gatekeeper, primary authority only",
				Flags: submitFlags(flagNetwork, flagAddress),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					addr, err := address(cCtx, flagAddress)
					if err != nil {
						return nil, err
					}
					return c.Directory.AddGatekeeper(ctx, networkName(cCtx), addr, opts)
				}),
			},
			{
				Name:  "remove-gatekeeper",
				Usage: "remove a gatekeeper, primary authority only",
				Flags: submitFlags(flagNetwork, flagAddress),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					addr, err := address(cCtx, flagAddress)
					if err != nil {
						return nil, err
					}
					return c.Directory.RemoveGatekeeper(ctx, networkName(cCtx), addr, opts)
				}),
			},
			{
				Name:  "propose-authority",
				Usage: "propose a new primary authority, which must claim it",
				Flags: submitFlags(flagNetwork, flagAddress),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					addr, err := address(cCtx, flagAddress)
					if err != nil {
						return nil, err
					}
					return c.Directory.UpdatePrimaryAuthority(ctx, networkName(cCtx), addr, opts)
				}),
			},
			{
				Name:  "claim-authority",
				Usage: "claim the primary authority with the proposed key",
				Flags: submitFlags(flagNetwork),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					return c.Directory.ClaimPrimaryAuthority(ctx, networkName(cCtx), opts)
				}),
			},
			{
				Name:  "set-pass-expiry",
				Usage: "set the default pass lifetime in seconds, 0 for no expiry",
				Flags: submitFlags(flagNetwork, &cli.Uint64Flag{Name: "seconds", Required: true}),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					return c.Directory.UpdatePassExpirationTimeConfig(ctx, networkName(cCtx), cCtx.Uint64("seconds"), opts)
				}),
			},
			{
				Name:  "set-description",
				Usage: "replace the network description",
				Flags: submitFlags(flagNetwork, &cli.StringFlag{Name: "description", Required: true}),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					return c.Directory.UpdateDescription(ctx, cCtx.String("description"), networkName(cCtx), opts)
				}),
			},
			{
				Name:  "set-fees",
				Usage: "replace all four network fees, in basis points",
				Flags: submitFlags(flagNetwork,
					&cli.UintFlag{Name: "issue-fee", Required: true},
					&cli.UintFlag{Name: "refresh-fee", Required: true},
					&cli.UintFlag{Name: "expire-fee", Required: true},
					&cli.UintFlag{Name: "freeze-fee", Required: true},
				),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					fees, err := feeSchedule(cCtx)
					if err != nil {
						return nil, err
					}
					return c.Directory.UpdateFees(ctx, networkName(cCtx), fees, opts)
				}),
			},
			{
				Name:  "set-features",
				Usage: "replace the network feature mask",
				Flags: submitFlags(flagNetwork, &cli.Uint64Flag{Name: "mask", Required: true}),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					return c.Directory.UpdateNetworkFeatures(ctx, networkName(cCtx), cCtx.Uint64("mask"), opts)
				}),
			},
		},
	}
}

func tokenCommand() *cli.Command {
	lifecycle := func(name, usage string, fn func(c *flags.Clients) tokenChange) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Flags: submitFlags(flagNetwork, flagOwner),
			Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
				owner, err := address(cCtx, flagOwner)
				if err != nil {
					return nil, err
				}
				return fn(c)(ctx, owner, networkName(cCtx), opts)
			}),
		}
	}

	return &cli.Command{
		Name:  "token",
		Usage: "read and administer gateway tokens, gatekeepers only",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "print the token of an owner",
				Flags: []cli.Flag{flagNetwork, flagOwner},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					owner, err := address(cCtx, flagOwner)
					if err != nil {
						return nil, err
					}
					return c.Tokens.GetToken(ctx, owner, networkName(cCtx))
				}),
			},
			{
				Name:  "verify",
				Usage: "check whether an owner holds a valid token",
				Flags: []cli.Flag{flagNetwork, flagOwner},
				Action: read(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error) {
					owner, err := address(cCtx, flagOwner)
					if err != nil {
						return nil, err
					}
					return c.Tokens.Verify(ctx, owner, networkName(cCtx))
				}),
			},
			{
				Name:  "issue",
				Usage: "issue a token",
				Flags: submitFlags(flagNetwork, flagOwner, flagExpiry),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					owner, err := address(cCtx, flagOwner)
					if err != nil {
						return nil, err
					}
					return c.Tokens.Issue(ctx, owner, networkName(cCtx), cCtx.Duration(flagExpiry.Name), opts)
				}),
			},
			{
				Name:  "refresh",
				Usage: "extend an active or expired token",
				Flags: submitFlags(flagNetwork, flagOwner, flagExpiry),
				Action: write(func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
					owner, err := address(cCtx, flagOwner)
					if err != nil {
						return nil, err
					}
					return c.Tokens.Refresh(ctx, owner, networkName(cCtx), cCtx.Duration(flagExpiry.Name), opts)
				}),
			},
			lifecycle("freeze", "freeze an active token", func(c *flags.Clients) tokenChange {
				return c.Tokens.Freeze
			}),
			lifecycle("unfreeze", "unfreeze a frozen token", func(c *flags.Clients) tokenChange {
				return c.Tokens.Unfreeze
			}),
			lifecycle("revoke", "revoke a token permanently", func(c *flags.Clients) tokenChange {
				return c.Tokens.Revoke
			}),
			lifecycle("expire", "expire an active token now", func(c *flags.Clients) tokenChange {
				return c.Tokens.Expire
			}),
		},
	}
}

func submitFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra, flags.SubmitFlags...)
}

func networkName(cCtx *cli.Context) interfaces.NetworkName {
	return interfaces.NetworkName(cCtx.String(flagNetwork.Name))
}

func address(cCtx *cli.Context, flag *cli.StringFlag) (common.Address, error) {
	addr, err := interfaces.ParseAddress(cCtx.String(flag.Name))
	if err != nil {
		return common.Address{}, fmt.Errorf("could not parse --%s: %w", flag.Name, err)
	}
	return addr, nil
}

func feeSchedule(cCtx *cli.Context) (interfaces.FeeSchedule, error) {
	var fees [4]uint16
	for i, name := range []string{"issue-fee", "expire-fee", "refresh-fee", "freeze-fee"} {
		v := cCtx.Uint(name)
		if v > 0xffff {
			return interfaces.FeeSchedule{}, fmt.Errorf("--%s out of range: %d", name, v)
		}
		fees[i] = uint16(v)
	}
	return interfaces.FeeSchedule{IssueFee: fees[0], ExpireFee: fees[1], RefreshFee: fees[2], FreezeFee: fees[3]}, nil
}

type tokenChange func(ctx context.Context, owner common.Address, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error)

type readFn func(ctx context.Context, cCtx *cli.Context, c *flags.Clients) (any, error)

type writeFn func(ctx context.Context, cCtx *cli.Context, c *flags.Clients, opts *interfaces.SubmitOptions) (*pending.Operation, error)

func withClients(cCtx *cli.Context, fn func(logger *slog.Logger, c *flags.Clients) error) error {
	logger := flags.SetupLogger(cCtx)
	c, err := flags.NewClients(cCtx, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(logger, c)
}

func read(fn readFn) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		return withClients(cCtx, func(_ *slog.Logger, c *flags.Clients) error {
			v, err := fn(cCtx.Context, cCtx, c)
			if err != nil {
				return err
			}
			return printJSON(v)
		})
	}
}

func write(fn writeFn) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		opts, err := flags.SubmitOptions(cCtx)
		if err != nil {
			return err
		}
		return withClients(cCtx, func(logger *slog.Logger, c *flags.Clients) error {
			op, err := fn(cCtx.Context, cCtx, c, opts)
			if err != nil {
				return outcomeError(logger, err)
			}

			ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flags.TimeoutFlag.Name))
			defer cancel()
			receipt, err := op.Wait(ctx, cCtx.Uint64(flags.ConfirmationsFlag.Name))
			if err != nil {
				logger.Error("Submission not confirmed", "method", op.Method(), "txHash", op.Handle().Hash.Hex(), "err", err)
				return outcomeError(logger, err)
			}
			return printJSON(receipt)
		})
	}
}

// outcomeError annotates err with what is known about the mutation.
func outcomeError(logger *slog.Logger, err error) error {
	outcome := interfaces.ClassifyOutcome(err)
	logger.Debug("Classified failure", "outcome", outcome, "err", err)
	if outcome == interfaces.OutcomeUnknown {
		return errors.Join(err, errors.New("the change may still be applied, re-query the ledger before retrying"))
	}
	return err
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
