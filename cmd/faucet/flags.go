package main

import "gopkg.in/urfave/cli.v1"

// Flags mirror the CLI/environment tunables of spec §6.
var (
	mnemonicFlag = cli.StringFlag{
		Name:   "mnemonic",
		Usage:  "mnemonic phrase seeding the faucet wallet",
		EnvVar: "ESPRESSO_FAUCET_WALLET_MNEMONIC",
	}
	keystorePathFlag = cli.StringFlag{
		Name:   "keystore-path",
		Usage:  "path to the faucet wallet and queue storage root",
		EnvVar: "ESPRESSO_FAUCET_WALLET_STORE_PATH",
	}
	keystorePasswordFlag = cli.StringFlag{
		Name:   "keystore-password",
		Usage:  "password on the faucet wallet file; a random password is used if empty",
		EnvVar: "ESPRESSO_FAUCET_WALLET_PASSWORD",
	}
	faucetPortFlag = cli.IntFlag{
		Name:   "faucet-port",
		Usage:  "HTTP listen port",
		Value:  50079,
		EnvVar: "ESPRESSO_FAUCET_PORT",
	}
	grantSizeFlag = cli.Uint64Flag{
		Name:   "grant-size",
		Usage:  "amount per output",
		Value:  5000,
		EnvVar: "ESPRESSO_FAUCET_GRANT_SIZE",
	}
	numGrantsFlag = cli.IntFlag{
		Name:   "num-grants",
		Usage:  "outputs per request",
		Value:  5,
		EnvVar: "ESPRESSO_FAUCET_NUM_GRANTS",
	}
	feeSizeFlag = cli.Uint64Flag{
		Name:   "fee-size",
		Usage:  "fee per user-facing transfer",
		Value:  100,
		EnvVar: "ESPRESSO_FAUCET_FEE_SIZE",
	}
	numRecordsFlag = cli.IntFlag{
		Name:   "num-records",
		Usage:  "target spendable-record count",
		Value:  25,
		EnvVar: "ESPRESSO_FAUCET_NUM_RECORDS",
	}
	numWorkersFlag = cli.IntFlag{
		Name:   "num-workers",
		Usage:  "number of transfer workers",
		Value:  5,
		EnvVar: "ESPRESSO_FAUCET_NUM_WORKERS",
	}
	maxQueueLenFlag = cli.IntFlag{
		Name:   "max-queue-len",
		Usage:  "admission bound on the request queue; 0 means unbounded",
		EnvVar: "ESPRESSO_FAUCET_MAX_QUEUE_LENGTH",
	}
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = cli.StringFlag{
		Name:   "verbosity",
		Usage:  "log verbosity (crit, error, warn, info, debug, trace)",
		Value:  "info",
		EnvVar: "ESPRESSO_FAUCET_VERBOSITY",
	}
)

var appFlags = []cli.Flag{
	mnemonicFlag,
	keystorePathFlag,
	keystorePasswordFlag,
	faucetPortFlag,
	grantSizeFlag,
	numGrantsFlag,
	feeSizeFlag,
	numRecordsFlag,
	numWorkersFlag,
	maxQueueLenFlag,
	configFileFlag,
	verbosityFlag,
}
