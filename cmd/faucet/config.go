// Copyright 2017 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"
)

// tomlSettings ensures TOML keys use the same names as Go struct
// fields, matching the configuration file format used throughout this
// family of nodes.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// faucetConfig is the dumpable/loadable config document.
type faucetConfig struct {
	Mnemonic         string
	KeystorePath     string
	KeystorePassword string
	FaucetPort       int
	GrantSize        uint64
	NumGrants        int
	FeeSize          uint64
	NumRecords       int
	NumWorkers       int
	MaxQueueLen      int
	Verbosity        string
}

func defaultKeystorePath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir, _ = os.Getwd()
	}
	return filepath.Join(dir, ".espresso", "faucet", "keystore")
}

func defaultFaucetConfig() faucetConfig {
	return faucetConfig{
		KeystorePath: defaultKeystorePath(),
		FaucetPort:   50079,
		GrantSize:    5000,
		NumGrants:    5,
		FeeSize:      100,
		NumRecords:   25,
		NumWorkers:   5,
		Verbosity:    "info",
	}
}

func loadConfigFile(file string, cfg *faucetConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add the file name to errors that carry a line number.
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads defaults, then an optional --config file, then CLI
// flags, in that order of increasing precedence.
func makeConfig(ctx *cli.Context) (faucetConfig, error) {
	cfg := defaultFaucetConfig()

	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := ctx.GlobalString(mnemonicFlag.Name); v != "" {
		cfg.Mnemonic = v
	}
	if v := ctx.GlobalString(keystorePathFlag.Name); v != "" {
		cfg.KeystorePath = v
	}
	if v := ctx.GlobalString(keystorePasswordFlag.Name); v != "" {
		cfg.KeystorePassword = v
	}
	if ctx.GlobalIsSet(faucetPortFlag.Name) {
		cfg.FaucetPort = ctx.GlobalInt(faucetPortFlag.Name)
	}
	if ctx.GlobalIsSet(grantSizeFlag.Name) {
		cfg.GrantSize = ctx.GlobalUint64(grantSizeFlag.Name)
	}
	if ctx.GlobalIsSet(numGrantsFlag.Name) {
		cfg.NumGrants = ctx.GlobalInt(numGrantsFlag.Name)
	}
	if ctx.GlobalIsSet(feeSizeFlag.Name) {
		cfg.FeeSize = ctx.GlobalUint64(feeSizeFlag.Name)
	}
	if ctx.GlobalIsSet(numRecordsFlag.Name) {
		cfg.NumRecords = ctx.GlobalInt(numRecordsFlag.Name)
	}
	if ctx.GlobalIsSet(numWorkersFlag.Name) {
		cfg.NumWorkers = ctx.GlobalInt(numWorkersFlag.Name)
	}
	if ctx.GlobalIsSet(maxQueueLenFlag.Name) {
		cfg.MaxQueueLen = ctx.GlobalInt(maxQueueLenFlag.Name)
	}
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.GlobalString(verbosityFlag.Name)
	}

	if cfg.Mnemonic == "" {
		return cfg, errors.New("a wallet mnemonic is required (--mnemonic or ESPRESSO_FAUCET_WALLET_MNEMONIC)")
	}
	return cfg, nil
}

// dumpConfig is the dumpconfig command: print the resolved
// configuration as TOML.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, string(out))
	return err
}

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Flags:       appFlags,
	Category:    "MISCELLANEOUS COMMANDS",
	Description: `The dumpconfig command shows configuration values.`,
}
