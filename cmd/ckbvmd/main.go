// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// ckbvmd is a standalone debugger for one script-group verification run: it
// loads a program image from disk and drives vm.Verify directly, without a
// host chain or node process behind it. The transaction view it builds is
// empty: no cell data or witness fixtures are loaded.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/probeum/ckbvm/log"
	"github.com/probeum/ckbvm/vm"
	"github.com/probeum/ckbvm/vm/riscv"
)

var (
	programFlag = cli.StringFlag{
		Name:  "program",
		Usage: "path to the root script's program image",
	}
	cyclesFlag = cli.Uint64Flag{
		Name:  "cycles",
		Usage: "maximum cycles charged across every VM this run spawns",
		Value: 10_000_000,
	}
	strictFlag = cli.BoolFlag{
		Name:  "strict",
		Usage: "reject spawn/pipe syscalls, matching the v1-compatible subset (exec is not rejected)",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity (0=crit, 5=trace)",
		Value: 3,
	}
)

var runCommand = cli.Command{
	Action:    run,
	Name:      "run",
	Usage:     "verify one script against a program image fixture",
	ArgsUsage: "",
	Flags:     []cli.Flag{programFlag, cyclesFlag, strictFlag, verbosityFlag},
}

func run(ctx *cli.Context) error {
	log.SetLevel(log.Lvl(ctx.Int(verbosityFlag.Name)))

	path := ctx.String(programFlag.Name)
	if path == "" {
		return cli.NewExitError("missing required -program flag", 1)
	}
	image, err := ioutil.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("reading program image: %v", err), 1)
	}

	group := vm.ScriptGroup{Script: image, GroupKind: vm.GroupLock}
	tv := vm.NewTxView([32]byte{}, nil, nil, nil, nil, nil, group)

	maxCycles := ctx.Uint64(cyclesFlag.Name)
	newMach := func(maxCycles uint64) vm.Machine { return riscv.New(maxCycles) }

	result := vm.Verify(tv, maxCycles, newMach, image, ctx.Bool(strictFlag.Name), nil)
	switch result.Kind {
	case vm.ResultCompleted:
		log.Info("verification completed", "cycles", result.Cycles)
		return nil
	case vm.ResultFailed:
		return cli.NewExitError(fmt.Sprintf("verification failed: %v", result.Err), 1)
	default:
		return cli.NewExitError("verification suspended without a resume command", 1)
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "ckbvmd"
	app.Usage = "run on-chain script programs against a multi-VM cooperative scheduler"
	app.Commands = []cli.Command{runCommand}
	app.Flags = []cli.Flag{programFlag, cyclesFlag, strictFlag, verbosityFlag}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
