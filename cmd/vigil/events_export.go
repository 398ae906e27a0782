// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/vigilprotocol/vigil/eventdb"
)

const exportPageSize = 1000

// exportEventsAction streams the committed event log as JSON lines, one
// record per line, in commit order.
func exportEventsAction(ctx *cli.Context) error {
	gene := selectGenesis(ctx)
	instanceDir := makeInstanceDir(ctx, gene)

	path := filepath.Join(instanceDir, "events.db")
	if _, err := os.Stat(path); err != nil {
		fatal(fmt.Sprintf("no event database at [%v]", path))
	}
	db := openEventDB(instanceDir)
	defer db.Close()

	newest, ok, err := db.Newest(context.Background())
	if err != nil {
		fatal("read newest event:", err)
	}
	if !ok {
		fmt.Println(">> Event database is empty <<")
		return nil
	}

	out := io.Writer(os.Stdout)
	toFile := ctx.String(outputFlag.Name) != ""

	var bar *pb.ProgressBar
	if toFile {
		f, err := os.Create(ctx.String(outputFlag.Name))
		if err != nil {
			fatal(fmt.Sprintf("create export file: %v", err))
		}
		defer f.Close()
		buf := bufio.NewWriter(f)
		defer buf.Flush()
		out = buf

		fmt.Println(">> Exporting events <<")
		bar = pb.New64(int64(newest)).
			SetMaxWidth(90).
			Start()
		defer func() { pb.NotPrint = true }()
	}

	filter := &eventdb.Filter{
		Order:   eventdb.ASC,
		Options: &eventdb.Options{Limit: exportPageSize},
	}
	if ctx.IsSet(fromFlag.Name) || ctx.IsSet(toFlag.Name) {
		r := &eventdb.Range{From: ctx.Uint64(fromFlag.Name), To: math.MaxUint64}
		if ctx.IsSet(toFlag.Name) {
			r.To = ctx.Uint64(toFlag.Name)
		}
		filter.Range = r
	}

	enc := json.NewEncoder(out)
	count := 0
	for offset := uint64(0); ; offset += exportPageSize {
		filter.Options.Offset = offset
		records, err := db.Filter(context.Background(), filter)
		if err != nil {
			fatal("filter events:", err)
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				fatal("write event:", err)
			}
			if bar != nil {
				bar.Set64(int64(rec.Sequence))
			}
			count++
		}
		if len(records) < exportPageSize {
			break
		}
	}

	if bar != nil {
		bar.Finish()
		fmt.Printf(">> Exported %v events <<\n", count)
	}
	return nil
}
