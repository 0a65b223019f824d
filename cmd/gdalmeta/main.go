// gdalmeta探针：在独立进程中探测单个数据集的元信息，JSON写到stdout。
// 引擎探测深处的崩溃只终结本进程，不殃及调用方
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/EventKit/gdalutils"
)

func main() {
	vector := flag.Bool("vector", false, "probe with a vector dataset hint")
	tmpDir := flag.String("tmp", os.TempDir(), "temp dir for the toolbox")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gdalmeta [-vector] [-tmp dir] <dataset>")
		os.Exit(2)
	}
	hint := gdalutils.HintRaster
	if *vector {
		hint = gdalutils.HintVector
	}
	g := gdalutils.NewGdalToolbox(*tmpDir)
	meta, err := g.GetMeta(flag.Arg(0), hint)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	out, err := json.Marshal(meta)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Stdout.Write(append(out, '\n'))
}
