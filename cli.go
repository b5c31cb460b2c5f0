package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/bitcoinprice/utxoracle/api"
	dbolt "github.com/bitcoinprice/utxoracle/db/bolt"
)

func stop(args []string, c *api.Client) {
	const usage = `
utxoracle stop

Stop the program.
`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		log.Fatal(err)
	}
}

func status(args []string, c *api.Client) {
	const usage = `
utxoracle status

Show application status:

	bitcoind : Whether or not the bitcoind RPC connection is working.
	result   : Whether or not a periodic rate estimate is available.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	result, err := c.Status()
	if err != nil {
		log.Fatal(err)
	}

	for _, k := range []string{"bitcoind", "result"} {
		fmt.Printf("%-9s: %s\n", k, result[k])
	}
}

func latest(args []string, c *api.Client) {
	const usage = `
utxoracle latest

Show the latest periodic rate estimate.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	result, err := c.Latest()
	if err != nil {
		log.Fatal(err)
	}
	printRate(result)
}

func date(args []string, c *api.Client) {
	const usage = `
utxoracle date YYYY-MM-DD

Estimate the rate for the given UTC calendar day. Completed days are
answered from the on-disk cache; the current day is always recomputed.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}
	day := f.Arg(0)
	if day == "" {
		f.Usage()
		os.Exit(1)
	}

	result, err := c.Date(day)
	if err != nil {
		log.Fatal(err)
	}
	printRate(result)
}

func recent(args []string, c *api.Client) {
	const usage = `
utxoracle recent [N]

Estimate the rate over the last N blocks. If N is omitted, the configured
window (default 144 blocks) is used.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	var n int
	nStr := f.Arg(0)
	if nStr != "" {
		var err error
		n, err = strconv.Atoi(nStr)
		if err != nil {
			log.Fatal(err)
		}
	}

	result, err := c.Recent(n)
	if err != nil {
		log.Fatal(err)
	}
	printRate(result)
}

func histogram(args []string, c *api.Client) {
	const usage = `
utxoracle histogram

Show the cleaned, normalized output-value histogram of the last analysis,
as (BTC bin boundary, weight) pairs.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	result, err := c.Histogram()
	if err != nil {
		log.Fatal(err)
	}

	for _, p := range result {
		fmt.Printf("%12.8f: %10.8f\n", p.Boundary, p.Weight)
	}
}

func pause(args []string, c *api.Client) {
	const usage = `
utxoracle pause

Pause the periodic estimates.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	if err := c.Pause(); err != nil {
		log.Fatal(err)
	}
}

func unpause(args []string, c *api.Client) {
	const usage = `
utxoracle unpause

Resume the periodic estimates.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	if err := c.Unpause(); err != nil {
		log.Fatal(err)
	}
}

func setDebug(args []string, c *api.Client) {
	const usage = `
utxoracle setdebug BOOL

Turn on debug-level logging with "true"; turn off with "false".

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}
	on, err := strconv.ParseBool(f.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	if err := c.SetDebug(on); err != nil {
		log.Fatal(err)
	}
}

func appConfig(args []string, c *api.Client) {
	const usage = `
utxoracle config

Show app config settings.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	result, err := c.Config()
	if err != nil {
		log.Fatal(err)
	}

	b, err := json.MarshalIndent(result, "", "\t")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(b))
}

func appMetrics(args []string, c *api.Client) {
	const usage = `
utxoracle metrics

Show app metrics.

`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	result, err := c.Metrics()
	if err != nil {
		log.Fatal(err)
	}

	b, err := json.MarshalIndent(result, "", "\t")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(b))
}

func printRate(r *dbolt.DayRate) {
	fmt.Printf("rate     : %.0f USD/BTC\n", r.Rate)
	if r.Central > 0 {
		fmt.Printf("central  : %.2f USD/BTC (MAD %.2f)\n", r.Central, r.MAD)
	}
	fmt.Printf("blocks   : %d (%d-%d)\n", r.Blocks, r.FirstHeight, r.LastHeight)
	fmt.Printf("outputs  : %d\n", r.Outputs)
	fmt.Printf("computed : %d\n", r.Computed)
}
