package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/bitcoinprice/utxoracle/api"
	col "github.com/bitcoinprice/utxoracle/collect"
	"github.com/bitcoinprice/utxoracle/collect/corerpc"
	"github.com/bitcoinprice/utxoracle/db/bolt"
)

const usage = `
utxoracle [-c CONFIGFILE] [-d DATADIR] COMMAND [-h | -help] [args...]

Commands:
	start       (start the oracle app)
	stop        (terminate the app)
	version     (show app version)
	status      (show application status)
	latest      (show the latest periodic rate estimate)
	date        (estimate the rate for a UTC calendar day)
	recent      (estimate the rate over the last N blocks)
	histogram   (show the output-value histogram of the last analysis)
	pause       (pause the periodic estimates)
	unpause     (resume the periodic estimates after pausing)
	setdebug    (turn on/off debug-level logging)
	metrics     (show app metrics)
	config      (show app config settings.)

`

const version = "0.1.0"

func main() {
	var (
		configFile, dataDir string
	)
	flag.CommandLine.Usage = func() {
		fmt.Fprintf(os.Stderr, usage)
		flag.CommandLine.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	flag.StringVar(&configFile, "c", "",
		fmt.Sprintf("Path to config file (alternatively, use %s env var).", configFileEnv))
	flag.StringVar(&dataDir, "d", "",
		fmt.Sprintf("Path to data directory (alternatively, use %s env var).", dataDirEnv))
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.CommandLine.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatal(err)
	}

	apiclient := api.NewClient(api.Config{
		Host:    cfg.AppRPC.Host,
		Port:    cfg.AppRPC.Port,
		Timeout: 60,
	})

	switch args[0] {
	case "start":
		runOracle(args, cfg)
	case "version":
		fmt.Println(version)
	case "stop":
		stop(args, apiclient)
	case "status":
		status(args, apiclient)
	case "latest":
		latest(args, apiclient)
	case "date":
		date(args, apiclient)
	case "recent":
		recent(args, apiclient)
	case "histogram":
		histogram(args, apiclient)
	case "pause":
		pause(args, apiclient)
	case "unpause":
		unpause(args, apiclient)
	case "setdebug":
		setDebug(args, apiclient)
	case "metrics":
		appMetrics(args, apiclient)
	case "config":
		appConfig(args, apiclient)
	default:
		log.Fatalf("Invalid command '%s'", args[0])
	}
}

func runOracle(args []string, cfg config) {
	const usage = `
utxoracle start

Start the program. The program will periodically estimate the USD exchange
rate from the output values of recent blocks, fetched from a local bitcoind.

Use utxoracle status to check the node / estimate status. Use utxoracle pause
to pause the periodic estimates (one-off date / recent queries still work).
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

	ratedb, err := loadRateDB(cfg)
	if err != nil {
		log.Fatal(fmt.Errorf("loadRateDB: %v", err))
	}

	// Setup the logger
	var dLog *DebugLog
	logFileMode := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if f, err := os.OpenFile(cfg.LogFile, logFileMode, 0666); err != nil {
		log.Fatal(fmt.Errorf("opening logfile: %v", err))
	} else {
		dLog = NewDebugLog(f, "", log.LstdFlags)
	}

	oracleConfig, err := loadOracleConfig(cfg, dLog.Logger)
	if err != nil {
		log.Fatal(fmt.Errorf("loadOracleConfig: %v", err))
	}

	oracle, err := NewOracle(ratedb, oracleConfig)
	if err != nil {
		log.Fatal(fmt.Errorf("NewOracle: %v", err))
	}
	service := &Service{Oracle: oracle, DLog: dLog, Cfg: cfg}

	os.Stdout.Close()
	os.Stderr.Close()
	os.Stdin.Close()

	errc := make(chan error)
	go func() { errc <- oracle.Run() }()
	go func() { errc <- service.ListenAndServe() }()

	// Signal handling
	sigc := make(chan os.Signal, 3)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigc
		oracle.Stop()
	}()

	err = <-errc
	// Blocks until it is safely shutdown. It is idempotent, so no harm if
	// the oracle is already stopped.
	oracle.Stop()
	if err != nil {
		dLog.Logger.Fatal(err)
	}
}

func loadRateDB(cfg config) (RateDB, error) {
	const dbFileName = "rate.db"
	dbfile := filepath.Join(cfg.DataDir, dbFileName)
	return bolt.LoadRateDB(dbfile)
}

func loadOracleConfig(cfg config, logger *log.Logger) (OracleConfig, error) {
	tip, blockTime, rawBlock, err := corerpc.Getters(cfg.BitcoinRPC)
	if err != nil {
		return OracleConfig{}, err
	}

	// Wrap rawBlock with a timer
	reservoirSize := int(cfg.Window) // About one window's worth
	rawBlockTimer := metrics.NewCustomTimer(metrics.NewHistogram(
		metrics.NewSimpleExpDecaySample(reservoirSize)), metrics.NewMeter())
	timedRawBlock := func(hash string) ([]byte, error) {
		start := time.Now()
		defer rawBlockTimer.UpdateSince(start)
		return rawBlock(hash)
	}
	metrics.Register("getrawblock", rawBlockTimer)

	c := cfg.OracleConfig
	c.Fetch.RawBlock = col.RawBlockGetter(timedRawBlock)
	c.tip = tip
	c.blockTime = blockTime
	c.logger = logger
	return c, nil
}
