package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/rpc"
	jsonrpc "github.com/gorilla/rpc/json"
	"github.com/rcrowley/go-metrics"

	dbolt "github.com/bitcoinprice/utxoracle/db/bolt"
	est "github.com/bitcoinprice/utxoracle/estimate"
)

type Service struct {
	Oracle *Oracle
	DLog   *DebugLog
	Cfg    config
}

func (s *Service) ListenAndServe() error {
	var methods = map[string]string{
		"stop":      "Service.Stop",
		"status":    "Service.Status",
		"latest":    "Service.Latest",
		"date":      "Service.Date",
		"recent":    "Service.Recent",
		"histogram": "Service.Histogram",
		"pause":     "Service.Pause",
		"unpause":   "Service.Unpause",
		"setdebug":  "Service.SetDebug",
		"config":    "Service.Config",
		"metrics":   "Service.Metrics",
	}
	srv := rpc.NewServer()
	srv.RegisterCodec(jsonrpc.NewCodec(), "application/json")
	srv.RegisterService(s, "")
	srv.RegisterCustomNames(methods)
	http.Handle("/", srv)
	addr := net.JoinHostPort(s.Cfg.AppRPC.Host, s.Cfg.AppRPC.Port)
	s.DLog.Logger.Println("RPC server listening on", addr)
	return http.ListenAndServe(addr, nil)
}

func (s *Service) Stop(r *http.Request, args *struct{}, reply *struct{}) error {
	go s.Oracle.Stop()
	return nil
}

func (s *Service) Status(r *http.Request, args *struct{}, reply *map[string]string) error {
	*reply = s.Oracle.Status()
	return nil
}

// Latest returns the most recent periodic estimate.
func (s *Service) Latest(r *http.Request, args *struct{}, reply **dbolt.DayRate) error {
	result, err := s.Oracle.Latest()
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

// Date estimates the rate for a UTC calendar day given as "2006-01-02".
// Completed days are served from the rate db.
func (s *Service) Date(r *http.Request, args *string, reply **dbolt.DayRate) error {
	if args == nil || *args == "" {
		return fmt.Errorf("date argument required, e.g. 2024-03-01")
	}
	day, err := time.Parse("2006-01-02", *args)
	if err != nil {
		return err
	}
	result, err := s.Oracle.EstimateDate(day.UTC().Unix())
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

// Recent estimates the rate over the last N blocks. N <= 0 uses the
// configured window.
func (s *Service) Recent(r *http.Request, args *int, reply **dbolt.DayRate) error {
	n := int64(*args)
	if n <= 0 {
		n = s.Cfg.Window
	}
	result, err := s.Oracle.EstimateRecent(n)
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

func (s *Service) Histogram(r *http.Request, args *struct{}, reply *[]est.HistogramPoint) error {
	h := s.Oracle.Histogram()
	if h == nil {
		return fmt.Errorf("no analysis has completed yet")
	}
	*reply = h
	return nil
}

func (s *Service) Pause(r *http.Request, args *struct{}, reply *struct{}) error {
	s.Oracle.Pause(true)
	return nil
}

func (s *Service) Unpause(r *http.Request, args *struct{}, reply *struct{}) error {
	s.Oracle.Pause(false)
	return nil
}

func (s *Service) SetDebug(r *http.Request, args *bool, reply *bool) error {
	s.DLog.SetDebug(*args)
	*reply = *args
	return nil
}

func (s *Service) Config(r *http.Request, args *struct{}, reply *interface{}) error {
	c := s.Cfg
	// Hide the password just in case
	c.BitcoinRPC.Password = "********"
	*reply = c
	return nil
}

func (s *Service) Metrics(r *http.Request, args *struct{}, reply *metrics.Registry) error {
	*reply = metrics.DefaultRegistry
	return nil
}
