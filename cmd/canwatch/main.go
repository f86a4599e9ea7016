//go:build linux

// Command canwatch tails a SocketCAN interface and decodes the telemetry a
// node publishes: channel millivolt frames, the status frame, command acks
// and GET_VALUE responses. Anything outside the node's identifier window is
// shown raw.
//
//	canwatch -iface can0 -node 0x40
package main

import (
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"signalcan-go/canio"
	"signalcan-go/drivers/socketcan"
	"signalcan-go/errcode"
	"signalcan-go/protocol"
)

var log = logrus.WithField("svc", "canwatch")

func main() {
	iface := flag.String("iface", "can0", "SocketCAN interface")
	nodeArg := flag.String("node", "0x40", "node identifier base")
	flag.Parse()

	nodeID, err := strconv.ParseUint(*nodeArg, 0, 8)
	if err != nil {
		log.WithError(err).Fatal("bad -node")
	}
	base := uint16(nodeID)

	ctrl := socketcan.New(*iface)
	if err := ctrl.Init(canio.BitTiming{}); err != nil {
		log.WithError(err).Fatal("init")
	}
	if err := ctrl.Start(); err != nil {
		log.WithError(err).Fatal("start")
	}
	defer ctrl.Stop()

	// Accept the node's whole identifier window.
	ids := make([]uint16, 0, 7)
	for off := uint16(1); off <= protocol.IDOffResponse; off++ {
		ids = append(ids, base+off)
	}
	banks, err := canio.PackFilters(ids)
	if err != nil {
		log.WithError(err).Fatal("filters")
	}
	for _, b := range banks {
		if err := ctrl.ConfigureFilter(b); err != nil {
			log.WithError(err).Fatal("filters")
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	log.WithFields(logrus.Fields{"iface": *iface, "node": base}).Info("watching")
	for {
		select {
		case <-stop:
			return
		default:
		}
		rx, err := ctrl.Receive(0)
		if err != nil {
			if errcode.Of(err) == errcode.NotReady {
				time.Sleep(time.Millisecond)
				continue
			}
			log.WithError(err).Error("receive")
			return
		}
		report(base, rx.Frame)
	}
}

func report(base uint16, f canio.Frame) {
	entry := log.WithField("id", "0x"+strconv.FormatUint(uint64(f.ID), 16))
	switch f.ID {
	case base + protocol.IDOffValuesLow:
		mv := protocol.DecodeValues(f.Data)
		entry.WithFields(logrus.Fields{
			"ch0": mv[0], "ch1": mv[1], "ch2": mv[2], "ch3": mv[3],
		}).Info("values")
	case base + protocol.IDOffValuesHigh:
		mv := protocol.DecodeValues(f.Data)
		entry.WithFields(logrus.Fields{
			"ch4": mv[0], "ch5": mv[1], "ch6": mv[2], "ch7": mv[3],
		}).Info("values")
	case base + protocol.IDOffStatus:
		st := protocol.DecodeStatus(f.Data)
		entry.WithFields(logrus.Fields{
			"status_word": st.StatusWord,
			"uptime_s":    st.UptimeS,
			"supply_mv":   st.SupplyMv,
			"fw":          st.FWVersion,
		}).Info("status")
	case base + protocol.IDOffAck:
		entry.WithField("success", f.Data[0]).Info("ack")
	case base + protocol.IDOffResponse:
		ch, sel, v, err := protocol.DecodeResponse(f)
		if err != nil {
			entry.Warn("malformed response")
			return
		}
		entry.WithFields(logrus.Fields{"ch": ch, "sel": sel, "value": v}).Info("response")
	default:
		entry.WithField("data", f.Payload()).Info("frame")
	}
}
