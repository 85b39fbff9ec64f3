// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tlsclient dials a host over the tls12 engine and reports the
// negotiated connection state, for manual/integration exercise of the
// library against a real server.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	tls "github.com/paymentlogs/tls12"
)

var (
	addr               string
	serverName         string
	insecureSkipVerify bool
	timeout            time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "tlsclient host:port",
	Short: "Dial a host over TLS 1.2 and report the negotiated connection state",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&serverName, "server-name", "", "SNI hostname and certificate hostname; defaults to the dial host")
	rootCmd.Flags().BoolVar(&insecureSkipVerify, "insecure-skip-verify", false, "skip server certificate validation")
	rootCmd.Flags().Duration("timeout", 10*time.Second, "dial and handshake timeout")

	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("TLSCLIENT")
	viper.AutomaticEnv()
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	addr = args[0]
	timeout = viper.GetDuration("timeout")
	insecureSkipVerify = viper.GetBool("insecure-skip-verify")
	if sn := viper.GetString("server-name"); sn != "" {
		serverName = sn
	}

	host := serverName
	if host == "" {
		if h, _, err := net.SplitHostPort(addr); err == nil {
			host = h
		} else {
			host = addr
		}
	}

	logger.Info("dialing", zap.String("addr", addr), zap.String("server_name", host))

	raw, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer raw.Close()

	if err := raw.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	conn := tls.Client(raw, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecureSkipVerify,
	})
	if err := conn.Handshake(); err != nil {
		logger.Error("handshake failed", zap.Error(err))
		return fmt.Errorf("handshake: %w", err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	logger.Info("handshake complete",
		zap.Uint16("cipher_suite", state.CipherSuite),
		zap.Bool("secure_renegotiation", state.NegotiatedSecureRenegotiation),
		zap.Int("peer_certificates", len(state.PeerCertificates)),
	)
	for i, cert := range state.PeerCertificates {
		logger.Info("peer certificate", zap.Int("index", i), zap.String("subject", cert.Subject.String()))
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
