package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	urmp "github.com/Pablu23/Urmp"
)

const msgEcho uint16 = 1

var (
	address  string
	tickRate int
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})

	root := &cobra.Command{
		Use:   "urmp",
		Short: "Reliable messaging over UDP",
	}
	root.PersistentFlags().StringVarP(&address, "address", "a", "127.0.0.1:13374", "UDP address")
	root.PersistentFlags().IntVar(&tickRate, "tick-rate", 60, "ticks per second")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo server",
		RunE:  runServe,
	}

	ping := &cobra.Command{
		Use:   "ping",
		Short: "Connect and measure reliable round trips",
		RunE:  runPing,
	}

	root.AddCommand(serve, ping)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	server := urmp.NewServer()

	_, err := server.Handle(msgEcho, func(m *urmp.Message, c *urmp.Connection) {
		payload, err := m.ReadBytes()
		if err != nil {
			log.WithError(err).Warn("Malformed echo message")
			return
		}
		reply := urmp.NewMessage(urmp.Reliable, msgEcho)
		if err := reply.WriteBytes(payload); err != nil {
			log.WithError(err).Warn("Echo payload too large")
			reply.Release()
			return
		}
		if err := server.Send(reply, c); err != nil {
			log.WithError(err).Warn("Could not send echo reply")
		}
	})
	if err != nil {
		return err
	}

	transport, err := urmp.ListenUDP(address)
	if err != nil {
		return err
	}
	if err := server.Start(transport); err != nil {
		return err
	}
	defer server.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			server.Tick()
		case <-interrupt:
			return nil
		}
	}
}

func runPing(cmd *cobra.Command, args []string) error {
	client := urmp.NewClient()

	sendPing := func() {
		m := urmp.NewMessage(urmp.Reliable, msgEcho)
		if err := m.WriteBytes([]byte(fmt.Sprintf("ping %d", time.Now().UnixMilli()))); err != nil {
			m.Release()
			return
		}
		if err := client.Send(m); err != nil {
			log.WithError(err).Warn("Could not send ping")
		}
	}

	_, err := client.Handle(msgEcho, func(m *urmp.Message, _ *urmp.Connection) {
		payload, err := m.ReadBytes()
		if err != nil {
			log.WithError(err).Warn("Malformed echo reply")
			return
		}
		log.WithFields(log.Fields{
			"Payload": string(payload),
			"RTT":     client.RTT(),
		}).Info("Echo round trip")
		sendPing()
	})
	if err != nil {
		return err
	}

	client.OnConnected(func() {
		log.Info("Connected")
		sendPing()
	})
	client.OnDisconnected(func(reason urmp.DisconnectReason) {
		log.WithField("Reason", reason.String()).Warn("Disconnected")
	})

	transport, err := urmp.DialUDP(address)
	if err != nil {
		return err
	}
	if err := client.Connect(transport); err != nil {
		return err
	}
	defer client.Disconnect()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			client.Tick()
		case <-interrupt:
			return nil
		}
	}
}
