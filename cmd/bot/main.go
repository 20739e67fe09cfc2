package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"washcycle.game/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "client name")
		machine = flag.String("machine", "M000001", "machine to use")
		spawn   = flag.Bool("spawn", true, "request a customer right after joining")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		MaxQueue:        64,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	d := newDriver(*machine)
	send := func(inputs []protocol.InputReq) {
		if len(inputs) == 0 {
			return
		}
		msg := protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, Inputs: inputs}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Printf("send INPUT: %v", err)
		}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s world=%s tick=%d seed=%d", w.SessionID, w.WorldID, w.Tick, w.WorldParams.Seed)
			if *spawn {
				send([]protocol.InputReq{{ID: "B_spawn", Type: protocol.InputSpawnCustomer}})
			}

		case protocol.TypeEvents:
			var ev protocol.EventsMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			for _, e := range ev.Events {
				switch e.Type() {
				case protocol.EventCustomerSpawned, protocol.EventCustomerDespawned, protocol.EventMachineDone, protocol.EventInvalidRangeToObject:
					logger.Printf("tick=%d %s %v", ev.Tick, e.Type(), e)
				}
			}
			send(d.react(ev.Events))

		case protocol.TypeError:
			logger.Printf("ERROR %s", msg)
		}
	}
}
