package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type classifyMessage struct {
	SessionID string `json:"session_id"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <session_id> [session_id...]\n", os.Args[0])
		os.Exit(1)
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("opstate-classify-publisher")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	log.Printf("connected to %s, requesting %d classifications", broker, len(os.Args)-1)

	for _, id := range os.Args[1:] {
		payload, _ := json.Marshal(classifyMessage{SessionID: id})
		topic := fmt.Sprintf("/fleet/session/%s/classify", id)

		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish %s: %v", topic, err)
			continue
		}

		log.Printf("published to %s: %s", topic, payload)
	}
}
