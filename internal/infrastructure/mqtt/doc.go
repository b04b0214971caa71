// Package mqtt provides MQTT client connectivity for the C-Gate bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament on hello/cgateweb for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge surfaces C-Bus state on the cbus/read hierarchy and accepts
// commands on cbus/write; its own presence lives on hello/cgateweb:
//
//	C-Gate ↔ cgateweb bridge ↔ MQTT Broker ↔ Home Assistant / controllers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all inbound commands
//	err = client.Subscribe(mqtt.Topics{}.AllWrites(), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a state update
//	client.PublishString(mqtt.Topics{}.ReadState("254", "56", "4"), "ON", 0, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Subscriptions are restored
// automatically after reconnection.
package mqtt
