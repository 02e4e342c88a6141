// Package session maintains the long-lived WebSocket connection to the
// translation gateway and the session identifier bound to it.
//
// # Protocol
//
// Right after the socket opens the gateway sends one greeting:
//
//	{"room_id":"room_3f2a9c"}
//
// The session id is the room id with "room_" removed. Translation jobs are
// submitted out of band (see package dispatch) and tagged with that id; the
// gateway then pushes each result over the socket:
//
//	{"result":{"result":{"text":"hello"}}}
//	{"error":"translator does not support target language"}
//
// No request id travels with a result. The gateway answers the jobs of one
// session in submission order, so a receiver must never have more than one
// job outstanding per session.
//
// # Connection lifecycle
//
//	Disconnected --Connect ok--> Live --read failure / Disconnect--> Disconnected
//	Disconnected --Reconnect ok--> Live
//
// Connect, Disconnect and Reconnect are serialized by the client's lock.
// Reconnect calls that overlap share a single attempt sequence, so the
// background Monitor and an on-demand reconnect never open two sockets.
//
// Basic usage
//
//	client, err := session.NewClient(session.Config{URL: "ws://localhost:8080/ws"},
//	    transport.NewWebSocketDialer(10*time.Second, 30*time.Second))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	monitor := session.NewMonitor(client, 10*time.Second, 5*time.Second)
//	monitor.Start(ctx)
//	defer monitor.Stop()
package session
