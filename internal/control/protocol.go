// Package control is the process boundary between the fps service and its
// toggles. A client binds by holding a unix socket connection open and
// exchanges msgpack-encoded requests and responses over it.
package control

import "errors"

// Commands understood by the server.
const (
	CmdStart        = "start"
	CmdStop         = "stop"
	CmdStatus       = "status"
	CmdSleep        = "sleep"
	CmdWake         = "wake"
	CmdMonetRefresh = "monet-refresh"
)

const (
	statusOK  = "ok"
	statusErr = "err"
)

var (
	// ErrNotBound is returned for commands issued without a live binding.
	ErrNotBound = errors.New("control: service not bound")
	// ErrAlreadyServing is returned when another server owns the socket.
	ErrAlreadyServing = errors.New("control: another instance is already running")
)

// Request is one client command.
type Request struct {
	ID     string `msgpack:"id"`
	Client string `msgpack:"client"`
	Cmd    string `msgpack:"cmd"`
}

// Response answers the request with the same ID. Running is the service's
// reading flag after the command ran; Polling and Asleep report whether the
// loop is physically active and whether the device sleeps.
type Response struct {
	ID      string `msgpack:"id"`
	Status  string `msgpack:"status"`
	Running bool   `msgpack:"running"`
	Polling bool   `msgpack:"polling"`
	Asleep  bool   `msgpack:"asleep"`
	Message string `msgpack:"message,omitempty"`
}

// OK reports whether the server accepted the command.
func (r Response) OK() bool { return r.Status == statusOK }
