// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/alsprox/internal/config"
	"github.com/relabs-tech/alsprox/internal/driver"
	"github.com/relabs-tech/alsprox/internal/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// RegisterDebugSession holds one WebSocket client and the device handle it
// owns for the length of the connection.
type RegisterDebugSession struct {
	Conn   *websocket.Conn
	Driver *driver.Driver
	Handle *driver.Handle
}

// RegisterDebugCmd is any request from the debug page.
//
//	{"action":"get_map"}
//	{"action":"read","addr":"0x13"}
//	{"action":"read_all"}
//	{"action":"write","addr":"0x0F","value":"0x22"}
//	{"action":"command","command":"ALS_DATA","arg":"<hex>"}
//	{"action":"snapshot"}
//	{"action":"events"}
type RegisterDebugCmd struct {
	Action  string `json:"action"`
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
	Command string `json:"command,omitempty"`
	Arg     string `json:"arg,omitempty"`
}

// RegisterResponse is every message sent to the debug page.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "command", "snapshot", "events", "error"
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Command     string                 `json:"command,omitempty"`
	Result      string                 `json:"result,omitempty"`
	Snapshot    *driver.Snapshot       `json:"snapshot,omitempty"`
	Events      []driver.ReadSlot      `json:"events,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
}

// NewRegisterDebugMux serves the debug page, its WebSocket, the proximity
// calibration WebSocket and a JSON snapshot of driver state.
func NewRegisterDebugMux(d *driver.Driver, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		HandleRegisterDebugWS(d, w, r)
	})
	mux.HandleFunc("/calibration/ws", func(w http.ResponseWriter, r *http.Request) {
		HandleCalibrationWS(d, cfg.CalibrationDir, w, r)
	})
	mux.HandleFunc("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Snapshot()); err != nil {
			log.Printf("register_debug: json encode error: %v", err)
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})
	return mux
}

// HandleRegisterDebugWS handles the WebSocket connection for register
// debugging. The session holds the device's byte-stream handle, so only one
// page can debug at a time.
func HandleRegisterDebugWS(d *driver.Driver, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &RegisterDebugSession{Conn: conn, Driver: d}

	h, err := d.Open(true)
	if err != nil {
		session.sendError(fmt.Sprintf("open device: %v", err))
		return
	}
	session.Handle = h
	defer h.Close()

	if err := session.sendRegisterMap(); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterDebugCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			break
		}
		session.Dispatch(r.Context(), cmd)
	}
}

// Dispatch routes one request and writes the reply.
func (s *RegisterDebugSession) Dispatch(ctx context.Context, cmd RegisterDebugCmd) {
	resp, err := s.handle(ctx, cmd)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	resp.Timestamp = time.Now().Format(time.RFC3339)
	s.Conn.WriteJSON(resp)
}

func (s *RegisterDebugSession) handle(ctx context.Context, cmd RegisterDebugCmd) (RegisterResponse, error) {
	switch cmd.Action {
	case "get_map":
		return RegisterResponse{Type: "register_map", RegisterMap: sensors.RegisterMap()}, nil
	case "read":
		return s.handleRead(cmd)
	case "read_all":
		return s.handleReadAll()
	case "write":
		return s.handleWrite(cmd)
	case "command":
		return s.handleCommand(ctx, cmd)
	case "snapshot":
		snap := s.Driver.Snapshot()
		return RegisterResponse{Type: "snapshot", Snapshot: &snap}, nil
	case "events":
		return s.handleEvents(ctx)
	case "":
		return RegisterResponse{}, errors.New("missing or invalid action field")
	}
	return RegisterResponse{}, fmt.Errorf("unknown action: %s", cmd.Action)
}

func (s *RegisterDebugSession) handleRead(cmd RegisterDebugCmd) (RegisterResponse, error) {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("invalid address format: %s", cmd.Address)
	}
	if _, err := s.Handle.Seek(int64(addr), io.SeekStart); err != nil {
		return RegisterResponse{}, fmt.Errorf("read error: %w", err)
	}
	var v [1]byte
	if _, err := s.Handle.ReadRegisters(v[:]); err != nil {
		return RegisterResponse{}, fmt.Errorf("read error: %w", err)
	}
	return RegisterResponse{
		Type:    "register_data",
		Address: fmt.Sprintf("0x%02X", addr),
		Value:   fmt.Sprintf("0x%02X", v[0]),
	}, nil
}

func (s *RegisterDebugSession) handleReadAll() (RegisterResponse, error) {
	if _, err := s.Handle.Seek(0, io.SeekStart); err != nil {
		return RegisterResponse{}, fmt.Errorf("read all error: %w", err)
	}
	var bank [sensors.NumRegisters]byte
	if _, err := s.Handle.ReadRegisters(bank[:]); err != nil {
		return RegisterResponse{}, fmt.Errorf("read all error: %w", err)
	}
	regMap := make(map[string]string, len(bank))
	for addr, value := range bank {
		regMap[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", value)
	}
	return RegisterResponse{Type: "register_data", Registers: regMap}, nil
}

func (s *RegisterDebugSession) handleWrite(cmd RegisterDebugCmd) (RegisterResponse, error) {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("invalid address format: %s", cmd.Address)
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("invalid value format: %s", cmd.Value)
	}
	if !isRegisterWritable(addr) {
		return RegisterResponse{}, fmt.Errorf("register 0x%02X is read-only", addr)
	}
	if _, err := s.Handle.Seek(int64(addr), io.SeekStart); err != nil {
		return RegisterResponse{}, fmt.Errorf("write error: %w", err)
	}
	if _, err := s.Handle.Write([]byte{value}); err != nil {
		return RegisterResponse{}, fmt.Errorf("write error: %w", err)
	}
	return RegisterResponse{
		Type:    "register_data",
		Address: fmt.Sprintf("0x%02X", addr),
		Value:   fmt.Sprintf("0x%02X", value),
		Message: "write successful",
	}, nil
}

func (s *RegisterDebugSession) handleCommand(ctx context.Context, cmd RegisterDebugCmd) (RegisterResponse, error) {
	c, err := driver.ParseCommand(cmd.Command)
	if err != nil {
		return RegisterResponse{}, err
	}
	arg, err := hex.DecodeString(cmd.Arg)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("invalid arg: %w", err)
	}
	out, err := s.Driver.Dispatch(ctx, c, arg)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("%s: %w", c, err)
	}
	return RegisterResponse{Type: "command", Command: c.String(), Result: hex.EncodeToString(out)}, nil
}

// handleEvents drains the read buffer without blocking.
func (s *RegisterDebugSession) handleEvents(ctx context.Context) (RegisterResponse, error) {
	var raw [driver.BufferSize]byte
	n, err := s.Handle.Read(ctx, raw[:])
	if errors.Is(err, sensors.ErrWouldBlock) {
		return RegisterResponse{Type: "events", Message: "no events"}, nil
	}
	if err != nil {
		return RegisterResponse{}, err
	}
	var events []driver.ReadSlot
	for off := 0; off+driver.SlotSize <= n; off += driver.SlotSize {
		events = append(events, driver.ReadSlot{
			Data:      binary.LittleEndian.Uint32(raw[off:]),
			Interrupt: binary.LittleEndian.Uint32(raw[off+4:]),
		})
	}
	return RegisterResponse{Type: "events", Events: events}, nil
}

func (s *RegisterDebugSession) sendRegisterMap() error {
	return s.Conn.WriteJSON(RegisterResponse{
		Type:        "register_map",
		RegisterMap: sensors.RegisterMap(),
	})
}

func (s *RegisterDebugSession) sendError(message string) {
	s.Conn.WriteJSON(RegisterResponse{
		Type:    "error",
		Message: message,
	})
}

func parseHexByte(s string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(s, "0x%X", &b); err != nil {
		return 0, err
	}
	return b, nil
}

// isRegisterWritable reports whether addr is one of the RW registers in
// the register map.
func isRegisterWritable(addr byte) bool {
	want := fmt.Sprintf("0x%02X", addr)
	for _, r := range sensors.RegisterMap() {
		if r.Address == want {
			return r.Access == "RW" || r.Access == "W"
		}
	}
	return false
}
