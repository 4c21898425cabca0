// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package serialbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
)

// ControllerError is a command the controller answered with "error <message>".
type ControllerError struct {
	Op      string
	Message string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller rejected %s: %s", e.Op, e.Message)
}

// ErrProtocol is returned when the controller answers with something that is
// neither "ok" nor an error reply.
var ErrProtocol = errors.New("serial protocol violation")

// command is one line on the wire. Volumes travel in microlitres and wells as
// "<slot>:<name>".
type command struct {
	Op       string `json:"op"`
	LoadName string `json:"load_name,omitempty"`
	Slot     int    `json:"slot,omitempty"`
	Pipette  string `json:"pipette,omitempty"`
	Mount    string `json:"mount,omitempty"`
	TipRacks []int  `json:"tip_racks,omitempty"`
	*transferArgs
}

// transferArgs are always sent in full, zero volumes included.
type transferArgs struct {
	Volume float64  `json:"volume_ul"`
	Source string   `json:"source"`
	Dest   string   `json:"dest"`
	AirGap float64  `json:"air_gap_ul"`
	Mix    *mixSpec `json:"mix_after,omitempty"`
	NewTip string   `json:"new_tip"`
}

type mixSpec struct {
	Repetitions int     `json:"repetitions"`
	Volume      float64 `json:"volume_ul"`
}

// ErrNoReply is returned when the controller stays silent or hangs up.
var ErrNoReply = errors.New("controller did not answer")

// Bridge drives a liquid handler controller over a line-oriented serial
// link. Commands are serialised; one reply is awaited per command.
//
// A goroutine reads the port and feeds complete lines to the waiting
// command. Once a reply is abandoned (timeout or cancellation) the bridge
// can no longer pair replies with commands and refuses further commands.
type Bridge struct {
	mu      sync.Mutex
	port    Port
	catalog *labware.Catalog
	timeout time.Duration
	broken  error

	replies   chan string
	readErr   error // set before replies is closed
	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge wraps an open port and starts reading it. Load names are
// resolved through catalog. A reply that takes longer than replyTimeout
// fails the command; zero selects DefaultReadTimeout.
func NewBridge(port Port, catalog *labware.Catalog, replyTimeout time.Duration) *Bridge {
	if catalog == nil {
		catalog = labware.NewCatalog()
	}
	if replyTimeout <= 0 {
		replyTimeout = DefaultReadTimeout
	}
	b := &Bridge{
		port:    port,
		catalog: catalog,
		timeout: replyTimeout,
		replies: make(chan string),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	return b
}

// readLoop splits the port's byte stream into lines. A read returning no
// data and no error is a port read timeout on an idle line and is retried.
func (b *Bridge) readLoop() {
	defer close(b.replies)

	buf := make([]byte, 256)
	var pending []byte
	for {
		n, err := b.port.Read(buf)
		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := string(pending[:i])
			pending = pending[i+1:]
			if !b.deliver(line) {
				b.readErr = io.ErrClosedPipe
				return
			}
		}
		if err != nil {
			if len(pending) > 0 && !b.deliver(string(pending)) {
				b.readErr = io.ErrClosedPipe
				return
			}
			b.readErr = err
			return
		}
	}
}

func (b *Bridge) deliver(line string) bool {
	select {
	case b.replies <- line:
		return true
	case <-b.done:
		return false
	}
}

// LoadLabware implements platform.Context.
func (b *Bridge) LoadLabware(ctx context.Context, loadName string, slot int) (*labware.Labware, error) {
	def, err := b.catalog.Lookup(loadName)
	if err != nil {
		return nil, err
	}
	if err := b.send(ctx, command{Op: "load_labware", LoadName: loadName, Slot: slot}); err != nil {
		return nil, err
	}
	return labware.New(def, slot), nil
}

// LoadInstrument implements platform.Context.
func (b *Bridge) LoadInstrument(ctx context.Context, name string, mount platform.Mount, tipRacks []*labware.Labware) (platform.Pipette, error) {
	model, err := platform.LookupPipette(name)
	if err != nil {
		return nil, err
	}
	slots := make([]int, 0, len(tipRacks))
	for _, r := range tipRacks {
		slots = append(slots, r.Slot)
	}
	if err := b.send(ctx, command{Op: "load_instrument", Pipette: name, Mount: string(mount), TipRacks: slots}); err != nil {
		return nil, err
	}
	return &pipette{bridge: b, model: model, mount: mount}, nil
}

// Close stops the reader and releases the serial port.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return b.port.Close()
}

// send writes cmd as one JSON line and waits for the controller's reply.
func (b *Bridge) send(ctx context.Context, cmd command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", cmd.Op, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken != nil {
		return fmt.Errorf("cannot send %s: %w", cmd.Op, b.broken)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Sending command.", "line", string(line))
	if _, err := b.port.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write %s: %w", cmd.Op, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	var reply string
	select {
	case <-ctx.Done():
		b.broken = fmt.Errorf("reply to %s was abandoned", cmd.Op)
		return fmt.Errorf("waiting for reply to %s: %w", cmd.Op, ctx.Err())
	case <-timer.C:
		b.broken = fmt.Errorf("%w %s within %s", ErrNoReply, cmd.Op, b.timeout)
		return b.broken
	case r, ok := <-b.replies:
		if !ok {
			return fmt.Errorf("%w %s: %w", ErrNoReply, cmd.Op, b.readErr)
		}
		reply = strings.TrimSpace(r)
	}
	logger.Debug("Received reply.", "reply", reply)

	switch {
	case reply == "ok":
		return nil
	case reply == "error":
		return &ControllerError{Op: cmd.Op}
	case strings.HasPrefix(reply, "error "):
		return &ControllerError{Op: cmd.Op, Message: strings.TrimPrefix(reply, "error ")}
	default:
		return fmt.Errorf("%w: unexpected reply %q to %s", ErrProtocol, reply, cmd.Op)
	}
}

// pipette forwards pipette commands through the bridge.
type pipette struct {
	bridge *Bridge
	model  platform.PipetteModel
	mount  platform.Mount
}

func (p *pipette) Name() string  { return p.model.Name }
func (p *pipette) Channels() int { return p.model.Channels }

func (p *pipette) PickUpTip(ctx context.Context) error {
	return p.bridge.send(ctx, command{Op: "pick_up_tip", Mount: string(p.mount)})
}

func (p *pipette) DropTip(ctx context.Context) error {
	return p.bridge.send(ctx, command{Op: "drop_tip", Mount: string(p.mount)})
}

func (p *pipette) Transfer(ctx context.Context, req platform.TransferRequest) error {
	args := &transferArgs{
		Volume: req.Volume.Microliters(),
		Source: req.Source.String(),
		Dest:   req.Dest.String(),
		AirGap: req.AirGap.Microliters(),
		NewTip: string(req.NewTip),
	}
	if req.MixAfter != nil {
		args.Mix = &mixSpec{Repetitions: req.MixAfter.Repetitions, Volume: req.MixAfter.Volume.Microliters()}
	}
	cmd := command{Op: "transfer", Mount: string(p.mount), transferArgs: args}
	return p.bridge.send(ctx, cmd)
}
