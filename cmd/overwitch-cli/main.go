// Command overwitch-cli bridges an Elektron Overbridge device to the host:
// device audio streams to a raw little-endian float32 file (or is
// discarded), device MIDI is printed, and host→device audio runs silent.
// Run with -list to see attached devices.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quimgil/overwitch/internal/clock"
	"github.com/quimgil/overwitch/internal/config"
	"github.com/quimgil/overwitch/internal/engine"
	"github.com/quimgil/overwitch/internal/protocol"
	"github.com/quimgil/overwitch/internal/resample"
	"github.com/quimgil/overwitch/internal/ring"
	"github.com/quimgil/overwitch/internal/usb"
)

func main() {
	var (
		list    = flag.Bool("list", false, "list attached Overbridge devices and exit")
		bus     = flag.Int("bus", -1, "USB bus number of the device")
		address = flag.Int("address", -1, "USB device address on its bus")
		blocks  = flag.Int("blocks", 0, "blocks per USB transfer (0 = from config)")
		cfgPath = flag.String("config", "", "config file (default: ~/.config/overwitch/overwitch.yaml)")
		output  = flag.String("output", "", "write device audio to this raw float32 file (empty = discard)")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *list {
		devices, err := usb.List()
		if err != nil {
			slog.Error("cannot enumerate devices", "err", err)
			os.Exit(1)
		}
		for _, d := range devices {
			fmt.Printf("%d:%d %04x:%04x %s\n", d.Bus, d.Address, d.VID, d.PID, d.Name)
		}
		return
	}

	if *cfgPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgPath = filepath.Join(home, ".config", "overwitch", "overwitch.yaml")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("cannot load config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	if *blocks > 0 {
		cfg.BlocksPerTransfer = *blocks
	}

	if *bus < 0 || *address < 0 {
		slog.Error("need -bus and -address (use -list to find the device)")
		os.Exit(1)
	}

	eng, err := engine.Open(uint8(*bus), uint8(*address), cfg.BlocksPerTransfer)
	if err != nil {
		slog.Error("cannot open device", "bus", *bus, "address", *address, "err", err)
		os.Exit(1)
	}
	if cfg.Resampler == "linear" {
		eng.SetResampler(resample.Linear{})
	}

	desc := eng.DeviceDescriptor()
	ringFrames := int(cfg.RingSeconds * protocol.SampleRate)
	o2pAudio := ring.New(ringFrames * protocol.BytesPerSample * desc.Outputs)
	p2oAudio := ring.New(ringFrames * protocol.BytesPerSample * desc.Inputs)
	o2pMIDI := ring.New(64 * protocol.MIDIEventRingSize)
	p2oMIDI := ring.New(64 * protocol.MIDIEventRingSize)

	var sink io.Writer
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			slog.Error("cannot create output file", "path", *output, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		sink = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = eng.Activate(&engine.HostContext{
		Options: engine.OptionO2PAudio | engine.OptionP2OAudio |
			engine.OptionO2PMIDI | engine.OptionP2OMIDI,
		O2PAudio: o2pAudio,
		P2OAudio: p2oAudio,
		O2PMIDI:  o2pMIDI,
		P2OMIDI:  p2oMIDI,
		GetTime:  clock.MonotonicNow,
		Priority: cfg.RTPriority,
	})
	if err != nil {
		slog.Error("cannot activate engine", "err", err)
		eng.Destroy()
		os.Exit(1)
	}

	go drainAudio(ctx, o2pAudio, sink)
	go printMIDI(ctx, o2pMIDI)
	go reportLatencies(ctx, eng)

	slog.Info("running",
		"device", eng.Name(),
		"inputs", desc.Inputs,
		"outputs", desc.Outputs,
		"frames_per_transfer", eng.FramesPerTransfer())

	<-ctx.Done()
	slog.Info("stopping")
	eng.Stop()
	eng.Wait()
	eng.Destroy()
}

// drainAudio keeps the o2p ring from overflowing, optionally writing the
// stream to a raw file.
func drainAudio(ctx context.Context, r *ring.Buffer, sink io.Writer) {
	buf := make([]byte, 1<<15)
	for ctx.Err() == nil {
		n := r.Read(buf, len(buf))
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		if sink != nil {
			if _, err := sink.Write(buf[:n]); err != nil {
				slog.Error("cannot write audio output", "err", err)
				sink = nil
			}
		}
	}
}

func printMIDI(ctx context.Context, r *ring.Buffer) {
	buf := make([]byte, protocol.MIDIEventRingSize)
	var ev protocol.MIDIEvent
	for ctx.Err() == nil {
		if r.Read(buf, len(buf)) < len(buf) {
			time.Sleep(time.Millisecond)
			continue
		}
		protocol.GetMIDIEvent(&ev, buf)
		slog.Info("midi", "data", fmt.Sprintf("% x", ev.Data), "time", ev.Time)
	}
}

func reportLatencies(ctx context.Context, eng *engine.Engine) {
	t := time.NewTicker(2 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l := eng.Latencies()
			slog.Debug("latency",
				"o2p", l.O2P, "o2p_max", l.O2PMax,
				"p2o", l.P2O, "p2o_max", l.P2OMax)
		}
	}
}
