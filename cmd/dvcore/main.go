// Command dvcore runs the digital voice decoder core against a
// configured RF front-end, optionally following a P25 trunked system
// across control and voice channels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/n3qso/dvcore/core"
)

// configSnapshot is the optional YAML config file format read with
// --config. Its values fill in flags not given on the command line; the
// protocols and audio_in entries are parsed but not applied, and the
// binary never writes this file.
type configSnapshot struct {
	Protocols struct {
		P25P1  bool `yaml:"p25p1"`
		P25P2  bool `yaml:"p25p2"`
		DMR    bool `yaml:"dmr"`
		NXDN48 bool `yaml:"nxdn48"`
		NXDN96 bool `yaml:"nxdn96"`
		YSF    bool `yaml:"ysf"`
		DSTAR  bool `yaml:"dstar"`
		M17    bool `yaml:"m17"`
		EDACS  bool `yaml:"edacs"`
		ProVoice bool `yaml:"provoice"`
		DPMR   bool `yaml:"dpmr"`
		X2TDMA bool `yaml:"x2tdma"`
	} `yaml:"protocols"`

	Trunking bool    `yaml:"trunking"`
	Hangtime float64 `yaml:"hangtime"`

	AudioIn  string `yaml:"audio_in"`
	AudioOut string `yaml:"audio_out"`

	WAVDir string `yaml:"wav_dir"`
	MBEDir string `yaml:"mbe_dir"`

	SerialDevice string `yaml:"serial_device"`
	SerialBaud   int    `yaml:"serial_baud"`

	RigModel int    `yaml:"rig_model"`
	RigPath  string `yaml:"rig_path"`

	LogLevel string `yaml:"log_level"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dvcore:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a YAML configuration snapshot")
		trunking   = pflag.Bool("trunking", true, "follow P25 trunking control/voice channels")
		hangtime   = pflag.Float64("hangtime", 2.0, "P25 trunking hangtime in seconds")
		serialDev  = pflag.String("serial-device", "", "serial baseband front-end device path")
		serialBaud = pflag.Int("serial-baud", 0, "serial front-end baud rate (0 = leave alone)")
		rigModel   = pflag.Int("rig-model", 0, "Hamlib rig model id for the tuning hook (0 = disabled)")
		rigPath    = pflag.String("rig-path", "", "Hamlib rig device/network path")
		wavDir     = pflag.String("wav-dir", "", "directory for per-call WAV files")
		mbeDir     = pflag.String("mbe-dir", "", "directory for MBE codeword artifact files")
		audioOut   = pflag.String("audio-out", "", "play decoded audio: \"default\" for the PortAudio default device")
		eventLog   = pflag.String("event-log", "", "append P25 trunking events to this plain-text log file")
		gpioChip   = pflag.String("gpio-chip", "", "GPIO chip name for the channel-busy status line")
		gpioOffset = pflag.Int("gpio-offset", 0, "GPIO line offset for the status line")
		mdnsPort   = pflag.Int("mdns-port", 0, "advertise the control endpoint over mDNS on this port (0 = disabled)")
		logLevel   = pflag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	pflag.Parse()

	var snap configSnapshot
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			return fmt.Errorf("opening config %s: %w", *configPath, err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&snap); err != nil {
			return fmt.Errorf("parsing config %s: %w", *configPath, err)
		}
		applySnapshotDefaults(&snap, trunking, hangtime, serialDev, serialBaud, rigModel, rigPath, wavDir, mbeDir, logLevel)
		if !pflag.CommandLine.Changed("audio-out") && snap.AudioOut != "" {
			*audioOut = snap.AudioOut
		}
	}

	opt := core.Defaults()
	opt.TrunkingEnabled = *trunking
	opt.P25.Hangtime = *hangtime
	opt.WAVDir = *wavDir
	opt.MBEDir = *mbeDir

	logger := core.NewLogger(os.Stderr, levelFromString(*logLevel))

	var hook core.TuningHook
	if *rigModel != 0 {
		rig, err := core.NewHamlibRig(*rigModel, *rigPath)
		if err != nil {
			return fmt.Errorf("initializing rig: %w", err)
		}
		defer rig.Close()
		hook = rig
	}

	eng := core.NewEngine(opt, hook, logger)

	if *serialDev != "" {
		eng.Source = core.NewSerialSamples(*serialDev, *serialBaud, 48000)
	} else {
		return fmt.Errorf("no front-end configured: pass --serial-device")
	}

	// Decoded-audio fan-out: a live PortAudio sink when requested, else
	// a WAV capture when a directory is configured. The vocoder itself
	// is an external library injected by embedders; without one the
	// binary still captures codeword artifacts (--mbe-dir).
	switch {
	case *audioOut != "":
		sink, err := core.NewPortAudioSink(8000)
		if err != nil {
			return fmt.Errorf("opening audio output: %w", err)
		}
		defer sink.Close()
		eng.Audio = sink
	case *wavDir != "":
		name := fmt.Sprintf("dvcore_%d.wav", time.Now().Unix())
		sink, err := core.NewWAVWriter(filepath.Join(*wavDir, name), 8000, 1)
		if err != nil {
			return fmt.Errorf("opening wav capture: %w", err)
		}
		defer sink.Close()
		eng.Audio = sink
	}

	if *eventLog != "" {
		f, err := os.OpenFile(*eventLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		defer f.Close()
		eng.EventLog = core.NewEventLogWriter(f)
	}

	if *gpioChip != "" {
		line, err := core.NewGPIOStatusLine(*gpioChip, *gpioOffset)
		if err != nil {
			return fmt.Errorf("requesting gpio status line: %w", err)
		}
		defer line.Close()
		eng.GPIO = line
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mdnsPort != 0 {
		if _, err := core.NewDiscovery(ctx, "dvcore", *mdnsPort); err != nil {
			logger.Warnf("mdns advertisement failed: %v", err)
		}
	}

	logger.Infof("starting engine: trunking=%v hangtime=%.1fs", opt.TrunkingEnabled, opt.P25.Hangtime)
	return eng.Run(ctx)
}

func applySnapshotDefaults(snap *configSnapshot, trunking *bool, hangtime *float64, serialDev *string, serialBaud, rigModel *int, rigPath, wavDir, mbeDir, logLevel *string) {
	if !pflag.CommandLine.Changed("trunking") {
		*trunking = snap.Trunking
	}
	if !pflag.CommandLine.Changed("hangtime") && snap.Hangtime > 0 {
		*hangtime = snap.Hangtime
	}
	if !pflag.CommandLine.Changed("serial-device") && snap.SerialDevice != "" {
		*serialDev = snap.SerialDevice
	}
	if !pflag.CommandLine.Changed("serial-baud") && snap.SerialBaud != 0 {
		*serialBaud = snap.SerialBaud
	}
	if !pflag.CommandLine.Changed("rig-model") && snap.RigModel != 0 {
		*rigModel = snap.RigModel
	}
	if !pflag.CommandLine.Changed("rig-path") && snap.RigPath != "" {
		*rigPath = snap.RigPath
	}
	if !pflag.CommandLine.Changed("wav-dir") && snap.WAVDir != "" {
		*wavDir = snap.WAVDir
	}
	if !pflag.CommandLine.Changed("mbe-dir") && snap.MBEDir != "" {
		*mbeDir = snap.MBEDir
	}
	if !pflag.CommandLine.Changed("log-level") && snap.LogLevel != "" {
		*logLevel = snap.LogLevel
	}
}

func levelFromString(s string) core.LogLevel {
	switch s {
	case "debug":
		return core.LogDebug
	case "warn":
		return core.LogWarn
	case "error":
		return core.LogError
	default:
		return core.LogInfo
	}
}
