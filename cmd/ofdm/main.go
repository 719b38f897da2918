// Command ofdm modulates and demodulates single OFDM symbols from the
// command line.
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"unicode/utf8"

	"github.com/spf13/pflag"

	"github.com/jeongseonghan/ofdm-modem/internal/audio"
	"github.com/jeongseonghan/ofdm-modem/internal/config"
	"github.com/jeongseonghan/ofdm-modem/internal/modem"
	"github.com/jeongseonghan/ofdm-modem/internal/samples"
)

const usage = `Usage: ofdm [--config file] <command> [flags]

Commands:
  info        Print the symbol layout
  modulate    Encode a payload into a sample container
  demodulate  Decode a sample container back to the payload
  demo        Round-trip "Hello, world!" through one symbol
  play        Modulate a payload and play it on the default output device
  devices     List audio output devices
`

func main() {
	log.SetFlags(0)
	log.SetPrefix("ofdm: ")

	global := pflag.NewFlagSet("ofdm", pflag.ExitOnError)
	global.SetInterspersed(false)
	configFile := global.StringP("config", "c", "", "YAML configuration file (defaults when empty)")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}
	global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	cmd, args := global.Arg(0), global.Args()[1:]
	var err error
	switch cmd {
	case "info":
		err = runInfo(cfg, os.Stdout)
	case "modulate":
		err = runModulate(cfg, args)
	case "demodulate":
		err = runDemodulate(cfg, args)
	case "demo":
		err = runDemo(cfg, os.Stdout)
	case "play":
		err = runPlay(cfg, args)
	case "devices":
		err = runDevices()
	default:
		global.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runInfo(cfg *config.Config, w io.Writer) error {
	mc, err := cfg.Modem.Layout()
	if err != nil {
		return err
	}
	alloc := modem.NewAllocation(mc)
	fmt.Fprintf(w, "Subcarriers:     %d (transform length %d)\n", mc.NumSubcarriers, mc.TransformLen())
	fmt.Fprintf(w, "Cyclic prefix:   %d samples\n", mc.CyclicPrefixLength)
	fmt.Fprintf(w, "Pilot interval:  %d\n", mc.PilotInterval)
	fmt.Fprintf(w, "Modulation:      %s (%d bits/point)\n", mc.Modulation, mc.Modulation.BitsPerSymbol())
	fmt.Fprintf(w, "Transform:       %s\n", cfg.Modem.Transform)
	fmt.Fprintf(w, "Data bins:       %d\n", alloc.NumData())
	fmt.Fprintf(w, "Pilot bins:      %d %v\n", alloc.NumPilots(), alloc.PilotIndices())
	fmt.Fprintf(w, "Payload:         %d bytes/symbol\n", mc.BitsPerOFDMSymbol()/8)
	fmt.Fprintf(w, "Symbol length:   %d samples\n", mc.SymbolLength())
	return nil
}

// readPayload picks the payload from --text or --in and zero-pads it to
// capacity when pad is set.
func readPayload(text, inFile string, pad bool, capacity int) ([]byte, error) {
	var payload []byte
	switch {
	case text != "" && inFile != "":
		return nil, errors.New("use either --text or --in")
	case text != "":
		payload = []byte(text)
	case inFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		payload = data
	case inFile != "":
		data, err := os.ReadFile(inFile)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		payload = data
	default:
		return nil, errors.New("no payload: use --text or --in")
	}

	if pad && len(payload) < capacity {
		padded := make([]byte, capacity)
		copy(padded, payload)
		payload = padded
	}
	return payload, nil
}

func runModulate(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("modulate", pflag.ExitOnError)
	text := fs.StringP("text", "t", "", "Payload text")
	inFile := fs.StringP("in", "i", "", "Payload file (- for stdin)")
	outFile := fs.StringP("out", "o", "-", "Output container (- for stdout)")
	pad := fs.BoolP("pad", "p", false, "Zero-pad the payload to capacity")
	compress := fs.BoolP("compress", "z", cfg.Server.Compress, "zstd-compress the sample block")
	fs.Parse(args)

	mod, err := cfg.Modem.NewModulator()
	if err != nil {
		return err
	}
	payload, err := readPayload(*text, *inFile, *pad, mod.PayloadCapacity())
	if err != nil {
		return err
	}
	symbol, err := mod.ModulateSymbol(payload)
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if *outFile != "-" {
		f, err := os.Create(*outFile)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := samples.Write(w, mod.Config(), symbol, *compress); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	if *outFile != "-" {
		log.Printf("Wrote %d samples (%d payload bytes) to %s", len(symbol), len(payload), *outFile)
	}
	return nil
}

func runDemodulate(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("demodulate", pflag.ExitOnError)
	inFile := fs.StringP("in", "i", "-", "Input container (- for stdin)")
	outFile := fs.StringP("out", "o", "", "Write the raw payload here instead of printing it")
	fs.Parse(args)

	r := io.Reader(os.Stdin)
	if *inFile != "-" {
		f, err := os.Open(*inFile)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	hdr, symbol, err := samples.Read(r)
	if err != nil {
		return err
	}

	// The container's layout wins over the configured one
	mc := cfg.Modem
	mc.NumSubcarriers = hdr.Config.NumSubcarriers
	mc.CyclicPrefixLength = hdr.Config.CyclicPrefixLength
	mc.PilotInterval = hdr.Config.PilotInterval
	mc.Modulation = hdr.Config.Modulation.String()
	demod, err := mc.NewDemodulator()
	if err != nil {
		return err
	}

	payload, err := demod.DemodulateSymbol(symbol)
	if err != nil {
		return err
	}

	if *outFile != "" {
		return os.WriteFile(*outFile, payload, 0o644)
	}
	printPayload(os.Stdout, payload)
	return nil
}

// printPayload prints text payloads as text and anything else as hex.
func printPayload(w io.Writer, payload []byte) {
	text := bytes.TrimRight(payload, "\x00")
	if utf8.Valid(text) {
		fmt.Fprintf(w, "%s\n", text)
		return
	}
	fmt.Fprint(w, hex.Dump(payload))
}

func runDemo(cfg *config.Config, w io.Writer) error {
	mod, err := cfg.Modem.NewModulator()
	if err != nil {
		return err
	}
	demod, err := cfg.Modem.NewDemodulator()
	if err != nil {
		return err
	}

	message := "Hello, world!"
	payload, err := readPayload(message, "", true, mod.PayloadCapacity())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Message:      %q (padded to %d bytes)\n", message, len(payload))

	symbol, err := mod.ModulateSymbol(payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Modulated:    %d samples\n", len(symbol))

	recovered, err := demod.DemodulateSymbol(symbol)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Demodulated:  %q\n", bytes.TrimRight(recovered, "\x00"))

	if !bytes.Equal(recovered, payload) {
		return errors.New("demodulated payload does not match")
	}
	fmt.Fprintln(w, "Round trip OK")
	return nil
}

func runPlay(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("play", pflag.ExitOnError)
	text := fs.StringP("text", "t", "", "Payload text")
	inFile := fs.StringP("in", "i", "", "Payload file (- for stdin)")
	pad := fs.BoolP("pad", "p", true, "Zero-pad the payload to capacity")
	repeat := fs.IntP("repeat", "r", 1, "Number of times to play the symbol")
	fs.Parse(args)

	mod, err := cfg.Modem.NewModulator()
	if err != nil {
		return err
	}
	payload, err := readPayload(*text, *inFile, *pad, mod.PayloadCapacity())
	if err != nil {
		return err
	}
	symbol, err := mod.ModulateSymbol(payload)
	if err != nil {
		return err
	}

	if err := audio.Init(); err != nil {
		return fmt.Errorf("initialize PortAudio: %w", err)
	}
	defer audio.Terminate()

	player := audio.NewPlayer(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuf, cfg.Audio.Amplitude)
	if err := player.Open(); err != nil {
		return err
	}
	defer player.Close()

	for i := 0; i < *repeat; i++ {
		if err := player.Play(symbol); err != nil {
			return err
		}
	}
	log.Printf("Played %d x %d samples at %.0f Hz", *repeat, len(symbol), cfg.Audio.SampleRate)
	return nil
}

func runDevices() error {
	if err := audio.Init(); err != nil {
		return fmt.Errorf("initialize PortAudio: %w", err)
	}
	defer audio.Terminate()
	return audio.PrintDevices(os.Stdout)
}
