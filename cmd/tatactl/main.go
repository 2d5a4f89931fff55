// tatactl - offline tool for tATA SMS records
//
// Usage:
//
//	tatactl encode protector|watcher [--envelope] [file]  JSON in, machine string out
//	tatactl decode protector|watcher [file]               Machine string (or "$tATA/..." body) in, JSON out
//	tatactl render [--tz=Europe/Budapest] [file]          Render a report as the human SMS
//	tatactl command <text> [--receiver=+36...]            Parse an operator command, print the device SMS
//	tatactl commands                                      List operator commands
//	tatactl version                                       Print version info
//
// If no file is given, reads from stdin.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tata-codec/internal/codec"
	"tata-codec/internal/model"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "encode", "decode":
		if len(args) < 1 {
			fatal("tatactl %s: missing record type (protector, watcher)", cmd)
		}
		kind := args[0]
		envelope, _, fileArg := parseFlags(args[1:])
		input := openInput(fileArg)
		if cmd == "encode" {
			cmdEncode(kind, input, envelope)
		} else {
			cmdDecode(kind, input)
		}
	case "render":
		_, tz, fileArg := parseFlags(args)
		cmdRender(openInput(fileArg), tz)
	case "command":
		cmdCommand(args)
	case "commands":
		for _, c := range codec.Commands() {
			fmt.Println(c.Text)
		}
	case "version", "-v", "--version":
		fmt.Printf("tatactl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `tatactl - offline tool for tATA SMS records

Usage:
  tatactl encode protector|watcher [--envelope] [file]
  tatactl decode protector|watcher [file]
  tatactl render [--tz=Europe/Budapest] [file]
  tatactl command <text> [--receiver=+36...]
  tatactl commands
  tatactl version

If no file is given, reads from stdin.`)
}

func parseFlags(args []string) (envelope bool, tz, fileArg string) {
	for _, arg := range args {
		switch {
		case arg == "--envelope":
			envelope = true
		case strings.HasPrefix(arg, "--tz="):
			tz = strings.TrimPrefix(arg, "--tz=")
		default:
			if !strings.HasPrefix(arg, "-") && arg != "-" {
				fileArg = arg
			}
		}
	}
	return envelope, tz, fileArg
}

func openInput(fileArg string) io.Reader {
	if fileArg == "" {
		return os.Stdin
	}
	f, err := os.Open(fileArg)
	if err != nil {
		fatal("open file: %v", err)
	}
	return f
}

// readRecord returns the machine string of the input, envelope stripped.
func readRecord(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil {
		fatal("read input: %v", err)
	}
	s := strings.TrimRight(string(data), "\r\n")
	if payload, ok := codec.Unwrap(s); ok {
		return payload
	}
	return s
}

func cmdEncode(kind string, r io.Reader, envelope bool) {
	var out string
	dec := json.NewDecoder(r)
	switch kind {
	case "protector":
		var p model.Protector
		if err := dec.Decode(&p); err != nil {
			fatal("parse JSON: %v", err)
		}
		out = codec.ProtectorMachine{}.Serialize(p)
	case "watcher":
		var w model.Watcher
		if err := dec.Decode(&w); err != nil {
			fatal("parse JSON: %v", err)
		}
		out = codec.WatcherMachine{}.Serialize(w)
	default:
		fatal("unknown record type: %s", kind)
	}
	if envelope {
		out = codec.Wrap(out)
	}
	fmt.Println(out)
}

func cmdDecode(kind string, r io.Reader) {
	s := readRecord(r)
	var (
		v   any
		err error
	)
	switch kind {
	case "protector":
		v, err = codec.ProtectorMachine{}.Deserialize(s)
	case "watcher":
		v, err = codec.WatcherMachine{}.Deserialize(s)
	default:
		fatal("unknown record type: %s", kind)
	}
	if err != nil {
		fatal("decode: %v", err)
	}
	writeJSON(v)
}

func cmdRender(r io.Reader, tz string) {
	loc := time.Local
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			fatal("time zone: %v", err)
		}
	}
	p, err := codec.ProtectorMachine{}.Deserialize(readRecord(r))
	if err != nil {
		fatal("decode: %v", err)
	}
	fmt.Print(codec.ProtectorHuman{Location: loc}.Serialize(p))
}

func cmdCommand(args []string) {
	var receiver string
	var words []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "--receiver=") {
			receiver = strings.TrimPrefix(arg, "--receiver=")
			continue
		}
		words = append(words, arg)
	}
	if len(words) == 0 {
		fatal("tatactl command: missing command text")
	}

	w, err := codec.WatcherHuman{}.Deserialize(strings.Join(words, " "))
	if err != nil {
		fatal("%v (see: tatactl commands)", err)
	}
	if receiver != "" {
		w.Receiver = &model.ReceiverInfo{Type: model.ReceiverSmsHuman, PhoneNumber: receiver}
	}
	fmt.Println(codec.Wrap(codec.WatcherMachine{}.Serialize(w)))
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("write JSON: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
