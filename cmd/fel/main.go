// Command fel is the CLI front end for the FEL session package: a set of
// subcommands mirroring the reference sunxi-fel tool's argv dispatch
// (version, readl, writel, read, write, exe, hexdump, dump, fill, clear,
// spl, uboot, reset64, sid), built on top of internal/fel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"

	"hasher-fel/internal/fel"
	"hasher-fel/internal/felconfig"
	"hasher-fel/internal/progress"
)

var (
	verbose  = flag.Bool("v", false, "enable verbose protocol logging")
	showBar  = flag.Bool("p", false, "show a progress bar for write/multiwrite")
	devSpec  = flag.String("d", "", "bus:devnum of the FEL device (default: discover by VID/PID)")
	copySID  = flag.Bool("copy", false, "copy the sid command's output to the clipboard")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := felconfig.Load()
	if err != nil {
		log.Fatalf("fel: loading config: %v", err)
	}
	bus, dev := cfg.Bus, cfg.Device
	if *devSpec != "" {
		bus, dev, err = parseBusDev(*devSpec)
		if err != nil {
			log.Fatalf("fel: %v", err)
		}
	}

	session, err := fel.OpenSession(bus, dev)
	if err != nil {
		log.Fatalf("fel: opening session: %v", err)
	}
	defer session.Close()
	session.Verbose = *verbose || cfg.Verbose
	if cfg.Timeout > 0 {
		session.Timeout = cfg.Timeout
	}

	ctx := context.Background()
	uautostart, err := dispatch(ctx, session, args)
	if err != nil {
		log.Fatalf("fel: %v", err)
	}
	if uautostart != 0 {
		fmt.Printf("Starting U-Boot (%#08x).\n", uautostart)
		if err := session.Execute(ctx, uautostart); err != nil {
			log.Fatalf("fel: starting U-Boot: %v", err)
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fel [flags] <command> [args...]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  version")
	fmt.Fprintln(os.Stderr, "  sid")
	fmt.Fprintln(os.Stderr, "  readl <addr>")
	fmt.Fprintln(os.Stderr, "  writel <addr> <value>")
	fmt.Fprintln(os.Stderr, "  read <addr> <length> <file>")
	fmt.Fprintln(os.Stderr, "  write <addr> <file>")
	fmt.Fprintln(os.Stderr, "  multiwrite <count> <addr1> <file1> [<addr2> <file2> ...]")
	fmt.Fprintln(os.Stderr, "  exe <addr>")
	fmt.Fprintln(os.Stderr, "  hexdump <addr> <length>")
	fmt.Fprintln(os.Stderr, "  dump <addr> <length>")
	fmt.Fprintln(os.Stderr, "  fill <addr> <length> <byte>")
	fmt.Fprintln(os.Stderr, "  clear <addr> <length>")
	fmt.Fprintln(os.Stderr, "  spl <file>")
	fmt.Fprintln(os.Stderr, "  uboot <file>")
	fmt.Fprintln(os.Stderr, "  reset64 <entry>")
	flag.PrintDefaults()
}

// dispatch runs one command and returns the U-Boot entry point to
// autostart after the argument list is exhausted (0 if none).
func dispatch(ctx context.Context, s *fel.Session, args []string) (uint32, error) {
	var ubootAutostart uint32

	for len(args) > 0 {
		cmd := args[0]
		switch {
		case cmd == "version" || strings.HasPrefix(cmd, "ver"):
			v, err := s.Version(ctx)
			if err != nil {
				return 0, err
			}
			fmt.Printf("%s soc=%#04x protocol=%#08x scratchpad=%#08x\n",
				v.Signature, v.SoCID, v.Protocol, v.Scratchpad)
			args = args[1:]

		case cmd == "sid":
			key, err := s.PrintSID(ctx)
			if err != nil {
				return 0, err
			}
			out := fmt.Sprintf("%08x%08x%08x%08x", key[0], key[1], key[2], key[3])
			fmt.Println(out)
			if *copySID {
				if err := clipboard.WriteAll(out); err == nil {
					fmt.Println("(copied to clipboard)")
				}
			}
			args = args[1:]

		case cmd == "readl":
			if len(args) < 2 {
				return 0, fmt.Errorf("readl: missing address")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			v, err := s.ReadL32(ctx, addr)
			if err != nil {
				return 0, err
			}
			fmt.Printf("%#08x\n", v)
			args = args[2:]

		case cmd == "writel":
			if len(args) < 3 {
				return 0, fmt.Errorf("writel: missing address/value")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			val, err := parseUint32(args[2])
			if err != nil {
				return 0, err
			}
			if err := s.WriteL32(ctx, addr, val); err != nil {
				return 0, err
			}
			args = args[3:]

		case strings.HasPrefix(cmd, "exe"):
			if len(args) < 2 {
				return 0, fmt.Errorf("exe: missing address")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			if err := s.Execute(ctx, addr); err != nil {
				return 0, err
			}
			args = args[2:]

		case cmd == "reset64":
			if len(args) < 2 {
				return 0, fmt.Errorf("reset64: missing entry point")
			}
			entry, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			if err := s.RMRRequest(ctx, entry, true); err != nil {
				return 0, err
			}
			return 0, nil // cancels any pending U-Boot autostart

		case cmd == "write":
			if len(args) < 3 {
				return 0, fmt.Errorf("write: missing address/file")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				return 0, err
			}
			if err := writeWithOptionalProgress(ctx, s, addr, data, args[2]); err != nil {
				return 0, err
			}
			args = args[3:]

		case cmd == "multiwrite" || cmd == "multi":
			if len(args) < 2 {
				return 0, fmt.Errorf("multiwrite: missing file count")
			}
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 1 {
				return 0, fmt.Errorf("multiwrite: invalid file count %q", args[1])
			}
			if len(args) < 2+2*count {
				return 0, fmt.Errorf("multiwrite: expected %d addr/file pairs", count)
			}
			if err := multiWrite(ctx, s, args[2:2+2*count]); err != nil {
				return 0, err
			}
			args = args[2+2*count:]

		case cmd == "read":
			if len(args) < 4 {
				return 0, fmt.Errorf("read: missing address/length/file")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			length, err := parseUint32(args[2])
			if err != nil {
				return 0, err
			}
			buf := make([]byte, length)
			if err := s.Read(ctx, addr, buf); err != nil {
				return 0, err
			}
			if err := os.WriteFile(args[3], buf, 0o644); err != nil {
				return 0, err
			}
			args = args[4:]

		case strings.HasPrefix(cmd, "hex"):
			if len(args) < 3 {
				return 0, fmt.Errorf("hexdump: missing address/length")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			length, err := parseUint32(args[2])
			if err != nil {
				return 0, err
			}
			buf := make([]byte, length)
			if err := s.Read(ctx, addr, buf); err != nil {
				return 0, err
			}
			hexdump(os.Stdout, addr, buf)
			args = args[3:]

		case cmd == "dump":
			if len(args) < 3 {
				return 0, fmt.Errorf("dump: missing address/length")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			length, err := parseUint32(args[2])
			if err != nil {
				return 0, err
			}
			buf := make([]byte, length)
			if err := s.Read(ctx, addr, buf); err != nil {
				return 0, err
			}
			os.Stdout.Write(buf)
			args = args[3:]

		case cmd == "clear":
			if len(args) < 3 {
				return 0, fmt.Errorf("clear: missing address/length")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			length, err := parseUint32(args[2])
			if err != nil {
				return 0, err
			}
			if err := fill(ctx, s, addr, length, 0); err != nil {
				return 0, err
			}
			args = args[3:]

		case cmd == "fill":
			if len(args) < 4 {
				return 0, fmt.Errorf("fill: missing address/length/byte")
			}
			addr, err := parseUint32(args[1])
			if err != nil {
				return 0, err
			}
			length, err := parseUint32(args[2])
			if err != nil {
				return 0, err
			}
			value, err := strconv.ParseUint(args[3], 0, 8)
			if err != nil {
				return 0, err
			}
			if err := fill(ctx, s, addr, length, byte(value)); err != nil {
				return 0, err
			}
			args = args[4:]

		case cmd == "spl":
			if len(args) < 2 {
				return 0, fmt.Errorf("spl: missing file")
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return 0, err
			}
			if err := s.ProcessSPLAndUboot(ctx, data); err != nil {
				return 0, err
			}
			args = args[2:]

		case cmd == "uboot":
			if len(args) < 2 {
				return 0, fmt.Errorf("uboot: missing file")
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return 0, err
			}
			if err := s.ProcessSPLAndUboot(ctx, data); err != nil {
				return 0, err
			}
			entry, _, ok := s.LastUboot()
			if !ok {
				fmt.Println("Warning: \"uboot\" command failed to detect image! Can't execute U-Boot.")
			} else {
				ubootAutostart = entry
			}
			args = args[2:]

		default:
			return 0, fmt.Errorf("invalid command %q", cmd)
		}
	}

	return ubootAutostart, nil
}

func writeWithOptionalProgress(ctx context.Context, s *fel.Session, addr uint32, data []byte, label string) error {
	if !*showBar {
		_, err := s.Write(ctx, addr, data, nil)
		return err
	}
	reporter := progress.NewReporter(label, int64(len(data)))
	_, err := s.Write(ctx, addr, data, reporter.Func())
	reporter.Done(err)
	return err
}

// multiWrite stages a sequence of addr/file pairs under a single shared
// progress total, mirroring fel.c's file_upload() with a file count (§9
// "multiwrite-style shared-progress multi-file upload").
func multiWrite(ctx context.Context, s *fel.Session, pairs []string) error {
	type upload struct {
		addr uint32
		data []byte
		name string
	}

	var uploads []upload
	var total int64
	for i := 0; i < len(pairs); i += 2 {
		addr, err := parseUint32(pairs[i])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(pairs[i+1])
		if err != nil {
			return err
		}
		uploads = append(uploads, upload{addr: addr, data: data, name: pairs[i+1]})
		total += int64(len(data))
	}

	var reporter *progress.Reporter
	if *showBar {
		reporter = progress.NewReporter(uploads[0].name, total)
	}

	var progressFn func(int)
	if reporter != nil {
		progressFn = reporter.Func()
	}

	for _, u := range uploads {
		if _, err := s.Write(ctx, u.addr, u.data, progressFn); err != nil {
			if reporter != nil {
				reporter.Done(err)
			}
			return err
		}
	}
	if reporter != nil {
		reporter.Done(nil)
	}
	return nil
}

func fill(ctx context.Context, s *fel.Session, addr, length uint32, value byte) error {
	const chunkSize = 4096
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = value
	}
	for length > 0 {
		n := uint32(len(buf))
		if n > length {
			n = length
		}
		if _, err := s.Write(ctx, addr, buf[:n], nil); err != nil {
			return err
		}
		addr += n
		length -= n
	}
	return nil
}

func hexdump(w *os.File, offset uint32, data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[i:end]
		fmt.Fprintf(w, "%08x: ", offset+uint32(i))
		for j := 0; j < 16; j++ {
			if j < len(row) {
				fmt.Fprintf(w, "%02x ", row[j])
			} else {
				fmt.Fprint(w, "   ")
			}
		}
		fmt.Fprintln(w, asciiPreview(row))
	}
}

func asciiPreview(row []byte) string {
	b := make([]byte, len(row))
	for i, c := range row {
		if c >= 0x20 && c < 0x7F {
			b[i] = c
		} else {
			b[i] = '.'
		}
	}
	return string(b)
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric argument %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseBusDev(spec string) (bus, dev int, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 'bus:devnum', got %q", spec)
	}
	b, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("expected 'bus:devnum', got %q", spec)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("expected 'bus:devnum', got %q", spec)
	}
	return b, d, nil
}

