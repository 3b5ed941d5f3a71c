// annovate attaches key=value metadata to files and directories and
// gets it back later. All metadata for one directory lives in a single
// append-only text record next to the files it describes.
//
// Usage:
//
//	annovate set results.csv "description=Cleaned up data" "origin=StarGaze Lab"
//	annovate get results.csv description
//	annovate list .
//	annovate export .
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jbethune/annovate/annotate"
	"github.com/jbethune/annovate/config"
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: annovate [flags] <action> <path> [items...]

actions:
  get <path> <key>...        print the value for each key, or the default
  set <path> key=value...    assign properties to the file or directory
  list <path>                print name and description of every tracked object
  export <path>              dump the whole record as JSON

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		defValue   = flag.String("default", "", "value to print when a key or object has no metadata")
		configPath = flag.String("config", "", "path to a config file (default: the per-user config, if any)")
		recordName = flag.String("record", "", "name of the record file (default \".annovate\")")
		verbose    = flag.Bool("verbose", false, "log diagnostics to stderr")
	)
	flag.Usage = usage
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	action, object, items := args[0], args[1], args[2:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "annovate:", err)
		os.Exit(1)
	}
	def := *defValue
	if def == "" {
		def = cfg.Default
	}
	record := *recordName
	if record == "" {
		record = cfg.RecordFileName
	}

	recordPath, objectName, err := annotate.RecordPath(object, record)
	if err != nil {
		fmt.Fprintln(os.Stderr, "annovate:", err)
		os.Exit(1)
	}
	logger.Debug().
		Str("record", recordPath).
		Str("object", objectName).
		Str("action", action).
		Msg("resolved record location")

	if err := run(action, recordPath, objectName, items, def, logger); err != nil {
		fmt.Fprintln(os.Stderr, "annovate:", err)
		os.Exit(1)
	}
}

func run(action, recordPath, objectName string, items []string, def string, logger zerolog.Logger) error {
	switch action {
	case "get":
		a, err := annotate.Open(recordPath)
		if err != nil {
			return err
		}
		for _, key := range items {
			fmt.Println(a.Get(objectName, key, def))
		}

	case "set":
		a, err := annotate.Open(recordPath)
		if err != nil {
			return err
		}
		props, err := parseProperties(items)
		if err != nil {
			return err
		}
		if err := a.Set(objectName, props); err != nil {
			return err
		}
		logger.Debug().Int("properties", len(props)).Msg("wrote batch")

	case "list":
		a, err := annotate.Open(recordPath)
		if err != nil {
			return err
		}
		for _, l := range a.List(def) {
			fmt.Printf("%s\t%s\n", l.Object, l.Description)
		}

	case "export":
		a, err := annotate.Open(recordPath)
		if err != nil {
			return err
		}
		d, err := a.ExportJSON()
		if err != nil {
			return err
		}
		os.Stdout.Write(d)

	default:
		fmt.Fprintf(os.Stderr, "Unsupported action: %s\n", action)
		os.Exit(2)
	}
	return nil
}

func parseProperties(items []string) (map[string]string, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("set needs at least one key=value pair")
	}
	props := make(map[string]string, len(items))
	for _, spec := range items {
		idx := strings.IndexByte(spec, '=')
		if idx == -1 {
			return nil, fmt.Errorf("not a key=value pair: '%s'", spec)
		}
		props[spec[:idx]] = spec[idx+1:]
	}
	return props, nil
}
