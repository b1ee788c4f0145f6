package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/actionset"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/archive"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/options"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/schema"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/timestamp"
	"github.com/yanndanielou/yanndan-programmation-sub001/pkg/msgdecode"
)

type config struct {
	Schemas     string           `mapstructure:"schemas"`
	IDs         string           `mapstructure:"ids"`
	ActionTable string           `mapstructure:"action-table"`
	ActionField string           `mapstructure:"action-field"`
	Workers     int              `mapstructure:"workers"`
	Format      string           `mapstructure:"format"`
	Verbose     bool             `mapstructure:"verbose"`
	Timestamp   timestamp.Fields `mapstructure:"timestamp"`
}

var (
	v       = viper.New()
	cfg     config
	cfgFile string
	msgNum  int

	rootCmd = &cobra.Command{
		Use:   "msgdecode",
		Short: "Decode schema-described binary telemetry messages",
		Long: "msgdecode decodes binary telemetry messages with YAML message schemas,\n" +
			"either one payload at a time or a whole JSON-lines archive.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	decodeCmd = &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode one payload, or read payloads from stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDecoder()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if len(args) == 0 {
				return runInteractive(ctx, d, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runDecode(ctx, d, cmd.OutOrStdout(), msgNum, args[0])
		},
	}

	archiveCmd = &cobra.Command{
		Use:   "archive FILE",
		Short: "Decode every SQLARCH record of an archive (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDecoder()
			if err != nil {
				return err
			}
			if cfg.IDs == "" {
				return fmt.Errorf("--ids is required to map archive identifiers to messages")
			}
			ids, err := archive.LoadIDMap(cfg.IDs)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runArchive(cmd.Context(), d, ids, in, cmd.OutOrStdout())
		},
	}

	schemaCmd = &cobra.Command{
		Use:   "schema N",
		Short: "Print the fields a message schema describes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid message number %q", args[0])
			}
			reg, err := schema.NewDirRegistry(cfg.Schemas, 0)
			if err != nil {
				return err
			}
			s, err := reg.Lookup(number)
			if err != nil {
				return err
			}
			return printSchema(cmd.OutOrStdout(), s)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("schemas", "schemas", "directory of <number>.yaml message schemas")
	pf.String("action-table", "", "CSV table naming the action set bits")
	pf.String("action-field", "ACTION_SET", "bitset field decoded with the action table")
	pf.String("format", "json", "output format: json or csv")
	pf.BoolP("verbose", "v", false, "log every decoded message")
	pf.String("ts-time", "T_TIME", "field holding the time of day in tenths of a second")
	pf.String("ts-offset", "T_OFFSET", "field holding the time offset")
	pf.String("ts-decade", "N_DECADE", "field holding the decade")
	pf.String("ts-day", "N_DAY", "field holding the day of the decade")

	decodeCmd.Flags().IntVarP(&msgNum, "msg", "m", 0, "message number of the payload")
	_ = decodeCmd.MarkFlagRequired("msg")

	archiveCmd.Flags().String("ids", "", "YAML map of archive identifier to message number")
	archiveCmd.Flags().Int("workers", 0, "concurrent decoders (0: one per CPU)")

	for _, name := range []string{"schemas", "action-table", "action-field", "format", "verbose"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}
	for _, key := range []string{"time", "offset", "decade", "day"} {
		_ = v.BindPFlag("timestamp."+key, pf.Lookup("ts-"+key))
	}
	_ = v.BindPFlag("ids", archiveCmd.Flags().Lookup("ids"))
	_ = v.BindPFlag("workers", archiveCmd.Flags().Lookup("workers"))

	v.SetEnvPrefix("MSGDECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(decodeCmd, archiveCmd, schemaCmd)
}

func loadConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	switch cfg.Format {
	case formatJSON, formatCSV:
	default:
		return fmt.Errorf("unknown output format %q", cfg.Format)
	}
	return nil
}

func newDecoder() (*msgdecode.Decoder, error) {
	reg, err := schema.NewDirRegistry(cfg.Schemas, 0)
	if err != nil {
		return nil, err
	}
	opts := msgdecode.Options{
		ActionSetField: cfg.ActionField,
		Timestamp:      cfg.Timestamp,
	}
	if cfg.ActionTable != "" {
		table, err := actionset.LoadFile(cfg.ActionTable)
		if err != nil {
			return nil, err
		}
		opts.ActionTable = table
	}
	return msgdecode.New(reg, opts), nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx := options.WithLogger(context.Background(), logrus.StandardLogger())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func runInteractive(ctx context.Context, d *msgdecode.Decoder, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	logrus.Infof("msgdecode interactive mode for message %d. Paste a hex payload and press Enter (Ctrl+D to exit).", msgNum)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runDecode(ctx, d, out, msgNum, line); err != nil {
			logrus.WithError(err).Error("failed to decode payload")
		}
	}
	return scanner.Err()
}

func runDecode(ctx context.Context, d *msgdecode.Decoder, out io.Writer, number int, hex string) error {
	result, err := d.DecodeHex(ctx, number, hex)
	if err != nil {
		return err
	}
	if cfg.Format == formatCSV {
		return writeCSV(out, []msgdecode.LineResult{{Result: &result}})
	}
	_, err = fmt.Fprintln(out, result.String())
	return err
}

func runArchive(ctx context.Context, d *msgdecode.Decoder, ids archive.Numberer, in io.Reader, out io.Writer) error {
	lines, summary, err := d.DecodeArchive(ctx, in, ids, cfg.Workers)
	if err != nil {
		return err
	}
	if cfg.Format == formatCSV {
		err = writeCSV(out, lines)
	} else {
		err = writeJSONLines(out, lines)
	}
	if err != nil {
		return err
	}
	if summary.Errors > 0 {
		logrus.Warnf("%d archive lines could not be decoded", summary.Errors)
	}
	return nil
}
