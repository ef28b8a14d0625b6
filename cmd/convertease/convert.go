package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/internal/logger"
	"github.com/pdiddy/convertease/internal/orchestrator"
	"github.com/pdiddy/convertease/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert files through the conversion proxy",
	Long: `Convert validates the given files, sends them to the conversion proxy,
and writes each result into --out with the target extension. All files
in one run must share the source format. When --from is omitted it is
detected from the first file's extension.

With --job, each file goes through the asynchronous job flow and the
proxy is polled every 2s for up to 30 attempts.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("from", "", "source format (default: detected from the first file)")
	convertCmd.Flags().String("to", "", "target format")
	convertCmd.Flags().String("proxy", "", "proxy base URL (default http://localhost:8080)")
	convertCmd.Flags().String("out", ".", "directory for converted files")
	convertCmd.Flags().Bool("job", false, "use the asynchronous job flow with status polling")
	convertCmd.Flags().String("formats-file", "", "YAML file replacing the built-in format tables")
	_ = convertCmd.MarkFlagRequired("to")
	_ = viper.BindPFlag("client.proxy_url", convertCmd.Flags().Lookup("proxy"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	table, err := loadTable(formatsFile(cmd, cfg.Proxy.FormatsFile))
	if err != nil {
		return err
	}

	handles := make([]orchestrator.FileHandle, 0, len(args))
	for _, path := range args {
		h, err := orchestrator.OSFile(path)
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	outDir, _ := cmd.Flags().GetString("out")
	useJob, _ := cmd.Flags().GetBool("job")

	client := orchestrator.New(cfg.Client, table)
	client.SetTrace(func(ev orchestrator.TraceEvent) {
		logger.Debug("proxy %s %s %s action=%s status=%d %dms %s",
			ev.Stage, ev.Method, ev.URL, ev.Action, ev.StatusCode, ev.DurationMs, ev.Error)
	})
	client.SetProgress(func(filename string, st types.JobStatus) {
		logger.Info("%s: %s %d%%", filename, st.State, st.Progress)
	})

	req, err := client.SelectFiles(handles, from, to)
	if err != nil {
		return errors.New(describeError(err))
	}
	fmt.Fprintf(os.Stdout, "Converting %d file(s) (%s) from %s to %s\n",
		len(req.Files), formats.FormatFileSize(req.TotalSize()), req.SourceFormat, req.TargetFormat)

	submit := client.Submit
	if useJob {
		submit = client.SubmitJob
	}
	results, err := submit(cmd.Context(), req)
	if err != nil {
		return errors.New(describeError(err))
	}
	return writeResults(outDir, results, os.Stdout)
}

// writeResults saves each result under dir and reports it to w. Result
// names come from the proxy, so only their base name is used.
func writeResults(dir string, results []types.ConversionResult, w io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, r := range results {
		name := filepath.Base(r.Filename)
		if name == "." || name == string(filepath.Separator) {
			return fmt.Errorf("invalid result filename %q", r.Filename)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, r.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(w, "converted: %s (%s, %s)\n", path, formats.FormatFileSize(int64(len(r.Content))), r.ContentType)
	}
	return nil
}

// describeError turns pipeline errors into the messages shown to users.
func describeError(err error) string {
	var (
		ne *types.NetworkError
		te *types.TimeoutError
		re *types.RemoteError
	)
	switch {
	case errors.As(err, &ne):
		return fmt.Sprintf("%s (%v)", types.MsgNetworkError, ne.Err)
	case errors.As(err, &te):
		return types.MsgTimeoutError
	case errors.As(err, &re):
		return "Conversion failed: " + re.Message
	default:
		return err.Error()
	}
}
