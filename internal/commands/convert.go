package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gerunddev/sheetbridge/internal/config"
	"github.com/gerunddev/sheetbridge/internal/convert"
	"github.com/gerunddev/sheetbridge/internal/library"
	"github.com/gerunddev/sheetbridge/internal/logger"
	"github.com/gerunddev/sheetbridge/internal/markup"
	"github.com/gerunddev/sheetbridge/internal/sheet"
)

func newConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "convert",
		GroupID: "inspect",
		Short:   "Convert a single sheet or Markdown file",
	}
	cmd.AddCommand(newToMarkdownCommand(), newToSheetCommand())
	return cmd
}

func newToMarkdownCommand() *cobra.Command {
	var dialect string

	cmd := &cobra.Command{
		Use:   "to-md <sheet dir|Content.xml>",
		Short: "Print a sheet as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := markup.ParseDialect(dialect)
			if err != nil {
				return err
			}

			path := args[0]
			var text string
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				doc, err := sheet.Load(path)
				if err != nil {
					return err
				}
				text = convert.ToMarkdown(doc, convert.ForwardOptions{Dialect: d}).String()
			} else {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read sheet: %w", err)
				}
				text, err = convert.ToMarkdownXML(data, convert.ForwardOptions{Dialect: d})
				if err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "critic", "markup dialect: critic or html")
	return cmd
}

func newToSheetCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "to-sheet <file.md>",
		Short: "Convert a Markdown file to sheet XML",
		Long: `Convert a Markdown file to sheet XML. Without --out the XML is printed.
With --out a sheet package named after a new sheet id is written into the
given directory. An attachment block at the end of the file is turned
back into attachments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(cmd.ErrOrStderr())

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read markdown file: %w", err)
			}

			opts := convert.ReverseOptions{Path: args[0], Attachments: convert.AttachmentsRestore}
			xml, res, err := convert.ToSheetXML(string(data), opts)
			for _, m := range res.Misses {
				log.ReferenceMiss(args[0], m.Kind, m.Key, m.Line)
			}
			if err != nil {
				log.ConversionError(args[0], out, err)
				saveRejected(err, log)
				return err
			}

			if out == "" {
				_, err := cmd.OutOrStdout().Write(xml)
				return err
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			id := library.NewSheetID()
			pkg := filepath.Join(out, id+sheet.PackageExt)
			res.Document.ID = id
			if err := sheet.Write(pkg, res.Document, string(data), info.ModTime()); err != nil {
				log.ConversionError(args[0], pkg, err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pkg)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "directory to write the sheet package into")
	return cmd
}

// saveRejected keeps the text of output that failed validation
func saveRejected(err error, log *logger.Logger) {
	var malformed *sheet.MalformedError
	if !errors.As(err, &malformed) {
		return
	}
	dir := config.DiagnosticsDir()
	if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
		return
	}
	path := filepath.Join(dir, time.Now().Format("20060102-150405")+"-convert.xml")
	if writeErr := os.WriteFile(path, []byte(malformed.Text), 0644); writeErr == nil {
		log.Warn("rejected output kept", "path", path)
	}
}
