package main

import (
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gonzalop/asyncftp"
)

func newGetCmd(a *app) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:     "get PATH...",
		Aliases: []string{"download"},
		Short:   "Download remote files",
		Long: `Get downloads every PATH into the output directory, keeping the base name
of each file. The downloads run concurrently, at most --concurrency at a
time. A failed download leaves no file behind.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return errors.Wrap(err, "creating output directory")
			}

			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			ops := make([]*asyncftp.DownloadOperation, len(args))
			for i, p := range args {
				ops[i] = s.StartDownload(p, asyncftp.WithTempDir(outputDir))
			}
			_ = s.Wait()

			failed := 0
			for i, op := range ops {
				if err := op.Err(); err != nil {
					a.out.failure(errors.Wrapf(err, "download %s", op.URL()))
					failed++
					continue
				}
				dest := filepath.Join(outputDir, path.Base(args[i]))
				if err := os.Rename(op.LocalPath(), dest); err != nil {
					_ = os.Remove(op.LocalPath())
					a.out.failure(errors.Wrapf(err, "saving %s", dest))
					failed++
					continue
				}
				a.logger.Debug("downloaded", zap.String("url", op.URL()), zap.String("file", dest))
				a.out.success("%s (%d bytes)", dest, op.BytesWritten())
			}

			if failed > 0 {
				return errors.Errorf("%d of %d downloads failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to save the files in")
	return cmd
}
