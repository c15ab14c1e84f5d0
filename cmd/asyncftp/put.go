package main

import (
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gonzalop/asyncftp"
)

func newPutCmd(a *app) *cobra.Command {
	var remoteDir string

	cmd := &cobra.Command{
		Use:     "put FILE...",
		Aliases: []string{"upload"},
		Short:   "Upload local files",
		Long: `Put uploads every FILE into the remote directory given with --dir, keeping
the base name of each file. The uploads run concurrently, at most
--concurrency at a time.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			ops := make([]*asyncftp.UploadOperation, len(args))
			for i, local := range args {
				ops[i] = s.StartUpload(local, path.Join(remoteDir, filepath.Base(local)))
			}
			_ = s.Wait()

			failed := 0
			for _, op := range ops {
				if err := op.Err(); err != nil {
					a.out.failure(errors.Wrapf(err, "upload %s", op.LocalPath()))
					failed++
					continue
				}
				a.out.success("%s -> %s (%d bytes)", op.LocalPath(), op.URL(), op.Offset())
			}

			if failed > 0 {
				return errors.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remoteDir, "dir", "", "remote directory, relative to the server URL")
	return cmd
}
