package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"replacechain/internal/blob"
	"replacechain/internal/core"
	"replacechain/internal/tabular"
)

// ExportResult is the outcome of the export command.
type ExportResult struct {
	Rows      int    `json:"rows"`
	File      string `json:"file,omitempty"`
	Format    string `json:"format"`
	UploadKey string `json:"upload_key,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Text renders the result for humans.
func (r ExportResult) Text() string {
	var b strings.Builder
	if r.File != "" {
		fmt.Fprintf(&b, "wrote %d mappings to %s\n", r.Rows, r.File)
	}
	if r.UploadKey != "" {
		fmt.Fprintf(&b, "uploaded %d mappings as %s\n", r.Rows, r.UploadKey)
	}
	if r.URL != "" {
		fmt.Fprintln(&b, r.URL)
	}
	return b.String()
}

// ExportKeyPrefix is where uploaded exports are stored in the blob store.
const ExportKeyPrefix = "exports/"

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fileFormat string
		upload     bool
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write every product with its latest replacement",
		Long: `Write one row per known product with the product that currently supersedes
it and the date of that replacement, grouped by the superseding product.

With --upload the export is also stored in the configured blob store under
exports/<id>.<ext> and a download URL is printed when the backend can sign one.`,
		Args: args(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			var path string
			if len(a) == 1 {
				path = a[0]
			}
			if path == "" && !upload {
				return NewExitError(ExitCommandError, "a file or --upload is required")
			}
			return runExport(cmd, rootOpts, path, fileFormat, upload)
		},
	}
	cmd.Flags().StringVar(&fileFormat, "file-format", "", "output format csv|json|yaml (default from extension, csv)")
	cmd.Flags().BoolVar(&upload, "upload", false, "also upload the export to the blob store")
	return cmd
}

func runExport(cmd *cobra.Command, opts *RootOptions, path, fileFormat string, upload bool) error {
	format, err := inputFormat(fileFormat, path)
	if err != nil {
		return err
	}
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		f := newFormatter(cmd, opts)
		rows := a.manager.Mappings(ctx, progressLogger(f, "resolved"))

		var buf bytes.Buffer
		if err := tabular.WriteMappings(&buf, format, rows); err != nil {
			return WrapExitError(ExitFailure, "render export", err)
		}
		res := ExportResult{Rows: len(rows), File: path, Format: string(format)}

		if path != "" {
			err := writeFile(path, func(w io.Writer) error {
				_, err := w.Write(buf.Bytes())
				return err
			})
			if err != nil {
				return fileError("write", path, err)
			}
		}
		if upload {
			key, url, err := uploadExport(ctx, a, format, buf.Bytes(), len(rows))
			if err != nil {
				return WrapExitError(ExitFailure, "upload export", err)
			}
			res.UploadKey, res.URL = key, url
		}
		return f.Success(res)
	})
}

func uploadExport(ctx context.Context, a *app, format tabular.Format, body []byte, rows int) (string, string, error) {
	store, err := core.OpenBlobStore(ctx, a.cfg.Blob)
	if err != nil {
		return "", "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", "", fmt.Errorf("generate export id: %w", err)
	}
	key := ExportKeyPrefix + id.String() + "." + format.Extension()
	info, err := store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata: map[string]string{
			"rows":   strconv.Itoa(rows),
			"driver": string(a.manager.Driver()),
		},
	})
	if err != nil {
		return "", "", err
	}
	a.logger.Info("export uploaded", "key", info.Key, "size", info.Size, "blob_driver", store.Driver())

	url, err := store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: a.cfg.Blob.PresignExpiry})
	if errors.Is(err, blob.ErrUnsupported) {
		return key, "", nil
	}
	if err != nil {
		return key, "", fmt.Errorf("presign %s: %w", key, err)
	}
	return key, url, nil
}
