package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aliskhannn/safe-uploader/internal/config"
	"github.com/aliskhannn/safe-uploader/internal/model"
	"github.com/aliskhannn/safe-uploader/internal/processor"
	"github.com/aliskhannn/safe-uploader/internal/storage/file"
	"github.com/aliskhannn/safe-uploader/internal/uploader"
)

type uploadFlags struct {
	profiles string
	profile  string
	payload  map[string]string
	collect  bool
}

// uploadOutput is printed as JSON once the run finished.
type uploadOutput struct {
	Path   string   `json:"path,omitempty"`
	Paths  []string `json:"paths"`
	URL    string   `json:"url,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

func newUploadCmd() *cobra.Command {
	var f uploadFlags

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Validate and place a local file with a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := file.NewStorage(nil)
			u := uploader.New(files, processor.New(files),
				uploader.WithProfileSource(config.NewProfileSource(files.Fs(), f.profiles)))

			res, err := u.UploadFile(cmd.Context(), f.profile, args[0], uploader.Options{
				Mode:    mode(f.collect),
				Payload: model.Payload(f.payload),
			})
			if err != nil {
				return err
			}

			out := uploadOutput{
				Path:   res.UploadedFilePath(),
				Paths:  res.UploadedFilePaths(),
				URL:    res.RealURL(),
				Errors: res.Messages(),
			}
			if out.Paths == nil {
				out.Paths = []string{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}

			if res.Failed() {
				return fmt.Errorf("upload finished with %d error(s)", len(out.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.profiles, "profiles", "./config/profiles.yml", "profile configuration file")
	cmd.Flags().StringVar(&f.profile, "profile", "", "profile id")
	cmd.Flags().StringToStringVarP(&f.payload, "payload", "p", nil, "template values, key=value")
	cmd.Flags().BoolVar(&f.collect, "collect", false, "report every error instead of stopping at the first one")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}
