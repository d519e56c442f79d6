package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ds124wfegd/sam3d-worker/config"
	"github.com/ds124wfegd/sam3d-worker/internal/appServer"
	"github.com/ds124wfegd/sam3d-worker/internal/client"
	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type options struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	verbose  bool

	image  string
	mask   string
	output string
	seed   int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "sam3d",
		Short:         "Submit image and mask pairs for 3D reconstruction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", config.GetEnv("SAM3D_ENDPOINT", "http://localhost:8080"), "worker API base URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", config.GetEnv("RUNPOD_API_KEY", ""), "bearer token for the endpoint")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Minute, "overall time limit")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunSyncCmd(opts),
		newRunCmd(opts),
		newRemoteCmd(opts),
		newStatusCmd(opts),
		newLocalCmd(opts),
	)
	return root
}

func addPairFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.image, "image", "", "path to the input image")
	cmd.Flags().StringVar(&opts.mask, "mask", "", "path to the object mask")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "output.glb", "where to write the GLB mesh")
	cmd.Flags().IntVar(&opts.seed, "seed", entity.DefaultSeed, "random seed")
	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("mask")
}

func (o *options) client() client.Client {
	return client.NewClient(client.Options{BaseURL: o.endpoint, APIKey: o.apiKey, Timeout: o.timeout})
}

func (o *options) inlineInput() (entity.JobInput, error) {
	image, err := readBase64(o.image)
	if err != nil {
		return entity.JobInput{}, err
	}
	mask, err := readBase64(o.mask)
	if err != nil {
		return entity.JobInput{}, err
	}
	seed := o.seed
	return entity.JobInput{Image: image, Mask: mask, Seed: &seed}, nil
}

func newRunSyncCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runsync",
		Short: "Reconstruct a pair and wait for the mesh in one request",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := opts.inlineInput()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			record, err := opts.client().RunSync(ctx, input)
			if err != nil {
				return err
			}
			return writeMesh(record, opts.output)
		},
	}
	addPairFlags(cmd, opts)
	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Queue a pair and poll until the mesh is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := opts.inlineInput()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			c := opts.client()
			resp, err := c.Submit(ctx, input)
			if err != nil {
				return err
			}
			logrus.WithField("job_id", resp.ID).Info("job submitted, waiting for completion")

			record, err := c.Wait(ctx, resp.ID)
			if err != nil {
				return err
			}
			return writeMesh(record, opts.output)
		},
	}
	addPairFlags(cmd, opts)
	return cmd
}

func newRemoteCmd(opts *options) *cobra.Command {
	var input entity.JobInput

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Queue a job whose inputs and result live at URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			seed := opts.seed
			input.Seed = &seed

			c := opts.client()
			resp, err := c.Submit(ctx, input)
			if err != nil {
				return err
			}
			record, err := c.Wait(ctx, resp.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd, record)
		},
	}
	cmd.Flags().StringVar(&input.ImageURL, "image-url", "", "URL of the input image")
	cmd.Flags().StringVar(&input.MaskURL, "mask-url", "", "URL of the object mask")
	cmd.Flags().StringVar(&input.OutputLocation, "output-location", "", "presigned URL the GLB is uploaded to")
	cmd.Flags().IntVar(&opts.seed, "seed", entity.DefaultSeed, "random seed")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the platform record of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, record)
		},
	}
}

func newLocalCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run the reconstruction in this process against the configured inference service",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := opts.inlineInput()
			if err != nil {
				return err
			}

			v, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg, err := config.ParseConfig(v)
			if err != nil {
				return err
			}

			pipeline := appServer.NewPipeline(cfg, afero.NewOsFs())
			result := pipeline.Jobs.Execute(cmd.Context(), entity.JobRequest{ID: "local", Input: input})

			raw, err := json.Marshal(service.RenderOutput(result))
			if err != nil {
				return err
			}
			return writeMesh(&entity.JobRecord{ID: "local", Status: entity.StatusCompleted, Output: raw}, opts.output)
		},
	}
	addPairFlags(cmd, opts)
	return cmd
}

func readBase64(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func writeMesh(record *entity.JobRecord, path string) error {
	glb, err := client.DecodeInlineOutput(record)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, glb, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"job_id": record.ID,
		"path":   path,
		"bytes":  len(glb),
	}).Info("mesh saved")
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
