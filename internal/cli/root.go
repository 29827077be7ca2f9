package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/anime-shed/image-inspector-go/internal/config"
	"github.com/anime-shed/image-inspector-go/internal/container"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/internal/service"
)

var version = "1.0.0"

// Opener builds the inspection service for one command invocation. The
// returned closer releases the store and worker pool.
type Opener func() (service.InspectionService, io.Closer, error)

// OpenFromEnv loads env configuration and builds the full container
func OpenFromEnv() (service.InspectionService, io.Closer, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	c, err := container.NewContainer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return c.Service(), c, nil
}

type app struct {
	open    Opener
	verbose bool
}

// withService opens the service, runs fn and closes it again
func (a *app) withService(fn func(svc service.InspectionService) error) error {
	svc, closer, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close resources")
		}
	}()
	return fn(svc)
}

// NewRootCommand assembles the inspect command tree
func NewRootCommand(open Opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect images: metadata, dominant colors, quality and faces",
		Long: `inspect reads an image file or URL and reports its normalized metadata,
dominant colors, brightness/contrast/sharpness and detected faces.

Results are archived in a bounded history shared with the HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetVerbose(a.verbose)
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.SetVersionTemplate(fmt.Sprintf(
		"inspect %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(
		newAnalyzeCommand(a),
		newHistoryCommand(a),
		newSettingsCommand(a),
	)
	return root
}

// Execute runs the CLI against the environment-configured backends
func Execute() error {
	return NewRootCommand(OpenFromEnv).Execute()
}
