package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	"github.com/anime-shed/image-inspector-go/internal/service"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		asJSON    bool
		noHistory bool
		noFaces   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file|url>",
		Short: "Analyze a local image file or an http(s) URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc service.InspectionService) error {
				resp, err := analyzeTarget(cmd.Context(), svc, args[0], noHistory, noFaces)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					data, err := service.ExportMetadata(resp.Result.Metadata)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				}
				printResult(out, resp)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the metadata as indented JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not archive the result")
	cmd.Flags().BoolVar(&noFaces, "no-faces", false, "skip face detection")
	return cmd
}

func isURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func analyzeTarget(ctx context.Context, svc service.InspectionService, target string, noHistory, noFaces bool) (*models.AnalyzeResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if isURL(target) {
		return svc.AnalyzeURL(ctx, "", target, noHistory)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	return svc.Analyze(ctx, service.Upload{
		Name:         filepath.Base(target),
		MIMEType:     fileMIMEType(target, data),
		LastModified: info.ModTime(),
		Data:         data,
		SkipHistory:  noHistory,
		SkipFaces:    noFaces,
	})
}

// fileMIMEType prefers the extension and falls back to content sniffing
func fileMIMEType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func printResult(w io.Writer, resp *models.AnalyzeResponse) {
	r := resp.Result

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Metadata:")
	for _, k := range r.Metadata.Keys() {
		fmt.Fprintf(w, "    %-22s %s\n", k, r.Metadata.Value(k))
	}
	if camera := analyzer.CameraOf(r.Metadata); camera != "" {
		fmt.Fprintf(w, "    %-22s %s\n", "Camera", camera)
	}
	if taken := analyzer.TakenOf(r.Metadata); taken != "" {
		fmt.Fprintf(w, "    %-22s %s\n", "Taken", taken)
	}

	if len(r.Colors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Dominant colors:")
		for _, c := range r.Colors {
			fmt.Fprintf(w, "    %-18s %s  %5.1f%%\n", c.Color, c.Hex, c.Coverage)
		}
	}

	if r.Quality != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Quality:")
		fmt.Fprintf(w, "    Brightness  %7.2f\n", r.Quality.Brightness)
		fmt.Fprintf(w, "    Contrast    %7.2f\n", r.Quality.Contrast)
		fmt.Fprintf(w, "    Sharpness   %7.2f\n", r.Quality.Sharpness)
	}

	fmt.Fprintln(w)
	switch r.Faces.Status {
	case models.FacesDetected:
		fmt.Fprintf(w, "  Faces: %d\n", r.Faces.Count)
		for i, f := range r.Faces.Faces {
			fmt.Fprintf(w, "    #%d  x=%.0f y=%.0f %.0fx%.0f  area=%d\n", i+1, f.X, f.Y, f.Width, f.Height, f.Area)
		}
	default:
		fmt.Fprintf(w, "  Faces: %s\n", r.Faces.Status)
	}

	if len(r.Notices) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Notices (%d):\n", len(r.Notices))
		for _, n := range r.Notices {
			fmt.Fprintf(w, "    %s [%s] %s\n", n.Component, n.Kind, n.Message)
		}
	}

	fmt.Fprintln(w)
	if resp.Archived {
		fmt.Fprintf(w, "  Saved to history as %d\n", resp.HistoryID)
	}
}
