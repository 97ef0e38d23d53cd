package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/tryon/internal/control"
	"github.com/vietddude/tryon/internal/core/domain"
)

var (
	garmentOut string
	composeOut string
	personRef  string
	clothRef   string
)

var garmentCmd = &cobra.Command{
	Use:   "garment <description>",
	Short: "Generate a garment image from a text description",
	Args:  cobra.MinimumNArgs(1),
	Run:   runGarment,
}

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Render a person wearing a garment",
	Run:   runCompose,
}

func init() {
	garmentCmd.Flags().StringVarP(&garmentOut, "output", "o", "garment.png", "where to write the image")
	rootCmd.AddCommand(garmentCmd)

	composeCmd.Flags().StringVarP(&composeOut, "output", "o", "tryon.png", "where to write the image")
	composeCmd.Flags().StringVar(&personRef, "person", "", "person image: file, URL or data URL")
	composeCmd.Flags().StringVar(&clothRef, "cloth", "", "garment image: file, URL, product page or data URL")
	_ = composeCmd.MarkFlagRequired("person")
	_ = composeCmd.MarkFlagRequired("cloth")
	rootCmd.AddCommand(composeCmd)
}

func runGarment(cmd *cobra.Command, args []string) {
	app := newApp(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	img, err := app.Generator.GenerateGarment(ctx, strings.Join(args, " "))
	if err != nil {
		exitWithFailure(err)
	}
	writeImage(img, garmentOut)
}

func runCompose(cmd *cobra.Command, args []string) {
	app := newApp(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	person, err := app.Bridge.Load(ctx, personRef)
	if err != nil {
		slog.Error("Failed to load person image", "ref", personRef, "error", err)
		os.Exit(1)
	}
	cloth, err := app.Bridge.Load(ctx, clothRef)
	if err != nil {
		slog.Error("Failed to load garment image", "ref", clothRef, "error", err)
		os.Exit(1)
	}

	img, err := app.Generator.GenerateTryOn(ctx, person, cloth)
	if err != nil {
		exitWithFailure(err)
	}
	writeImage(img, composeOut)
}

func newApp(cmd *cobra.Command) *control.App {
	cfg := loadConfig(cmd)
	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	return app
}

func writeImage(img domain.EmbeddedImage, outputPath string) {
	data, err := img.Bytes()
	if err != nil {
		slog.Error("Failed to decode result", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		slog.Error("Failed to write result", "path", outputPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Image written", "path", outputPath, "mime", img.MimeType, "bytes", len(data))
}

func exitWithFailure(err error) {
	var f *domain.Failure
	if errors.As(err, &f) {
		fmt.Fprintln(os.Stderr, f.Message)
		slog.Debug("Generation failure", "kind", f.Kind, "attempts", f.Attempts, "error", f.Err)
		os.Exit(2)
	}
	slog.Error("Generation failed", "error", err)
	os.Exit(1)
}
